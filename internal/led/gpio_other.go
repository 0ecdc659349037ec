//go:build !linux

package led

import "errors"

func newGPIO(string) (*gpio, error) {
	return nil, errors.New("gpio LEDs need linux")
}
