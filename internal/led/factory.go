package led

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// board maps a device tree model substring to its sysfs LED names.
type board struct {
	model string
	leds  map[string]string
}

var boards = []board{
	{"NanoPC-T6", map[string]string{StatusLED: "sys_led", "user": "usr_led"}},
	{"Orange Pi", map[string]string{StatusLED: "green_led", "blue": "blue_led"}},
	{"Raspberry Pi", map[string]string{StatusLED: "ACT"}},
}

// New creates an LED controller. A "gpio:<chip>:<offset>" name drives a GPIO
// line. Any other non-empty name selects that entry under
// /sys/class/leds as the status LED; otherwise the board is detected and its
// usual status LED is used. Falls back to a no-op controller when nothing
// usable is found.
func New(name string, logger *slog.Logger) Controller {
	if strings.HasPrefix(name, GPIOPrefix) {
		ctrl, err := newGPIO(name)
		if err != nil {
			logger.Warn("GPIO status LED unavailable, using no-op controller", "led", name, "error", err)
			return newNoop(logger)
		}
		logger.Info("Using GPIO status LED", "led", name)
		return ctrl
	}

	if name != "" {
		if _, err := os.Stat(filepath.Join(sysfsLEDPath, name)); err != nil {
			logger.Warn("Status LED not found, using no-op controller", "led", name, "error", err)
			return newNoop(logger)
		}
		logger.Info("Using configured status LED", "led", name)
		return newSysfs(map[string]string{StatusLED: name})
	}

	model := detectBoard()
	if b, ok := lookupBoard(model); ok {
		logger.Info("Using board status LED", "board_model", model, "led", b.leds[StatusLED])
		return newSysfs(b.leds)
	}

	logger.Debug("No LED support detected, using no-op controller", "board_model", model)
	return newNoop(logger)
}

func lookupBoard(model string) (board, bool) {
	for _, b := range boards {
		if strings.Contains(model, b.model) {
			return b, true
		}
	}
	return board{}, false
}

// detectBoard reads the device tree model, which is NUL terminated.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}
