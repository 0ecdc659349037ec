//go:build !linux

package devices

type otherDetector struct{}

func newDetector() DeviceDetector {
	return otherDetector{}
}

func (otherDetector) FindDevices() ([]DeviceInfo, error) {
	return []DeviceInfo{}, nil
}

func (otherDetector) GetDeviceFormats(string) ([]FormatInfo, error) {
	return nil, ErrUnsupported
}

func (otherDetector) GetDevicePathByID(string) (string, error) {
	return "", ErrUnsupported
}

func (otherDetector) GetDeviceResolutions(string, uint32) ([]Resolution, error) {
	return nil, ErrUnsupported
}

func (otherDetector) GetDeviceFramerates(string, uint32, uint32, uint32) ([]Framerate, error) {
	return nil, ErrUnsupported
}
