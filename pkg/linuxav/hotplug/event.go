// Package hotplug reports kernel device events from the uevent netlink
// socket without cgo or libudev.
package hotplug

import (
	"bytes"
	"path"
	"strings"
)

// Actions termcam reacts to. Others ("change", "bind", ...) are passed
// through unchanged.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// SubsystemVideo4Linux is the subsystem of V4L2 device nodes.
const SubsystemVideo4Linux = "video4linux"

// Event is one kernel uevent.
type Event struct {
	Action    string
	KObj      string // kernel object path, /devices/...
	Subsystem string
	DevType   string
	DevName   string // node name relative to /dev, e.g. "video0"
	DevPath   string
	Env       map[string]string
}

// Node returns the /dev path of the event's device node, or "" when the
// event carries no DEVNAME.
func (e Event) Node() string {
	if e.DevName == "" {
		return ""
	}
	if strings.HasPrefix(e.DevName, "/") {
		return e.DevName
	}
	return path.Join("/dev", e.DevName)
}

// libudevPrefix marks messages rebroadcast by udevd with a binary header.
var libudevPrefix = []byte("libudev")

// ParseUEvent decodes "ACTION@KOBJ\0KEY=VALUE\0...". It returns nil when
// data is not a uevent.
func ParseUEvent(data []byte) *Event {
	if bytes.HasPrefix(data, libudevPrefix) {
		data = skipLibudevHeader(data)
	}

	header, rest, _ := bytes.Cut(data, []byte{0})
	action, kobj, ok := strings.Cut(string(header), "@")
	if !ok || action == "" {
		return nil
	}

	event := &Event{
		Action: action,
		KObj:   kobj,
		Env:    make(map[string]string),
	}

	for _, field := range bytes.Split(rest, []byte{0}) {
		key, value, ok := strings.Cut(string(field), "=")
		if !ok || key == "" {
			continue
		}
		event.Env[key] = value

		switch key {
		case "SUBSYSTEM":
			event.Subsystem = value
		case "DEVTYPE":
			event.DevType = value
		case "DEVNAME":
			event.DevName = value
		case "DEVPATH":
			event.DevPath = value
		}
	}

	return event
}

// skipLibudevHeader advances to the first NUL-terminated field that looks
// like an ACTION@ header.
func skipLibudevHeader(data []byte) []byte {
	for i, b := range data {
		if b != 0 {
			continue
		}
		rest := data[i+1:]
		field, _, _ := bytes.Cut(rest, []byte{0})
		if bytes.IndexByte(field, '@') > 0 {
			return rest
		}
	}
	return data
}
