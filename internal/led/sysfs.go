package led

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs implements Controller using Linux sysfs LED interface
type sysfs struct {
	root string
	leds map[string]string // LED type -> sysfs name mapping
}

// newSysfs creates a new sysfs LED controller with board-specific LED mappings
func newSysfs(leds map[string]string) *sysfs {
	return &sysfs{
		root: sysfsLEDPath,
		leds: leds,
	}
}

// Set controls an LED's state and optional pattern
func (s *sysfs) Set(ledType string, enabled bool, pattern string) error {
	sysfsName, ok := s.leds[ledType]
	if !ok {
		return fmt.Errorf("LED type %q not supported on this board", ledType)
	}

	ledPath := filepath.Join(s.root, sysfsName)

	if _, err := os.Stat(ledPath); os.IsNotExist(err) {
		return fmt.Errorf("LED %q not found at %s", ledType, ledPath)
	}

	if pattern != "" {
		triggerPath := filepath.Join(ledPath, "trigger")
		if err := os.WriteFile(triggerPath, []byte(trigger(pattern)), 0644); err != nil {
			return fmt.Errorf("failed to set LED trigger: %w", err)
		}
	}

	// A heartbeat trigger drives brightness itself
	if pattern == PatternBlink || pattern == PatternHeartbeat {
		return nil
	}

	brightness := "0"
	if enabled {
		brightness = "1"
	}
	if err := os.WriteFile(filepath.Join(ledPath, "brightness"), []byte(brightness), 0644); err != nil {
		return fmt.Errorf("failed to set LED brightness: %w", err)
	}

	return nil
}

// trigger maps a pattern name to the kernel trigger that produces it.
func trigger(pattern string) string {
	switch pattern {
	case PatternSolid, PatternOff:
		return "none"
	case PatternBlink, PatternHeartbeat:
		return "heartbeat"
	default:
		return pattern // Allow raw trigger names
	}
}

// Available returns the list of LED types supported by this controller
func (s *sysfs) Available() []string {
	types := make([]string, 0, len(s.leds))
	for ledType := range s.leds {
		types = append(types, ledType)
	}
	sort.Strings(types)
	return types
}

// Patterns returns the list of patterns supported by this controller
func (s *sysfs) Patterns() []string {
	return slices.Clone(allPatterns)
}
