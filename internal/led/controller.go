package led

// StatusLED is the LED type the manager drives to reflect capture state.
const StatusLED = "status"

// Patterns accepted by Controller.Set. An empty pattern keeps whatever the
// LED was last doing.
const (
	PatternSolid     = "solid"
	PatternBlink     = "blink"
	PatternHeartbeat = "heartbeat"
	PatternOff       = "off"
)

var allPatterns = []string{PatternSolid, PatternBlink, PatternHeartbeat, PatternOff}

// Controller drives status LEDs on a board. Backends differ in how LEDs
// are named and which patterns the hardware can show.
type Controller interface {
	// Set turns ledType on or off. pattern is one of the Pattern
	// constants or "".
	Set(ledType string, enabled bool, pattern string) error

	// Available lists the LED types Set accepts.
	Available() []string

	// Patterns lists the patterns Set accepts.
	Patterns() []string
}
