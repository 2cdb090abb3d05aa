package scroll

import "time"

// Mode selects how elapsed time drives the scroll offset.
type Mode int

const (
	// ModeSpeed accumulates a constant pixels-per-second rate on every tick.
	ModeSpeed Mode = iota
	// ModeDuration maps elapsed time directly onto the total distance.
	ModeDuration
)

func (m Mode) String() string {
	if m == ModeDuration {
		return "duration"
	}
	return "speed"
}

const (
	DefaultTickInterval = 16 * time.Millisecond
	DefaultGrace        = 300 * time.Millisecond
	DefaultSpeed        = 50.0
	DefaultTopPadding   = 200.0
)

// Config is derived from the script text and its geometry. It is recomputed
// whenever the text changes and never mutated while a run is in progress.
type Config struct {
	Mode            Mode
	PixelsPerSecond float64
	Seconds         float64
	TextHeightPx    float64
	TopPadding      float64
}

// FinalOffset is the distance after which the last line has cleared the top
// of the visible frame.
func (c Config) FinalOffset() float64 {
	f := c.TopPadding + c.TextHeightPx
	if f < 0 {
		return 0
	}
	return f
}

// State of the engine.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return "idle"
	}
}

// Position is one update of the overlay offset.
type Position struct {
	Seq      uint64        `json:"seq"`
	Offset   float64       `json:"offset"`
	Final    float64       `json:"final"`
	Progress float64       `json:"progress"`
	Elapsed  time.Duration `json:"elapsed"`
	Done     bool          `json:"done"`
}

// Status is a polling view of the engine.
type Status struct {
	State   State
	Mode    Mode
	Offset  float64
	Final   float64
	Elapsed time.Duration
}
