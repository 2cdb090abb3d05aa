// Package script holds the teleprompter script model and turns a script into
// a scroll configuration.
package script

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/scriptcam/internal/layout"
	"github.com/ivlev/scriptcam/internal/scroll"
)

// EstimatedLineHeight is the rough per-line height used to turn a time limit
// into an approximate speed.
const EstimatedLineHeight = 50.0

// Script is a saved teleprompter script.
type Script struct {
	ID        uuid.UUID `yaml:"id" json:"id"`
	Title     string    `yaml:"title" json:"title"`
	Content   string    `yaml:"content" json:"content"`
	TimeLimit *float64  `yaml:"timeLimit,omitempty" json:"timeLimit,omitempty"` // seconds; nil means manual speed
	CreatedAt time.Time `yaml:"createdAt" json:"createdAt"`
}

// New creates a script with a fresh id.
func New(title, content string, timeLimit *float64) Script {
	return Script{
		ID:        uuid.New(),
		Title:     title,
		Content:   content,
		TimeLimit: timeLimit,
		CreatedAt: time.Now(),
	}
}

// Snapshot is the immutable input of one recording.
type Snapshot struct {
	Title       string   `json:"title" validate:"max=200"`
	Text        string   `json:"text"`
	ScrollSpeed float64  `json:"scrollSpeed" validate:"gte=0,lte=1000"`
	TimeLimit   *float64 `json:"timeLimit,omitempty"`
}

// Snapshot freezes s for a recording at the given manual speed.
func (s Script) Snapshot(speed float64) Snapshot {
	snap := Snapshot{Title: s.Title, Text: s.Content, ScrollSpeed: speed}
	if s.TimeLimit != nil {
		v := *s.TimeLimit
		snap.TimeLimit = &v
	}
	return snap
}

// Timed reports whether the snapshot asks for duration mode.
func (s Snapshot) Timed() bool { return s.TimeLimit != nil }

// EstimatedSpeed approximates the pixels-per-second a time limit implies,
// counting one estimated line per newline-separated row.
func (s Snapshot) EstimatedSpeed() float64 {
	if s.TimeLimit == nil || *s.TimeLimit <= 0 {
		return s.ScrollSpeed
	}
	lines := len(strings.Split(s.Text, "\n"))
	return float64(lines) * EstimatedLineHeight / *s.TimeLimit
}

// ScrollConfig builds the engine configuration from the snapshot and the
// measured text block.
func (s Snapshot) ScrollConfig(m layout.Metrics, topPadding float64) scroll.Config {
	cfg := scroll.Config{
		Mode:            scroll.ModeSpeed,
		PixelsPerSecond: s.ScrollSpeed,
		TextHeightPx:    m.TextHeightPx,
		TopPadding:      topPadding,
	}
	if s.Timed() {
		cfg.Mode = scroll.ModeDuration
		cfg.Seconds = *s.TimeLimit
		if *s.TimeLimit > 0 {
			cfg.PixelsPerSecond = s.EstimatedSpeed()
		}
	}
	return cfg
}
