package capture

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Orientation is how the device is held, as reported by an Attitude source.
type Orientation int32

const (
	OrientationUnknown Orientation = iota
	Portrait
	PortraitUpsideDown
	LandscapeLeft
	LandscapeRight
)

var orientationNames = map[Orientation]string{
	OrientationUnknown: "unknown",
	Portrait:           "portrait",
	PortraitUpsideDown: "portrait_upside_down",
	LandscapeLeft:      "landscape_left",
	LandscapeRight:     "landscape_right",
}

func (o Orientation) String() string {
	if s, ok := orientationNames[o]; ok {
		return s
	}
	return fmt.Sprintf("orientation(%d)", int32(o))
}

// ParseOrientation accepts the String form, with dashes or underscores.
func ParseOrientation(s string) (Orientation, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for o, name := range orientationNames {
		if name == key {
			return o, nil
		}
	}
	return OrientationUnknown, fmt.Errorf("unknown orientation %q", s)
}

// ForRecording resolves the orientation written into a new file. Unknown
// attitudes record as portrait.
func (o Orientation) ForRecording() Orientation {
	switch o {
	case Portrait, PortraitUpsideDown, LandscapeLeft, LandscapeRight:
		return o
	default:
		return Portrait
	}
}

// Rotation is the clockwise display rotation, in degrees, stored with a
// recording made in this orientation by a landscape sensor.
func (o Orientation) Rotation() int {
	switch o {
	case LandscapeRight:
		return 0
	case PortraitUpsideDown:
		return 270
	case LandscapeLeft:
		return 180
	default:
		return 90
	}
}

// Attitude reports the current device orientation.
type Attitude interface {
	Current() Orientation
}

// ManualAttitude is an Attitude set by hand, e.g. from the control API.
type ManualAttitude struct {
	v atomic.Int32
}

func NewManualAttitude(o Orientation) *ManualAttitude {
	a := &ManualAttitude{}
	a.Set(o)
	return a
}

func (a *ManualAttitude) Set(o Orientation) { a.v.Store(int32(o)) }

func (a *ManualAttitude) Current() Orientation { return Orientation(a.v.Load()) }
