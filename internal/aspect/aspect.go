package aspect

import (
	"fmt"
	"strings"
)

// Policy maps a named aspect ratio to width/height. Ratio 0 means "keep the
// recording as is".
type Policy struct {
	Name  string
	Ratio float64
}

var (
	Original = Policy{Name: "Original", Ratio: 0}
	R9x16    = Policy{Name: "9:16", Ratio: 9.0 / 16.0}
	R4x5     = Policy{Name: "4:5", Ratio: 4.0 / 5.0}
	R1x1     = Policy{Name: "1:1", Ratio: 1.0}
)

// All lists the policies in menu order.
var All = []Policy{Original, R9x16, R4x5, R1x1}

// Crops reports whether the policy asks for a re-encode.
func (p Policy) Crops() bool { return p.Ratio != 0 }

// ShortName is the compact label used on buttons.
func (p Policy) ShortName() string {
	if p.Ratio == 0 {
		return "Full"
	}
	return p.Name
}

func (p Policy) String() string { return p.Name }

// Fit returns the largest centered size with the policy's ratio inside w x h.
// Used both for the preview guide mask and the crop geometry.
func (p Policy) Fit(w, h float64) (float64, float64) {
	if p.Ratio == 0 || w <= 0 || h <= 0 {
		return w, h
	}
	if w/h > p.Ratio {
		return h * p.Ratio, h
	}
	return w, w / p.Ratio
}

// Parse resolves a policy by name. Accepts "9:16", "9x16", "original", "full".
func Parse(s string) (Policy, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "x", ":")
	switch key {
	case "", "original", "full", "none":
		return Original, nil
	case "9:16":
		return R9x16, nil
	case "4:5":
		return R4x5, nil
	case "1:1":
		return R1x1, nil
	}
	return Policy{}, fmt.Errorf("unknown aspect ratio %q", s)
}
