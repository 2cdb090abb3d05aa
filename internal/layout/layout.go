// Package layout measures wrapped script text so the scroll distance can be
// computed without a UI toolkit.
package layout

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultFontSize    = 32.0
	DefaultViewWidth   = 390.0
	DefaultSidePadding = 40.0
)

// Metrics describes the laid out text block.
type Metrics struct {
	Lines        int
	LineHeight   float64
	TextHeightPx float64
	WrapWidth    float64
}

// Measurer wraps text at a fixed width using a single font face.
// font.Face caches glyphs and is not safe for concurrent use, hence mu.
type Measurer struct {
	mu         sync.Mutex
	face       font.Face
	lineHeight float64
	wrap       fixed.Int26_6
	wrapPx     float64
}

// New builds a Measurer for text drawn at fontSize inside a view of viewWidth
// with sidePadding on both sides.
func New(fontSize, viewWidth, sidePadding float64) (*Measurer, error) {
	if fontSize <= 0 {
		fontSize = DefaultFontSize
	}
	if viewWidth <= 0 {
		viewWidth = DefaultViewWidth
	}
	wrapPx := viewWidth - 2*sidePadding
	if wrapPx <= 0 {
		return nil, fmt.Errorf("view width %.0f leaves no room for text", viewWidth)
	}

	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}

	return &Measurer{
		face:       face,
		lineHeight: float64(face.Metrics().Height) / 64,
		wrap:       fixed.Int26_6(wrapPx * 64),
		wrapPx:     wrapPx,
	}, nil
}

// LineHeight in pixels.
func (m *Measurer) LineHeight() float64 { return m.lineHeight }

// Measure wraps text and returns its block height.
func (m *Measurer) Measure(text string) Metrics {
	lines := m.Wrap(text)
	return Metrics{
		Lines:        len(lines),
		LineHeight:   m.lineHeight,
		TextHeightPx: float64(len(lines)) * m.lineHeight,
		WrapWidth:    m.wrapPx,
	}
}

// Wrap breaks text into display lines. Explicit newlines are kept, blank
// lines count, and words wider than the wrap width are split by rune.
// Whitespace-only text yields no lines.
func (m *Measurer) Wrap(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := ""
		for _, w := range words {
			cand := w
			if line != "" {
				cand = line + " " + w
			}
			if m.width(cand) <= m.wrap {
				line = cand
				continue
			}
			if line != "" {
				out = append(out, line)
				line = ""
			}
			for _, piece := range m.splitWord(w) {
				if m.width(piece) <= m.wrap && line == "" {
					line = piece
					continue
				}
				out = append(out, line)
				line = piece
			}
		}
		out = append(out, line)
	}
	return out
}

func (m *Measurer) splitWord(w string) []string {
	if m.width(w) <= m.wrap {
		return []string{w}
	}
	var parts []string
	cur := ""
	for _, r := range w {
		next := cur + string(r)
		if cur != "" && m.width(next) > m.wrap {
			parts = append(parts, cur)
			cur = string(r)
			continue
		}
		cur = next
	}
	if cur != "" {
		parts = append(parts, cur)
	}
	return parts
}

func (m *Measurer) width(s string) fixed.Int26_6 {
	return font.MeasureString(m.face, s)
}
