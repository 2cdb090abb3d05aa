package layout

import (
	"strings"
	"testing"

	"golang.org/x/image/font"
)

func newTestMeasurer(t *testing.T) *Measurer {
	t.Helper()
	m, err := New(DefaultFontSize, DefaultViewWidth, DefaultSidePadding)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestMeasureEmpty(t *testing.T) {
	m := newTestMeasurer(t)
	for _, in := range []string{"", "   ", "\n\t\n"} {
		got := m.Measure(in)
		if got.Lines != 0 || got.TextHeightPx != 0 {
			t.Errorf("Measure(%q) = %+v, want zero height", in, got)
		}
	}
}

func TestExplicitLinesKept(t *testing.T) {
	m := newTestMeasurer(t)
	got := m.Measure("Hello\n\nWorld")
	if got.Lines != 3 {
		t.Fatalf("lines = %d, want 3", got.Lines)
	}
	if got.TextHeightPx != 3*m.LineHeight() {
		t.Errorf("height = %v, want %v", got.TextHeightPx, 3*m.LineHeight())
	}
	if m.LineHeight() <= 0 {
		t.Errorf("line height = %v", m.LineHeight())
	}
}

func TestWrapStaysInsideWidth(t *testing.T) {
	m := newTestMeasurer(t)
	text := strings.Repeat("teleprompter scripts wrap at the view width ", 12)
	lines := m.Wrap(text)
	if len(lines) < 2 {
		t.Fatalf("expected wrapping, got %d line(s)", len(lines))
	}
	for i, l := range lines {
		if w := font.MeasureString(m.face, l); w > m.wrap {
			t.Errorf("line %d %q is %v wide, limit %v", i, l, w, m.wrap)
		}
	}
	if joined := strings.Join(lines, " "); joined != strings.TrimSpace(text) {
		t.Errorf("wrapping lost words:\n%s", joined)
	}
}

func TestLongWordIsSplit(t *testing.T) {
	m := newTestMeasurer(t)
	word := strings.Repeat("W", 60)
	lines := m.Wrap(word)
	if len(lines) < 2 {
		t.Fatalf("expected split, got %v", lines)
	}
	if strings.Join(lines, "") != word {
		t.Errorf("split lost runes: %v", lines)
	}
}

func TestNarrowViewRejected(t *testing.T) {
	if _, err := New(32, 80, 40); err == nil {
		t.Fatal("expected error when padding consumes the view")
	}
}
