package capture

import (
	"sync"

	"github.com/ivlev/scriptcam/internal/aspect"
)

// Preview is a read-only view of a Session for the live preview surface. It
// never keeps the session alive; once the session closes it is detached and
// reports nothing.
type Preview struct {
	mu sync.Mutex
	s  *Session
}

func (p *Preview) session() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.s
}

func (p *Preview) detach() {
	p.mu.Lock()
	p.s = nil
	p.mu.Unlock()
}

// Attached reports whether the owning session is still open.
func (p *Preview) Attached() bool { return p.session() != nil }

// Orientation of the preview connection. ok is false when detached.
func (p *Preview) Orientation() (o Orientation, ok bool) {
	s := p.session()
	if s == nil {
		return OrientationUnknown, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orient, true
}

// Recording reports whether the session is writing a file.
func (p *Preview) Recording() bool {
	s := p.session()
	if s == nil {
		return false
	}
	_, ok := s.Recording()
	return ok
}

// Rect is a region of the preview in view coordinates.
type Rect struct {
	X, Y, W, H float64
}

// GuideMask returns the centered region of a w x h view that the crop for
// policy keeps. It is empty when detached or when policy does not crop.
func (p *Preview) GuideMask(policy aspect.Policy, w, h float64) (Rect, bool) {
	if !p.Attached() || !policy.Crops() {
		return Rect{}, false
	}
	mw, mh := policy.Fit(w, h)
	return Rect{X: (w - mw) / 2, Y: (h - mh) / 2, W: mw, H: mh}, true
}
