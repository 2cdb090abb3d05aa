// Package recorder ties the scroll engine to the capture session for one
// take at a time and hands finished files to the library.
package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/ivlev/scriptcam/internal/aspect"
	"github.com/ivlev/scriptcam/internal/capture"
	"github.com/ivlev/scriptcam/internal/layout"
	"github.com/ivlev/scriptcam/internal/logger"
	"github.com/ivlev/scriptcam/internal/script"
	"github.com/ivlev/scriptcam/internal/scroll"
)

// Session is the capture side of a take.
type Session interface {
	Ready() bool
	StartRecording(title string) (string, error)
	StopRecording(policy aspect.Policy) *capture.Pending
}

// Engine is the scroll side of a take.
type Engine interface {
	Start(cfg scroll.Config) bool
	Stop()
	Reconfigure(cfg scroll.Config) bool
	Snapshot() scroll.Status
}

// Measurer lays out script text.
type Measurer interface {
	Measure(text string) layout.Metrics
}

// Library receives every finished recording.
type Library interface {
	Deliver(ctx context.Context, d capture.Delivery) error
}

// Take is the recording in progress.
type Take struct {
	Snapshot script.Snapshot `json:"snapshot"`
	Aspect   string          `json:"aspect"`
	Path     string          `json:"path"`
	Scroll   scroll.Config   `json:"-"`
	Started  time.Time       `json:"started"`

	policy aspect.Policy
}

// Status aggregates both sides for polling clients.
type Status struct {
	Ready     bool          `json:"ready"`
	Recording bool          `json:"recording"`
	Take      *Take         `json:"take,omitempty"`
	Scroll    scroll.Status `json:"-"`
}

type Options struct {
	TopPadding float64
}

type Coordinator struct {
	session Session
	engine  Engine
	lib     Library
	measure Measurer
	opts    Options
	log     *logger.Logger

	mu      sync.Mutex
	current *Take

	wg sync.WaitGroup
}

func New(s Session, e Engine, lib Library, m Measurer, opts Options, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.Nop()
	}
	return &Coordinator{
		session: s,
		engine:  e,
		lib:     lib,
		measure: m,
		opts:    opts,
		log:     log,
	}
}

// Start begins recording and scrolling together. While a take is running it
// returns the running take unchanged.
func (c *Coordinator) Start(ctx context.Context, snap script.Snapshot, policy aspect.Policy) (Take, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return *c.current, nil
	}
	if err := ctx.Err(); err != nil {
		return Take{}, err
	}

	path, err := c.session.StartRecording(snap.Title)
	if err != nil {
		return Take{}, err
	}

	cfg := snap.ScrollConfig(c.measure.Measure(snap.Text), c.opts.TopPadding)
	c.engine.Start(cfg)

	c.current = &Take{
		Snapshot: snap,
		Aspect:   policy.Name,
		Path:     path,
		Scroll:   cfg,
		Started:  time.Now(),
		policy:   policy,
	}
	c.log.Info().
		Str("path", path).
		Str("aspect", policy.Name).
		Str("mode", cfg.Mode.String()).
		Float64("final_offset", cfg.FinalOffset()).
		Msg("take started")
	return *c.current, nil
}

// SetAspect changes the crop requested for the running take.
func (c *Coordinator) SetAspect(policy aspect.Policy) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return false
	}
	c.current.policy = policy
	c.current.Aspect = policy.Name
	return true
}

// UpdateScript swaps the script of the running take. The scroll restarts
// when the resulting configuration differs; the recording is untouched.
func (c *Coordinator) UpdateScript(snap script.Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return false
	}
	cfg := snap.ScrollConfig(c.measure.Measure(snap.Text), c.opts.TopPadding)
	c.current.Snapshot = snap
	c.current.Scroll = cfg
	return c.engine.Reconfigure(cfg)
}

// Stop ends the take. The scroll resets at once; the recording is finalized
// in the background and its delivery handed to the library unchanged.
// Returns nil when nothing was recording.
func (c *Coordinator) Stop(ctx context.Context) *capture.Pending {
	c.mu.Lock()
	take := c.current
	c.current = nil
	c.mu.Unlock()

	c.engine.Stop()

	policy := aspect.Original
	if take != nil {
		policy = take.policy
	}
	p := c.session.StopRecording(policy)
	if p == nil {
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		d, _ := p.Wait(ctx)
		if err := c.lib.Deliver(ctx, d); err != nil {
			c.log.Error().Err(err).Str("path", d.Path).Msg("library rejected recording")
		}
	}()
	return p
}

// Wait blocks until every stopped take has been handed to the library.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Ready:  c.session.Ready(),
		Scroll: c.engine.Snapshot(),
	}
	if c.current != nil {
		t := *c.current
		st.Take = &t
		st.Recording = true
	}
	return st
}
