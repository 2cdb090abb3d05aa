package scroll

import (
	"sync"
	"time"

	"github.com/ivlev/scriptcam/internal/logger"
)

// Engine owns the scroll offset as a function of time. All state is guarded by
// mu and mutated only by Start/Stop and the ticker goroutine of the current run.
type Engine struct {
	mu sync.Mutex

	now      func() time.Time
	interval time.Duration
	grace    time.Duration
	autoTick bool
	log      *logger.Logger

	state     State
	cfg       Config
	mode      Mode
	speed     float64
	lastSpeed float64
	final     float64
	start     time.Time
	elapsed   time.Duration
	offset    float64
	landed    bool
	landedAt  time.Time
	seq       uint64

	run  uint64
	stop chan struct{}

	subs    map[int]chan Position
	nextSub int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithTickInterval sets the ticker period (default 16ms).
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithGrace sets the pause between landing and completion in speed mode.
func WithGrace(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.grace = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine returns an idle engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:      time.Now,
		interval: DefaultTickInterval,
		grace:    DefaultGrace,
		autoTick: true,
		log:      logger.Nop(),
		subs:     make(map[int]chan Position),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Start begins a run. It is a no-op returning false while a run is in progress.
func (e *Engine) Start(cfg Config) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning {
		return false
	}

	e.cfg = cfg
	e.mode, e.speed = e.resolve(cfg)
	e.final = cfg.FinalOffset()
	e.resetLocked()
	e.state = StateRunning
	e.start = e.now()
	e.run++

	e.log.Debug().
		Str("mode", e.mode.String()).
		Float64("speed", e.speed).
		Float64("seconds", cfg.Seconds).
		Float64("final", e.final).
		Msg("scroll started")

	e.emitLocked(false)

	if e.autoTick {
		stop := make(chan struct{})
		e.stop = stop
		go e.loop(e.run, stop)
	}
	return true
}

// resolve picks the effective mode and speed. Duration mode without a positive
// duration falls back to speed mode, using the configured speed or, failing
// that, the last positive speed this engine has seen.
func (e *Engine) resolve(cfg Config) (Mode, float64) {
	if cfg.PixelsPerSecond > 0 {
		e.lastSpeed = cfg.PixelsPerSecond
	}
	speed := e.lastSpeed
	if speed <= 0 {
		speed = DefaultSpeed
	}
	if cfg.Mode == ModeDuration {
		if cfg.Seconds > 0 {
			return ModeDuration, speed
		}
		e.log.Warn().Float64("seconds", cfg.Seconds).Float64("speed", speed).
			Msg("non-positive duration, falling back to speed mode")
	}
	return ModeSpeed, speed
}

// Stop returns the engine to Idle from any state. Safe to call repeatedly.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
	if e.state != StateIdle {
		e.log.Debug().Str("from", e.state.String()).Msg("scroll stopped")
	}
	e.state = StateIdle
	e.run++
	e.resetLocked()
	e.start = time.Time{}
}

// Reconfigure restarts a running engine when cfg differs from the active one.
// An idle engine is left alone; the caller passes cfg to the next Start.
func (e *Engine) Reconfigure(cfg Config) bool {
	e.mu.Lock()
	restart := e.state == StateRunning && e.cfg != cfg
	e.mu.Unlock()
	if !restart {
		return false
	}
	e.Stop()
	return e.Start(cfg)
}

// Snapshot returns the current state for polling clients.
func (e *Engine) Snapshot() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		State:   e.state,
		Mode:    e.mode,
		Offset:  e.offset,
		Final:   e.final,
		Elapsed: e.elapsed,
	}
}

// Subscribe registers a listener for position updates. Updates for slow
// listeners are dropped except the final one of a run. cancel closes the channel.
func (e *Engine) Subscribe(buffer int) (<-chan Position, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Position, buffer)

	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
			close(ch)
		})
	}
}

func (e *Engine) loop(run uint64, stop <-chan struct{}) {
	t := time.NewTicker(e.interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if !e.advance(run, e.now()) {
				return
			}
		}
	}
}

// advance performs one tick of run. It returns false once the run is over.
func (e *Engine) advance(run uint64, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if run != e.run || e.state != StateRunning {
		return false
	}
	if el := now.Sub(e.start); el > e.elapsed {
		e.elapsed = el
	}

	if e.landed {
		if now.Sub(e.landedAt) >= e.grace {
			e.completeLocked()
			return false
		}
		return true
	}

	switch e.mode {
	case ModeDuration:
		return e.tickDurationLocked()
	default:
		return e.tickSpeedLocked(now)
	}
}

func (e *Engine) tickSpeedLocked(now time.Time) bool {
	e.offset += e.speed * e.interval.Seconds()
	if e.offset < e.final {
		e.emitLocked(false)
		return true
	}

	e.offset = e.final
	e.emitLocked(true)
	e.landed = true
	e.landedAt = now
	if e.grace <= 0 {
		e.completeLocked()
		return false
	}
	return true
}

func (e *Engine) tickDurationLocked() bool {
	progress := e.elapsed.Seconds() / e.cfg.Seconds
	if progress >= 1 {
		e.offset = e.final
		e.emitLocked(true)
		e.completeLocked()
		return false
	}
	if off := e.final * progress; off > e.offset {
		e.offset = off
	}
	e.emitLocked(false)
	return true
}

func (e *Engine) completeLocked() {
	e.state = StateCompleted
	e.stop = nil
	e.log.Debug().Dur("elapsed", e.elapsed).Float64("offset", e.offset).Msg("scroll completed")
}

func (e *Engine) resetLocked() {
	e.elapsed = 0
	e.offset = 0
	e.landed = false
	e.landedAt = time.Time{}
	e.seq = 0
}

func (e *Engine) emitLocked(done bool) {
	e.seq++
	pos := Position{
		Seq:     e.seq,
		Offset:  e.offset,
		Final:   e.final,
		Elapsed: e.elapsed,
		Done:    done,
	}
	if e.final > 0 {
		pos.Progress = e.offset / e.final
	} else {
		pos.Progress = 1
	}
	for _, ch := range e.subs {
		select {
		case ch <- pos:
		default:
			if !done {
				continue
			}
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- pos:
			default:
			}
		}
	}
}
