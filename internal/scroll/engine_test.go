package scroll

import (
	"math"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time      { return c.t }
func (c *fakeClock) add(d time.Duration) { c.t = c.t.Add(d) }

func manualTicks() Option { return func(e *Engine) { e.autoTick = false } }

func newManual(c *fakeClock, opts ...Option) *Engine {
	return NewEngine(append([]Option{WithClock(c.now), manualTicks()}, opts...)...)
}

// step runs one tick of the current run at the clock's time.
func step(e *Engine, c *fakeClock) bool {
	e.mu.Lock()
	run := e.run
	e.mu.Unlock()
	return e.advance(run, c.now())
}

func TestDurationModeScenario(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	e := newManual(clk)

	cfg := Config{Mode: ModeDuration, Seconds: 10, TextHeightPx: 500, TopPadding: 200}
	if !e.Start(cfg) {
		t.Fatal("Start returned false")
	}

	clk.add(5 * time.Second)
	step(e, clk)
	if s := e.Snapshot(); math.Abs(s.Offset-350) > 1e-9 || s.State != StateRunning {
		t.Fatalf("at 5s: offset=%v state=%v, want 350 running", s.Offset, s.State)
	}

	clk.add(5 * time.Second)
	if step(e, clk) {
		t.Error("tick at 10s should end the run")
	}
	s := e.Snapshot()
	if s.Offset != 700 {
		t.Errorf("at 10s offset = %v, want 700", s.Offset)
	}
	if s.State != StateCompleted {
		t.Errorf("at 10s state = %v, want completed", s.State)
	}
}

func TestDurationModeIndependentOfTickRate(t *testing.T) {
	for _, interval := range []time.Duration{7 * time.Millisecond, 16 * time.Millisecond, 33 * time.Millisecond, 100 * time.Millisecond, 700 * time.Millisecond} {
		clk := &fakeClock{t: time.Unix(0, 0)}
		e := newManual(clk, WithTickInterval(interval))
		e.Start(Config{Mode: ModeDuration, Seconds: 3, TextHeightPx: 1234, TopPadding: 200})

		start := clk.t
		prev := 0.0
		for step(e, clk) {
			s := e.Snapshot()
			if s.Offset < prev {
				t.Fatalf("interval %v: offset went backwards %v -> %v", interval, prev, s.Offset)
			}
			prev = s.Offset
			want := 1434 * clk.t.Sub(start).Seconds() / 3
			if math.Abs(s.Offset-math.Min(want, 1434)) > 1e-6 {
				t.Fatalf("interval %v: offset %v at %v, want %v", interval, s.Offset, clk.t.Sub(start), want)
			}
			clk.add(interval)
		}

		s := e.Snapshot()
		if s.State != StateCompleted || s.Offset != 1434 {
			t.Errorf("interval %v: end state=%v offset=%v", interval, s.State, s.Offset)
		}
		if el := clk.t.Sub(start); el < 3*time.Second || el >= 3*time.Second+interval {
			t.Errorf("interval %v: completed after %v", interval, el)
		}
	}
}

func TestSpeedModeReachesFinalThenGrace(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	e := newManual(clk)
	e.Start(Config{Mode: ModeSpeed, PixelsPerSecond: 120, TextHeightPx: 500, TopPadding: 200})

	perTick := 120 * DefaultTickInterval.Seconds()
	prev := 0.0
	ticks := 0
	for e.Snapshot().Offset < 700 {
		clk.add(DefaultTickInterval)
		step(e, clk)
		ticks++
		off := e.Snapshot().Offset
		if off < prev {
			t.Fatalf("offset decreased: %v -> %v", prev, off)
		}
		if off-prev > perTick+1e-9 {
			t.Fatalf("tick advanced %v, more than %v", off-prev, perTick)
		}
		prev = off
		if ticks > 1000 {
			t.Fatal("never reached final offset")
		}
	}
	if want := int(math.Ceil(700 / perTick)); ticks != want {
		t.Errorf("landed after %d ticks, want %d", ticks, want)
	}
	if s := e.Snapshot(); s.State != StateRunning {
		t.Fatalf("state right after landing = %v, want running", s.State)
	}

	clk.add(DefaultGrace / 2)
	step(e, clk)
	if s := e.Snapshot(); s.State != StateRunning || s.Offset != 700 {
		t.Fatalf("during grace: %+v", s)
	}

	clk.add(DefaultGrace / 2)
	step(e, clk)
	if s := e.Snapshot(); s.State != StateCompleted || s.Offset != 700 {
		t.Fatalf("after grace: %+v", s)
	}
}

func TestEmptyTextCompletes(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	e := newManual(clk, WithGrace(0))
	e.Start(Config{Mode: ModeSpeed, PixelsPerSecond: 50})

	clk.add(DefaultTickInterval)
	step(e, clk)
	if s := e.Snapshot(); s.State != StateCompleted || s.Offset != 0 {
		t.Fatalf("empty text: %+v", s)
	}
}

func TestStartWhileRunningIsNoop(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	e := newManual(clk)
	e.Start(Config{Mode: ModeSpeed, PixelsPerSecond: 100, TextHeightPx: 1000})
	clk.add(time.Second)
	step(e, clk)
	before := e.Snapshot()

	if e.Start(Config{Mode: ModeSpeed, PixelsPerSecond: 999, TextHeightPx: 10}) {
		t.Fatal("second Start should be ignored")
	}
	if after := e.Snapshot(); after != before {
		t.Errorf("state changed: %+v -> %+v", before, after)
	}
}

func TestStopResetsAndIsIdempotent(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	e := newManual(clk)
	e.Stop()

	e.Start(Config{Mode: ModeDuration, Seconds: 4, TextHeightPx: 800})
	clk.add(2 * time.Second)
	step(e, clk)
	if e.Snapshot().Offset == 0 {
		t.Fatal("expected progress before stop")
	}

	e.Stop()
	e.Stop()
	s := e.Snapshot()
	if s.State != StateIdle || s.Offset != 0 || s.Elapsed != 0 {
		t.Fatalf("after stop: %+v", s)
	}
	if step(e, clk) {
		t.Error("tick after stop should report finished")
	}

	e.Start(Config{Mode: ModeDuration, Seconds: 4, TextHeightPx: 800})
	if s := e.Snapshot(); s.Offset != 0 || s.State != StateRunning {
		t.Fatalf("restart did not begin at zero: %+v", s)
	}
}

func TestStaleTickerIgnored(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	e := newManual(clk)
	e.Start(Config{Mode: ModeSpeed, PixelsPerSecond: 100, TextHeightPx: 1000})
	e.mu.Lock()
	old := e.run
	e.mu.Unlock()

	e.Stop()
	e.Start(Config{Mode: ModeSpeed, PixelsPerSecond: 100, TextHeightPx: 1000})
	clk.add(DefaultTickInterval)
	if e.advance(old, clk.now()) {
		t.Error("tick from previous run must be rejected")
	}
	if off := e.Snapshot().Offset; off != 0 {
		t.Errorf("stale tick moved offset to %v", off)
	}
}

func TestDurationFallsBackToSpeed(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	e := newManual(clk)

	e.Start(Config{Mode: ModeDuration, Seconds: 0, PixelsPerSecond: 80, TextHeightPx: 1000})
	if s := e.Snapshot(); s.Mode != ModeSpeed {
		t.Fatalf("mode = %v, want speed", s.Mode)
	}
	clk.add(DefaultTickInterval)
	step(e, clk)
	if got, want := e.Snapshot().Offset, 80*DefaultTickInterval.Seconds(); math.Abs(got-want) > 1e-9 {
		t.Errorf("offset = %v, want %v", got, want)
	}
	e.Stop()

	// no configured speed: last positive speed carries over
	e.Start(Config{Mode: ModeDuration, Seconds: -1, TextHeightPx: 1000})
	clk.add(DefaultTickInterval)
	step(e, clk)
	if got, want := e.Snapshot().Offset, 80*DefaultTickInterval.Seconds(); math.Abs(got-want) > 1e-9 {
		t.Errorf("carried-over offset = %v, want %v", got, want)
	}

	fresh := newManual(clk)
	fresh.Start(Config{Mode: ModeDuration, TextHeightPx: 1000})
	clk.add(DefaultTickInterval)
	step(fresh, clk)
	if got, want := fresh.Snapshot().Offset, DefaultSpeed*DefaultTickInterval.Seconds(); math.Abs(got-want) > 1e-9 {
		t.Errorf("default offset = %v, want %v", got, want)
	}
}

func TestReconfigureRestarts(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	e := newManual(clk)
	cfg := Config{Mode: ModeSpeed, PixelsPerSecond: 100, TextHeightPx: 1000, TopPadding: 200}

	if e.Reconfigure(cfg) {
		t.Fatal("Reconfigure on idle engine must not start it")
	}
	e.Start(cfg)
	clk.add(time.Second)
	step(e, clk)

	if e.Reconfigure(cfg) {
		t.Error("same config should not restart")
	}
	cfg.TextHeightPx = 2000
	if !e.Reconfigure(cfg) {
		t.Fatal("changed config should restart")
	}
	if s := e.Snapshot(); s.Offset != 0 || s.Final != 2200 || s.State != StateRunning {
		t.Errorf("after reconfigure: %+v", s)
	}
}

func TestSubscribeOrderedUpdates(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	e := newManual(clk, WithGrace(0))
	ch, cancel := e.Subscribe(64)
	defer cancel()

	e.Start(Config{Mode: ModeDuration, Seconds: 0.1, TextHeightPx: 100})
	for step(e, clk) {
		clk.add(10 * time.Millisecond)
	}

	var last Position
	for {
		select {
		case p := <-ch:
			if p.Seq <= last.Seq || p.Offset < last.Offset {
				t.Fatalf("out of order: %+v after %+v", p, last)
			}
			last = p
			continue
		default:
		}
		break
	}
	if !last.Done || last.Offset != 100 || last.Progress != 1 {
		t.Errorf("last update = %+v", last)
	}
}

func TestSlowSubscriberGetsFinalUpdate(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	e := newManual(clk)
	ch, cancel := e.Subscribe(1)
	defer cancel()

	e.Start(Config{Mode: ModeDuration, Seconds: 1, TextHeightPx: 100})
	for step(e, clk) {
		clk.add(50 * time.Millisecond)
	}
	p := <-ch
	if !p.Done {
		t.Errorf("buffered update = %+v, want the final one", p)
	}
}

func TestTickerDrivesRun(t *testing.T) {
	e := NewEngine(WithTickInterval(time.Millisecond), WithGrace(0))
	ch, cancel := e.Subscribe(4096)
	defer cancel()

	e.Start(Config{Mode: ModeSpeed, PixelsPerSecond: 1000, TextHeightPx: 10})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case p := <-ch:
			if p.Done {
				// completion is applied in the same tick as the final update
				if s := e.Snapshot(); s.State != StateCompleted {
					t.Errorf("state after final update = %v", s.State)
				}
				return
			}
		case <-deadline:
			t.Fatalf("run did not complete, status %+v", e.Snapshot())
		}
	}
}
