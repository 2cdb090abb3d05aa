// Package capture owns the camera session and the record-to-file operation.
package capture

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/scriptcam/internal/aspect"
	perr "github.com/ivlev/scriptcam/internal/errors"
	"github.com/ivlev/scriptcam/internal/logger"
	"github.com/ivlev/scriptcam/internal/telemetry"
	"github.com/ivlev/scriptcam/internal/video"
)

type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateRecording
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateRecording:
		return "recording"
	case StateClosed:
		return "closed"
	default:
		return "unconfigured"
	}
}

// RecordingResult is produced once per stopped recording.
type RecordingResult struct {
	ID          string
	Path        string
	Title       string
	Aspect      aspect.Policy
	Orientation Orientation
	Started     time.Time
	Stopped     time.Time
}

// Delivery is the final outcome of a recording. Path is the file handed to
// storage: the cropped export, or the original when no crop was asked for or
// the crop failed. Err is set only when the recording itself was lost.
type Delivery struct {
	Result  RecordingResult
	Path    string
	Cropped bool
	Err     error
}

// Pending resolves to the Delivery of a stopped recording.
type Pending struct {
	done chan struct{}
	d    Delivery
}

func newPending() *Pending { return &Pending{done: make(chan struct{})} }

// Resolved returns a Pending that already holds d.
func Resolved(d Delivery) *Pending {
	p := newPending()
	p.resolve(d)
	return p
}

func (p *Pending) resolve(d Delivery) {
	p.d = d
	close(p.done)
}

// Done is closed once the delivery is known.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the delivery is known or ctx is done.
func (p *Pending) Wait(ctx context.Context) (Delivery, error) {
	select {
	case <-p.done:
		return p.d, nil
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	}
}

type Options struct {
	Dir          string
	KeepOriginal bool
}

type Session struct {
	mu    sync.Mutex
	cfgMu sync.Mutex

	dev     Device
	auth    Authorizer
	att     Attitude
	cropper Cropper
	opts    Options

	now   func() time.Time
	log   *logger.Logger
	stats *telemetry.Recorder

	ctx    context.Context
	cancel context.CancelFunc

	state   State
	active  *recording
	orient  Orientation
	preview *Preview

	inflight sync.WaitGroup
}

type recording struct {
	id      string
	path    string
	title   string
	orient  Orientation
	sink    Sink
	started time.Time
	metrics *telemetry.RecordingMetrics
}

type SessionOption func(*Session)

func WithClock(now func() time.Time) SessionOption { return func(s *Session) { s.now = now } }

func WithLogger(l *logger.Logger) SessionOption { return func(s *Session) { s.log = l } }

func WithTelemetry(r *telemetry.Recorder) SessionOption { return func(s *Session) { s.stats = r } }

// WithCropper sets the transformer used for non-original aspect ratios.
// Without one, every recording is delivered uncropped.
func WithCropper(c Cropper) SessionOption { return func(s *Session) { s.cropper = c } }

// NewSession returns an unconfigured session. att may be nil, in which case
// every recording is portrait.
func NewSession(dev Device, auth Authorizer, att Attitude, opts Options, o ...SessionOption) *Session {
	if auth == nil {
		auth = StaticAuthorizer{Video: true, Audio: true}
	}
	if att == nil {
		att = NewManualAttitude(Portrait)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		dev:    dev,
		auth:   auth,
		att:    att,
		opts:   opts,
		now:    time.Now,
		log:    logger.Nop(),
		ctx:    ctx,
		cancel: cancel,
		orient: att.Current().ForRecording(),
	}
	for _, fn := range o {
		fn(s)
	}
	return s
}

// Configure asks for camera and microphone access, checks the input and
// starts the device session. On any failure nothing is left running and the
// session stays unconfigured.
func (s *Session) Configure(ctx context.Context) error {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()

	switch st := s.State(); st {
	case StateConfigured, StateRecording:
		return nil
	case StateClosed:
		return perr.NotReadyf("session closed")
	}

	for _, m := range []MediaType{MediaVideo, MediaAudio} {
		ok, err := s.auth.Authorize(ctx, m)
		if err != nil {
			return perr.WithOp(perr.Wrapf(err, perr.ErrorCodePermissionDenied, "%s authorization", m), "capture.configure")
		}
		if !ok {
			return perr.WithOp(perr.PermissionDeniedf("%s access denied", m), "capture.configure")
		}
	}

	if err := s.dev.Available(ctx); err != nil {
		if perr.CodeOf(err) == perr.ErrorCodeUnknown {
			err = perr.Wrap(err, perr.ErrorCodeDeviceUnavailable, "capture input")
		}
		return perr.WithOp(err, "capture.configure")
	}
	if err := s.dev.Start(ctx); err != nil {
		s.dev.Close()
		return perr.WithOp(perr.Wrap(err, perr.ErrorCodeDeviceUnavailable, "start capture session"), "capture.configure")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		s.dev.Close()
		return perr.NotReadyf("session closed")
	}
	s.state = StateConfigured
	s.log.Info().Str("dir", s.opts.Dir).Msg("capture session configured")
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready reports whether recordings can be started.
func (s *Session) Ready() bool {
	st := s.State()
	return st == StateConfigured || st == StateRecording
}

// Recording returns the path of the active recording.
func (s *Session) Recording() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return "", false
	}
	return s.active.path, true
}

// StartRecording begins writing a new file. While a recording is active it
// is a no-op returning the active path. The orientation is read from the
// attitude source and applied to the output under the same lock that opens
// the writer.
func (s *Session) StartRecording(title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRecording:
		s.log.Debug().Str("path", s.active.path).Msg("already recording")
		return s.active.path, nil
	case StateConfigured:
	default:
		return "", perr.WithOp(perr.NotReadyf("capture session %s", s.state), "capture.start")
	}

	orient := s.att.Current().ForRecording()
	started := s.now()
	path := video.UniquePath(s.opts.Dir, Stem(title, started), s.dev.Ext())

	sink, err := s.dev.Record(s.ctx, Output{Path: path, Orientation: orient, Rotation: orient.Rotation()})
	if err != nil {
		os.Remove(path)
		return "", perr.WithOp(perr.Wrap(err, perr.ErrorCodeWriteFailed, "open recording"), "capture.start")
	}

	id := uuid.NewString()
	s.active = &recording{
		id:      id,
		path:    path,
		title:   title,
		orient:  orient,
		sink:    sink,
		started: started,
		metrics: s.stats.StartRecording(id, path),
	}
	s.state = StateRecording
	s.log.Info().Str("path", path).Str("orientation", orient.String()).Msg("recording started")
	return path, nil
}

// StopRecording asks the writer to finalize and returns a Pending for the
// delivery, or nil when nothing is recording.
func (s *Session) StopRecording(policy aspect.Policy) *Pending {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return nil
	}
	rec := s.active
	s.active = nil
	s.state = StateConfigured
	p := newPending()
	s.inflight.Add(1)
	s.mu.Unlock()

	rec.sink.Finalize()
	go s.complete(rec, policy, s.now(), p)
	return p
}

func (s *Session) complete(rec *recording, policy aspect.Policy, stopped time.Time, p *Pending) {
	defer s.inflight.Done()

	err := <-rec.sink.Done()
	d := Delivery{Result: RecordingResult{
		ID:          rec.id,
		Path:        rec.path,
		Title:       rec.title,
		Aspect:      policy,
		Orientation: rec.orient,
		Started:     rec.started,
		Stopped:     stopped,
	}}
	log := s.log.With().Str("recording_id", rec.id).Str("path", rec.path).Logger()

	if err != nil {
		os.Remove(rec.path)
		d.Err = perr.WithOp(perr.Wrap(err, perr.ErrorCodeWriteFailed, "finalize recording"), "capture.stop")
		log.Error().Err(d.Err).Msg("recording lost")
		rec.metrics.Finish("", false, d.Err)
		p.resolve(d)
		return
	}

	d.Path = rec.path
	if policy.Crops() && s.cropper != nil {
		res := <-s.cropper.Crop(s.ctx, rec.path, policy)
		if res.Err != nil {
			rec.metrics.Fallback(res.Err)
		} else {
			d.Path = res.Path
			d.Cropped = true
			if !s.opts.KeepOriginal {
				if err := os.Remove(rec.path); err != nil {
					log.Warn().Err(err).Msg("failed to remove original after crop")
				}
			}
		}
	}

	rec.metrics.Finish(d.Path, d.Cropped, nil)
	p.resolve(d)
}

// UpdateOrientation re-reads the attitude for the live preview. Unknown
// attitudes keep the current value. An active recording is not affected.
func (s *Session) UpdateOrientation() Orientation {
	o := s.att.Current()

	s.mu.Lock()
	defer s.mu.Unlock()
	if o != OrientationUnknown {
		s.orient = o
	}
	return s.orient
}

// Preview returns the non-owning preview handle. After Close it is detached.
func (s *Session) Preview() *Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preview == nil {
		s.preview = &Preview{s: s}
		if s.state == StateClosed {
			s.preview.s = nil
		}
	}
	return s.preview
}

// Close finalizes an in-flight recording without cropping, waits for pending
// deliveries, detaches the preview and stops the device. Safe to call twice.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	wasActive := s.state != StateUnconfigured
	rec := s.active
	s.active = nil
	s.state = StateClosed
	preview := s.preview
	if rec != nil {
		s.inflight.Add(1)
	}
	s.mu.Unlock()

	if rec != nil {
		rec.sink.Finalize()
		p := newPending()
		go s.complete(rec, aspect.Original, s.now(), p)
	}
	if preview != nil {
		preview.detach()
	}

	s.inflight.Wait()
	s.cancel()

	if !wasActive {
		return nil
	}
	s.log.Info().Msg("capture session closed")
	return s.dev.Close()
}
