package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/ivlev/scriptcam/internal/logger"
)

// Recorder tracks process-wide recording and export counters.
type Recorder struct {
	log *logger.Logger

	totalRecordings  atomic.Uint64
	activeRecordings atomic.Int64
	totalDelivered   atomic.Uint64
	writeFailures    atomic.Uint64
	totalCrops       atomic.Uint64
	cropFailures     atomic.Uint64
	cropFallbacks    atomic.Uint64
}

// Snapshot captures cumulative metrics recorded so far.
type Snapshot struct {
	TotalRecordings  uint64 `json:"totalRecordings"`
	ActiveRecordings int64  `json:"activeRecordings"`
	TotalDelivered   uint64 `json:"totalDelivered"`
	WriteFailures    uint64 `json:"writeFailures"`
	TotalCrops       uint64 `json:"totalCrops"`
	CropFailures     uint64 `json:"cropFailures"`
	CropFallbacks    uint64 `json:"cropFallbacks"`
}

// NewRecorder constructs a Recorder using the provided logger.
func NewRecorder(log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.Get()
	}
	l := log.With().Str("component", "telemetry").Logger()
	return &Recorder{log: &l}
}

// Snapshot returns an immutable view of the recorder totals.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		TotalRecordings:  r.totalRecordings.Load(),
		ActiveRecordings: r.activeRecordings.Load(),
		TotalDelivered:   r.totalDelivered.Load(),
		WriteFailures:    r.writeFailures.Load(),
		TotalCrops:       r.totalCrops.Load(),
		CropFailures:     r.cropFailures.Load(),
		CropFallbacks:    r.cropFallbacks.Load(),
	}
}

// CropFinished counts one export attempt.
func (r *Recorder) CropFinished(err error) {
	if r == nil {
		return
	}
	r.totalCrops.Add(1)
	if err != nil {
		r.cropFailures.Add(1)
	}
}

// LogSummary writes the totals at info level.
func (r *Recorder) LogSummary() {
	if r == nil {
		return
	}
	s := r.Snapshot()
	r.log.Info().
		Uint64("recordings", s.TotalRecordings).
		Uint64("delivered", s.TotalDelivered).
		Uint64("write_failures", s.WriteFailures).
		Uint64("crops", s.TotalCrops).
		Uint64("crop_failures", s.CropFailures).
		Uint64("crop_fallbacks", s.CropFallbacks).
		Msg("session totals")
}

// RecordingMetrics follows a single recording from start to delivery.
type RecordingMetrics struct {
	recorder *Recorder
	log      *logger.Logger

	id      string
	started time.Time
	closed  atomic.Bool
}

// StartRecording registers a new active recording.
func (r *Recorder) StartRecording(id, path string) *RecordingMetrics {
	if r == nil {
		return nil
	}
	l := r.log.With().Str("recording_id", id).Str("path", path).Logger()

	r.totalRecordings.Add(1)
	r.activeRecordings.Add(1)

	return &RecordingMetrics{
		recorder: r,
		log:      &l,
		id:       id,
		started:  time.Now(),
	}
}

// Fallback notes that the crop failed and the original was delivered.
func (m *RecordingMetrics) Fallback(err error) {
	if m == nil {
		return
	}
	m.recorder.cropFallbacks.Add(1)
	m.log.Warn().Err(err).Msg("crop failed, delivering original")
}

// Finish logs a summary and updates the active counter. Only the first call counts.
func (m *RecordingMetrics) Finish(path string, cropped bool, err error) {
	if m == nil {
		return
	}
	if !m.closed.CompareAndSwap(false, true) {
		return
	}
	defer m.recorder.activeRecordings.Add(-1)

	ev := m.log.Info()
	if err != nil {
		m.recorder.writeFailures.Add(1)
		ev = m.log.Error().Err(err)
	} else {
		m.recorder.totalDelivered.Add(1)
	}
	ev.Dur("duration", time.Since(m.started)).
		Str("final", path).
		Bool("cropped", cropped).
		Msg("recording finished")
}
