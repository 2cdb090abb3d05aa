// Package crop re-encodes a finished recording to a centered crop of a target
// aspect ratio, honouring the recording's orientation.
package crop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ivlev/scriptcam/internal/aspect"
	perr "github.com/ivlev/scriptcam/internal/errors"
	"github.com/ivlev/scriptcam/internal/logger"
	"github.com/ivlev/scriptcam/internal/system"
	"github.com/ivlev/scriptcam/internal/telemetry"
	"github.com/ivlev/scriptcam/internal/video"
)

// Prober reads the stream metadata of a file.
type Prober interface {
	Probe(ctx context.Context, path string) (*video.StreamInfo, error)
}

// Result is the outcome of one crop request.
type Result struct {
	Path     string
	Geometry Geometry
	Err      error
}

type Options struct {
	OutputDir    string // defaults to the source directory
	Encoder      string
	Quality      int
	MinFreeBytes uint64
	Workers      int

	DisplayRotation bool // see video.CropJob
}

type Transformer struct {
	prober Prober
	runner video.Runner
	opts   Options
	sem    *semaphore.Weighted
	now    func() time.Time
	space  func(ctx context.Context, dir string, min uint64) error
	stats  *telemetry.Recorder
	log    *logger.Logger
}

type Option func(*Transformer)

func WithClock(now func() time.Time) Option { return func(t *Transformer) { t.now = now } }

func WithTelemetry(r *telemetry.Recorder) Option { return func(t *Transformer) { t.stats = r } }

func WithLogger(l *logger.Logger) Option { return func(t *Transformer) { t.log = l } }

func NewTransformer(p Prober, r video.Runner, opts Options, o ...Option) *Transformer {
	if opts.Workers <= 0 {
		opts.Workers = system.ExportWorkers()
	}
	if opts.Quality <= 0 {
		opts.Quality = 20
	}
	t := &Transformer{
		prober: p,
		runner: r,
		opts:   opts,
		sem:    semaphore.NewWeighted(int64(opts.Workers)),
		now:    time.Now,
		space:  system.EnsureFreeSpace,
		log:    logger.Nop(),
	}
	for _, fn := range o {
		fn(t)
	}
	return t
}

// Crop starts an asynchronous export of src cropped to policy. The returned
// channel yields exactly one Result and is then closed. The export is not
// cancelled by ctx; only ctx values are kept.
func (t *Transformer) Crop(ctx context.Context, src string, policy aspect.Policy) <-chan Result {
	out := make(chan Result, 1)
	if !policy.Crops() {
		out <- Result{Path: src}
		close(out)
		return out
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(out)
		res := t.export(ctx, src, policy)
		t.stats.CropFinished(res.Err)
		out <- res
	}()
	return out
}

func (t *Transformer) export(ctx context.Context, src string, policy aspect.Policy) Result {
	dir := t.opts.OutputDir
	if dir == "" {
		dir = filepath.Dir(src)
	}
	log := t.log.With().Str("src", src).Str("aspect", policy.Name).Logger()

	var info *video.StreamInfo
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		i, err := t.prober.Probe(gctx, src)
		if err != nil {
			return perr.Wrap(err, perr.ErrorCodeCropFailed, "probe source")
		}
		info = i
		return nil
	})
	g.Go(func() error {
		if err := t.space(gctx, dir, t.opts.MinFreeBytes); err != nil {
			return perr.Wrap(err, perr.ErrorCodeCropFailed, "free space check")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{Err: perr.WithOp(err, "crop.preflight")}
	}

	natural := Size{W: float64(info.Width), H: float64(info.Height)}
	geo, err := Compute(natural, Orientation(info.Rotation, natural), policy.Ratio)
	if err != nil {
		return Result{Err: perr.Wrap(err, perr.ErrorCodeCropFailed, "crop geometry")}
	}

	if err := t.sem.Acquire(ctx, 1); err != nil {
		return Result{Err: perr.Wrap(err, perr.ErrorCodeCropFailed, "wait for export slot")}
	}
	defer t.sem.Release(1)

	dst := video.UniquePath(dir, fmt.Sprintf("cropped_%d", t.now().Unix()), ".mp4")
	w, h, x, y := geo.RenderRect()
	job := video.CropJob{
		Src:     src,
		Dst:     dst,
		Turns:   geo.Transform.QuarterTurns(),
		Width:   w,
		Height:  h,
		X:       x,
		Y:       y,
		Encoder: t.opts.Encoder,
		Quality: t.opts.Quality,
		Audio:   info.HasAudio,

		DisplayRotation: t.opts.DisplayRotation,
	}

	log.Debug().
		Int("rotation", info.Rotation).
		Str("render", fmt.Sprintf("%dx%d+%d+%d", w, h, x, y)).
		Msg("exporting crop")

	started := t.now()
	if err := t.runner.Run(ctx, job.Args()); err != nil {
		os.Remove(dst)
		return Result{Err: perr.WithOp(perr.Wrap(err, perr.ErrorCodeCropFailed, "export"), "crop.export")}
	}

	log.Info().Str("dst", dst).Dur("took", t.now().Sub(started)).Msg("crop exported")
	return Result{Path: dst, Geometry: geo}
}
