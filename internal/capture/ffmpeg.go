package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	perr "github.com/ivlev/scriptcam/internal/errors"
	"github.com/ivlev/scriptcam/internal/logger"
	"github.com/ivlev/scriptcam/internal/video"
)

// FinalizeTimeout bounds how long ffmpeg may take to close a file after it
// was asked to quit.
const FinalizeTimeout = 10 * time.Second

// FFmpegInput selects the capture input. Format is an ffmpeg input device:
// v4l2, avfoundation, dshow, or lavfi for a synthetic source.
type FFmpegInput struct {
	Format      string `yaml:"format" validate:"required,oneof=v4l2 avfoundation dshow lavfi"`
	Video       string `yaml:"video" validate:"required"`
	Audio       string `yaml:"audio"`
	AudioFormat string `yaml:"audioFormat"`
	Size        string `yaml:"size"`
	FPS         int    `yaml:"fps" validate:"gte=0,lte=240"`
}

// FFmpegDevice records through an ffmpeg child process per file.
type FFmpegDevice struct {
	Bin     string
	Input   FFmpegInput
	Encoder string
	Quality int
	// DisplayRotation tags recordings with -display_rotation instead of the
	// rotate metadata; set it for ffmpeg >= video.DisplayRotationSince.
	DisplayRotation bool

	log *logger.Logger

	mu      sync.Mutex
	running bool
	sinks   map[*ffmpegSink]struct{}
}

func NewFFmpegDevice(bin string, in FFmpegInput, encoder string, quality int, log *logger.Logger) *FFmpegDevice {
	if bin == "" {
		bin = "ffmpeg"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &FFmpegDevice{
		Bin:     bin,
		Input:   in,
		Encoder: encoder,
		Quality: quality,
		log:     log,
		sinks:   make(map[*ffmpegSink]struct{}),
	}
}

// Authorize maps file permissions of a v4l2 node to a video grant. Other
// inputs have no permission model ffmpeg can query and are granted.
func (d *FFmpegDevice) Authorize(_ context.Context, media MediaType) (bool, error) {
	if media != MediaVideo || d.Input.Format != "v4l2" {
		return true, nil
	}
	f, err := os.Open(d.Input.Video)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return false, nil
		}
		// a missing node is reported by Available
		return true, nil
	}
	f.Close()
	return true, nil
}

func (d *FFmpegDevice) Available(ctx context.Context) error {
	if _, err := exec.LookPath(d.Bin); err != nil {
		return perr.DeviceUnavailablef("ffmpeg not found: %v", err)
	}
	switch d.Input.Format {
	case "v4l2":
		if _, err := os.Stat(d.Input.Video); err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return perr.PermissionDeniedf("camera %s: %v", d.Input.Video, err)
			}
			return perr.DeviceUnavailablef("camera %s: %v", d.Input.Video, err)
		}
	case "":
		return perr.DeviceUnavailablef("no capture input configured")
	}
	return nil
}

func (d *FFmpegDevice) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = true
	d.log.Debug().Str("format", d.Input.Format).Str("video", d.Input.Video).Msg("capture input ready")
	return nil
}

func (d *FFmpegDevice) Ext() string { return ".mp4" }

func (d *FFmpegDevice) Record(ctx context.Context, out Output) (Sink, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil, perr.NotReadyf("capture input not started")
	}

	args := d.RecordArgs(out)
	cmd := exec.CommandContext(ctx, d.Bin, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	s := &ffmpegSink{
		cmd:    cmd,
		stdin:  stdin,
		out:    &tailBuffer{max: 4096},
		done:   make(chan error, 1),
		exited: make(chan struct{}),
		log:    d.log,
	}
	cmd.Stderr = s.out

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	d.sinks[s] = struct{}{}
	d.log.Debug().Strs("args", args).Msg("ffmpeg recording")

	go func() {
		err := cmd.Wait()
		if err != nil {
			err = fmt.Errorf("ffmpeg wait error: %v, output: %s", err, s.out.String())
		}
		d.mu.Lock()
		delete(d.sinks, s)
		d.mu.Unlock()
		close(s.exited)
		s.done <- err
		close(s.done)
	}()
	return s, nil
}

// RecordArgs builds the ffmpeg command line for out.
func (d *FFmpegDevice) RecordArgs(out Output) []string {
	in := d.Input
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}

	videoIn := in.Video
	if in.Format == "avfoundation" && in.Audio != "" {
		// avfoundation takes "video:audio" as one input
		videoIn = in.Video + ":" + in.Audio
	}
	args = append(args, "-f", in.Format)
	if in.Format != "lavfi" {
		if in.FPS > 0 {
			args = append(args, "-framerate", strconv.Itoa(in.FPS))
		}
		if in.Size != "" {
			args = append(args, "-video_size", in.Size)
		}
	}
	rotIn, rotOut := video.RotationArgs(out.Rotation, d.DisplayRotation)
	args = append(args, rotIn...)
	args = append(args, "-i", videoIn)

	hasAudio := in.Audio != ""
	if hasAudio && in.Format != "avfoundation" {
		af := in.AudioFormat
		if af == "" {
			af = in.Format
		}
		args = append(args, "-f", af, "-i", in.Audio)
		args = append(args, "-map", "0:v:0", "-map", "1:a:0")
	}

	enc := d.Encoder
	if enc == "" {
		enc = "libx264"
	}
	args = append(args, "-c:v", enc, "-pix_fmt", "yuv420p")
	args = append(args, video.QualityArgs(enc, d.Quality)...)
	if hasAudio {
		args = append(args, "-c:a", "aac", "-b:a", "128k")
	}
	args = append(args, rotOut...)
	return append(args, out.Path)
}

// Close asks every running writer to finalize and waits for the processes
// to exit. Their outcome is still delivered through each sink's Done.
func (d *FFmpegDevice) Close() error {
	d.mu.Lock()
	d.running = false
	sinks := make([]*ffmpegSink, 0, len(d.sinks))
	for s := range d.sinks {
		sinks = append(sinks, s)
	}
	d.mu.Unlock()

	for _, s := range sinks {
		s.Finalize()
		<-s.exited
	}
	return nil
}

type ffmpegSink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    *tailBuffer
	done   chan error
	exited chan struct{}
	log    *logger.Logger
	once   sync.Once
}

// Finalize sends "q" so ffmpeg writes the trailer, killing it if it does not
// exit within FinalizeTimeout.
func (s *ffmpegSink) Finalize() {
	s.once.Do(func() {
		if _, err := io.WriteString(s.stdin, "q"); err != nil {
			s.log.Debug().Err(err).Msg("ffmpeg stdin closed early")
		}
		s.stdin.Close()

		timer := time.AfterFunc(FinalizeTimeout, func() {
			if s.cmd.Process != nil {
				s.log.Warn().Msg("ffmpeg did not finalize in time, killing")
				s.cmd.Process.Kill()
			}
		})
		go func() {
			<-s.exited
			timer.Stop()
		}()
	})
}

// Done yields the process outcome once. Later reads see a closed channel and
// a nil error.
func (s *ffmpegSink) Done() <-chan error { return s.done }

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if over := b.buf.Len() - b.max; over > 0 {
		b.buf.Next(over)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(bytes.TrimSpace(b.buf.Bytes()))
}
