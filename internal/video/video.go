package video

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes one ffmpeg invocation.
type Runner interface {
	Run(ctx context.Context, args []string) error
}

type FFmpeg struct {
	Bin string
}

func (f FFmpeg) bin() string {
	if f.Bin == "" {
		return "ffmpeg"
	}
	return f.Bin
}

// Run executes ffmpeg and reports the tail of its output on failure.
func (f FFmpeg) Run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, f.bin(), args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg error: %v, output: %s", err, tail(out, 2048))
	}
	return nil
}

// QualityArgs maps a 0..100 style quality knob onto the encoder's own option.
func QualityArgs(encoder string, quality int) []string {
	switch encoder {
	case "h264_videotoolbox":
		// VideoToolbox has no constant quality mode on every build; use a bitrate
		bitrate := quality * 100 // kbit/s, 75 -> 7.5 Mbit/s
		return []string{"-b:v", fmt.Sprintf("%dk", bitrate)}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default: // libx264
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
}

// DisplayRotationSince is the first ffmpeg major release that takes the
// -display_rotation input option. Later releases no longer turn the rotate
// metadata tag into a display matrix.
const DisplayRotationSince = 6

// RotationArgs returns the input and output options that tag a video stream
// with a clockwise display rotation. With displayRotation the matrix is set on
// the input and kept through encoding; otherwise the legacy rotate tag is
// written on the output.
func RotationArgs(clockwise int, displayRotation bool) (input, output []string) {
	cw := ((clockwise % 360) + 360) % 360
	if displayRotation {
		// -display_rotation is counter-clockwise
		return []string{"-display_rotation", strconv.Itoa((360 - cw) % 360), "-noautorotate"}, nil
	}
	return nil, []string{"-metadata:s:v:0", "rotate=" + strconv.Itoa(cw)}
}

// CropJob is a center crop re-encode of Src into Dst. The crop rectangle is in
// displayed (already rotated) coordinates.
type CropJob struct {
	Src, Dst string
	Turns    int // clockwise quarter turns applied before cropping
	Width    int
	Height   int
	X, Y     int
	Encoder  string
	Quality  int
	Audio    bool

	DisplayRotation bool // ffmpeg >= DisplayRotationSince
}

// Args builds the ffmpeg argument list. Autorotation is disabled so the
// rotation is applied exactly once, by the transpose filters, and the output
// carries no rotation: an identity display matrix on newer ffmpeg, rotate=0
// on older ones.
func (j CropJob) Args() []string {
	filters := RotationFilters(j.Turns)
	filters = append(filters, fmt.Sprintf("crop=%d:%d:%d:%d", j.Width, j.Height, j.X, j.Y))

	args := []string{"-y"}
	if j.DisplayRotation {
		args = append(args, "-display_rotation", "0")
	}
	args = append(args,
		"-noautorotate",
		"-i", j.Src,
		"-vf", strings.Join(filters, ","),
		"-map", "0:v:0",
	)
	if j.Audio {
		args = append(args, "-map", "0:a?", "-c:a", "copy")
	}

	enc := j.Encoder
	if enc == "" {
		enc = "libx264"
	}
	args = append(args, "-c:v", enc, "-pix_fmt", "yuv420p")
	args = append(args, QualityArgs(enc, j.Quality)...)
	if !j.DisplayRotation {
		args = append(args, "-metadata:s:v:0", "rotate=0")
	}
	args = append(args, "-movflags", "+faststart", j.Dst)
	return args
}

// RotationFilters returns the filters that rotate a frame clockwise by turns
// quarter turns.
func RotationFilters(turns int) []string {
	switch ((turns % 4) + 4) % 4 {
	case 1:
		return []string{"transpose=clock"}
	case 2:
		return []string{"hflip", "vflip"}
	case 3:
		return []string{"transpose=cclock"}
	default:
		return nil
	}
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return strings.TrimSpace(string(b))
}
