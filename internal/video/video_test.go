package video

import (
	"reflect"
	"strings"
	"testing"
)

func TestQualityArgs(t *testing.T) {
	tests := []struct {
		encoder string
		quality int
		want    []string
	}{
		{"h264_videotoolbox", 75, []string{"-b:v", "7500k"}},
		{"h264_nvenc", 23, []string{"-cq", "23"}},
		{"libx264", 20, []string{"-crf", "20", "-preset", "medium"}},
		{"", 18, []string{"-crf", "18", "-preset", "medium"}},
	}
	for _, tt := range tests {
		if got := QualityArgs(tt.encoder, tt.quality); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("QualityArgs(%q, %d) = %v, want %v", tt.encoder, tt.quality, got, tt.want)
		}
	}
}

func TestCropJobArgs(t *testing.T) {
	job := CropJob{
		Src: "in.mov", Dst: "out.mp4",
		Turns: 1, Width: 1080, Height: 1080, X: 0, Y: 420,
		Encoder: "libx264", Quality: 20, Audio: true,
	}
	args := strings.Join(job.Args(), " ")

	for _, want := range []string{
		"-noautorotate -i in.mov",
		"-vf transpose=clock,crop=1080:1080:0:420",
		"-map 0:a? -c:a copy",
		"-c:v libx264 -pix_fmt yuv420p -crf 20",
		"-metadata:s:v:0 rotate=0",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args missing %q:\n%s", want, args)
		}
	}
	if !strings.HasSuffix(args, " out.mp4") {
		t.Errorf("output must be last: %s", args)
	}
}

func TestCropJobArgsDisplayMatrix(t *testing.T) {
	job := CropJob{Src: "in.mov", Dst: "out.mp4", Turns: 1, Width: 1080, Height: 1080, DisplayRotation: true}
	args := strings.Join(job.Args(), " ")
	if !strings.HasPrefix(args, "-y -display_rotation 0 -noautorotate -i in.mov") {
		t.Errorf("display matrix not reset on input: %s", args)
	}
	if strings.Contains(args, "rotate=") {
		t.Errorf("legacy rotate tag written: %s", args)
	}
}

func TestRotationArgs(t *testing.T) {
	tests := []struct {
		cw      int
		display bool
		in, out []string
	}{
		{90, true, []string{"-display_rotation", "270", "-noautorotate"}, nil},
		{270, true, []string{"-display_rotation", "90", "-noautorotate"}, nil},
		{0, true, []string{"-display_rotation", "0", "-noautorotate"}, nil},
		{180, false, nil, []string{"-metadata:s:v:0", "rotate=180"}},
		{-90, false, nil, []string{"-metadata:s:v:0", "rotate=270"}},
	}
	for _, tt := range tests {
		in, out := RotationArgs(tt.cw, tt.display)
		if !reflect.DeepEqual(in, tt.in) || !reflect.DeepEqual(out, tt.out) {
			t.Errorf("RotationArgs(%d, %v) = %v, %v", tt.cw, tt.display, in, out)
		}
	}
}

func TestRotationFilters(t *testing.T) {
	if f := RotationFilters(0); len(f) != 0 {
		t.Errorf("0 turns = %v", f)
	}
	if f := RotationFilters(2); !reflect.DeepEqual(f, []string{"hflip", "vflip"}) {
		t.Errorf("2 turns = %v", f)
	}
	if f := RotationFilters(-1); !reflect.DeepEqual(f, []string{"transpose=cclock"}) {
		t.Errorf("-1 turns = %v", f)
	}
}

func TestParseProbeRotateTag(t *testing.T) {
	data := []byte(`{
		"streams": [
			{"codec_type": "audio"},
			{"codec_type": "video", "width": 1920, "height": 1080, "duration": "12.5", "tags": {"rotate": "90"}}
		],
		"format": {"duration": "12.6"}
	}`)
	info, err := ParseProbe(data)
	if err != nil {
		t.Fatalf("ParseProbe: %v", err)
	}
	if info.Width != 1920 || info.Height != 1080 || info.Rotation != 90 {
		t.Errorf("info = %+v", info)
	}
	if !info.HasAudio || info.Duration != 12.5 {
		t.Errorf("audio/duration = %v/%v", info.HasAudio, info.Duration)
	}
}

func TestParseProbeDisplayMatrix(t *testing.T) {
	data := []byte(`{
		"streams": [{"codec_type": "video", "width": 1280, "height": 720,
			"side_data_list": [{"side_data_type": "Display Matrix", "rotation": 90}]}],
		"format": {"duration": "3.0"}
	}`)
	info, err := ParseProbe(data)
	if err != nil {
		t.Fatalf("ParseProbe: %v", err)
	}
	if info.Rotation != 270 {
		t.Errorf("rotation = %d, want 270", info.Rotation)
	}
	if info.Duration != 3 {
		t.Errorf("duration fallback = %v", info.Duration)
	}
}

func TestParseProbeErrors(t *testing.T) {
	for name, data := range map[string]string{
		"garbage":  `{`,
		"no video": `{"streams":[{"codec_type":"audio"}]}`,
		"no size":  `{"streams":[{"codec_type":"video"}]}`,
	} {
		if _, err := ParseProbe([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
