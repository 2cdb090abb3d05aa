package aspect

import (
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", Original, false},
		{"Original", Original, false},
		{"full", Original, false},
		{"9:16", R9x16, false},
		{"9x16", R9x16, false},
		{" 4:5 ", R4x5, false},
		{"1X1", R1x1, false},
		{"16:9", Policy{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOriginalDoesNotCrop(t *testing.T) {
	if Original.Crops() {
		t.Fatal("Original must not crop")
	}
	for _, p := range All[1:] {
		if !p.Crops() {
			t.Errorf("%s should crop", p)
		}
	}
	if Original.ShortName() != "Full" {
		t.Errorf("short name = %q", Original.ShortName())
	}
}

func TestFitKeepsRatio(t *testing.T) {
	sizes := [][2]float64{{1080, 1920}, {1920, 1080}, {1000, 1000}, {720, 1280}}
	for _, p := range All[1:] {
		for _, s := range sizes {
			w, h := p.Fit(s[0], s[1])
			if w > s[0]+1e-9 || h > s[1]+1e-9 {
				t.Errorf("%s fit %v exceeds frame: %.2fx%.2f", p, s, w, h)
			}
			if math.Abs(w/h-p.Ratio) > 1e-9 {
				t.Errorf("%s fit %v ratio = %f", p, s, w/h)
			}
		}
	}
	if w, h := Original.Fit(640, 480); w != 640 || h != 480 {
		t.Errorf("Original fit changed size: %vx%v", w, h)
	}
}
