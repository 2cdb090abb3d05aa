package capture

import (
	"strings"
	"testing"
	"time"
)

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"":                     "",
		"Hello World":          "Hello_World",
		"  spaced   out  ":     "spaced_out",
		`a/b\c:d*e?f"g<h>i|j`:  "abcdefghij",
		"dots.in.title":        "dotsintitle",
		"tab\tand\nnewline":    "tab_and_newline",
		"日本語 タイトル":             "日本語_タイトル",
		"under_score":          "under_score",
		"???":                  "",
	}
	for in, want := range tests {
		if got := Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
	if n := len([]rune(Sanitize(strings.Repeat("x", 200)))); n != maxTitleRunes {
		t.Errorf("long title kept %d runes", n)
	}
}

func TestStemAndParseName(t *testing.T) {
	at := time.Unix(1700000000, 0)
	tests := []struct {
		title string
		stem  string
		back  string
	}{
		{"", "video_1700000000", ""},
		{"Launch Day", "video_Launch_Day_1700000000", "Launch Day"},
		{"2024 recap", "video_2024_recap_1700000000", "2024 recap"},
	}
	for _, tt := range tests {
		stem := Stem(tt.title, at)
		if stem != tt.stem {
			t.Errorf("Stem(%q) = %q, want %q", tt.title, stem, tt.stem)
		}
		title, ts, ok := ParseName("/videos/" + stem + ".mov")
		if !ok || title != tt.back || !ts.Equal(at) {
			t.Errorf("ParseName(%q) = %q, %v, %v", stem, title, ts, ok)
		}
	}
}

func TestParseNameVariants(t *testing.T) {
	if title, _, ok := ParseName("cropped_1700000000.mp4"); !ok || title != "" {
		t.Errorf("cropped name: %q %v", title, ok)
	}
	if title, _, ok := ParseName("video_Intro_1700000000_3.mov"); !ok || title != "Intro" {
		t.Errorf("suffixed name: %q %v", title, ok)
	}
	at := time.Unix(1760000000, 0)
	for _, title := range []string{"Order 123456789", "202510191"} {
		stem := Stem(title, at)
		got, ts, ok := ParseName(stem + ".mp4")
		if !ok || got != title || !ts.Equal(at) {
			t.Errorf("ParseName(%q) = %q, %v, %v", stem, got, ts, ok)
		}
		got, ts, ok = ParseName(stem + "_2.mp4")
		if !ok || got != title || !ts.Equal(at) {
			t.Errorf("ParseName(%q_2) = %q, %v, %v", stem, got, ts, ok)
		}
	}
	for _, bad := range []string{"holiday.mov", "video_.mov", "video_title.mov"} {
		if _, _, ok := ParseName(bad); ok {
			t.Errorf("ParseName(%q) accepted", bad)
		}
	}
}

func TestParseOrientation(t *testing.T) {
	for o, name := range orientationNames {
		got, err := ParseOrientation(strings.ToUpper(strings.ReplaceAll(name, "_", "-")))
		if err != nil || got != o {
			t.Errorf("ParseOrientation(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseOrientation("sideways"); err == nil {
		t.Error("expected error")
	}
}
