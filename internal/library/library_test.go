package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ivlev/scriptcam/internal/capture"
)

func touch(t *testing.T, path string, mod time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("v"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestListNewestFirstWithTitles(t *testing.T) {
	dir := t.TempDir()
	lib, err := NewDir(dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	touch(t, filepath.Join(dir, "video_Old_Take_1700000000.mov"), now.Add(-2*time.Hour))
	touch(t, filepath.Join(dir, "cropped_1700000100.mp4"), now)
	touch(t, filepath.Join(dir, "video_1700000050.mov"), now.Add(-time.Hour))
	touch(t, filepath.Join(dir, "notes.txt"), now.Add(time.Hour))

	entries, err := lib.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Name != "cropped_1700000100.mp4" || !entries[0].Cropped {
		t.Errorf("first = %+v", entries[0])
	}
	if last := entries[2]; last.Title != "Old Take" || last.Recorded.Unix() != 1700000000 {
		t.Errorf("last = %+v", last)
	}

	latest, err := lib.Latest()
	if err != nil || latest.Name != entries[0].Name {
		t.Errorf("Latest = %+v, %v", latest, err)
	}
}

func TestLatestEmpty(t *testing.T) {
	lib, _ := NewDir(t.TempDir(), nil)
	if _, err := lib.Latest(); err == nil {
		t.Error("expected error for empty library")
	}
}

func TestDeliverMovesForeignFile(t *testing.T) {
	lib, _ := NewDir(t.TempDir(), nil)
	src := filepath.Join(t.TempDir(), "video_1700000000.mov")
	touch(t, src, time.Now())

	d := capture.Delivery{Path: src, Result: capture.RecordingResult{ID: "r1", Path: src}}
	if err := lib.Deliver(context.Background(), d); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	got, ok := lib.Last()
	if !ok || filepath.Dir(got.Path) != lib.Path {
		t.Fatalf("last = %+v, %v", got, ok)
	}
	if _, err := os.Stat(got.Path); err != nil {
		t.Errorf("moved file missing: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source still present")
	}
}

func TestDeliverLostRecording(t *testing.T) {
	lib, _ := NewDir(t.TempDir(), nil)
	if _, ok := lib.Last(); ok {
		t.Fatal("empty library has a last delivery")
	}
	d := capture.Delivery{Err: errors.New("write failed")}
	if err := lib.Deliver(context.Background(), d); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got, ok := lib.Last(); !ok || got.Err == nil {
		t.Errorf("last = %+v, %v", got, ok)
	}
	entries, _ := lib.List()
	if len(entries) != 0 {
		t.Errorf("lost recording listed: %v", entries)
	}
}
