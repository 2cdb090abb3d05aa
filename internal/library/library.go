// Package library keeps finished recordings in one directory and lists them.
package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ivlev/scriptcam/internal/capture"
	"github.com/ivlev/scriptcam/internal/logger"
	"github.com/ivlev/scriptcam/internal/video"
)

var extensions = []string{".mp4", ".mov", ".m4v", ".mkv"}

// Entry is one video in the library.
type Entry struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Title    string    `json:"title"`
	Recorded time.Time `json:"recorded"`
	Modified time.Time `json:"modified"`
	Size     int64     `json:"size"`
	Cropped  bool      `json:"cropped"`
}

// Dir is a library rooted at a directory.
type Dir struct {
	Path string

	log *logger.Logger

	mu   sync.Mutex
	last *capture.Delivery
}

func NewDir(path string, log *logger.Logger) (*Dir, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("create library %s: %w", path, err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Dir{Path: path, log: log}, nil
}

// Deliver takes ownership of a finished recording. Files written elsewhere
// are moved into the library directory. A lost recording is remembered but
// has no file to keep.
func (l *Dir) Deliver(_ context.Context, d capture.Delivery) error {
	if d.Err == nil && d.Path != "" && filepath.Dir(d.Path) != filepath.Clean(l.Path) {
		base := filepath.Base(d.Path)
		ext := filepath.Ext(base)
		dst := video.UniquePath(l.Path, strings.TrimSuffix(base, ext), ext)
		if err := os.Rename(d.Path, dst); err != nil {
			return fmt.Errorf("move %s into library: %w", d.Path, err)
		}
		d.Path = dst
	}

	l.mu.Lock()
	l.last = &d
	l.mu.Unlock()

	if d.Err != nil {
		l.log.Warn().Err(d.Err).Str("recording_id", d.Result.ID).Msg("recording not delivered")
		return nil
	}
	l.log.Info().Str("path", d.Path).Bool("cropped", d.Cropped).Str("title", d.Result.Title).Msg("video saved")
	return nil
}

// Last returns the most recent delivery, if any.
func (l *Dir) Last() (capture.Delivery, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last == nil {
		return capture.Delivery{}, false
	}
	return *l.last, true
}

// List returns the videos in the library, newest first.
func (l *Dir) List() ([]Entry, error) {
	files, err := os.ReadDir(l.Path)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, f := range files {
		if f.IsDir() || !isVideo(f.Name()) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		e := Entry{
			Path:     filepath.Join(l.Path, f.Name()),
			Name:     f.Name(),
			Modified: info.ModTime(),
			Size:     info.Size(),
			Cropped:  strings.HasPrefix(f.Name(), "cropped_"),
		}
		if title, ts, ok := capture.ParseName(f.Name()); ok {
			e.Title = title
			e.Recorded = ts
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Modified.After(entries[j].Modified)
	})
	return entries, nil
}

// Latest returns the newest video in the library.
func (l *Dir) Latest() (Entry, error) {
	entries, err := l.List()
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, fmt.Errorf("no videos found in %s", l.Path)
	}
	return entries[0], nil
}

func isVideo(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
