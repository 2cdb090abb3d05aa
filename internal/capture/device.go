package capture

import (
	"context"

	"github.com/ivlev/scriptcam/internal/aspect"
	"github.com/ivlev/scriptcam/internal/crop"
)

type MediaType int

const (
	MediaVideo MediaType = iota
	MediaAudio
)

func (m MediaType) String() string {
	if m == MediaAudio {
		return "audio"
	}
	return "video"
}

// Authorizer grants or denies access to a media type. Authorize may block on
// a user prompt until ctx is done.
type Authorizer interface {
	Authorize(ctx context.Context, media MediaType) (bool, error)
}

// StaticAuthorizer answers from fixed flags.
type StaticAuthorizer struct {
	Video bool
	Audio bool
}

func (a StaticAuthorizer) Authorize(_ context.Context, media MediaType) (bool, error) {
	if media == MediaAudio {
		return a.Audio, nil
	}
	return a.Video, nil
}

// Output describes one record-to-file request.
type Output struct {
	Path        string
	Orientation Orientation
	Rotation    int
}

// Sink is an in-progress file write. Finalize asks the writer to flush and
// close; Done yields the outcome exactly once.
type Sink interface {
	Finalize()
	Done() <-chan error
}

// Device is a capture input with a running session.
type Device interface {
	// Available fails with a device-unavailable error when no input matches.
	Available(ctx context.Context) error
	// Start begins running the capture session.
	Start(ctx context.Context) error
	// Record starts writing to out.Path. ctx bounds the writer's lifetime.
	Record(ctx context.Context, out Output) (Sink, error)
	// Ext is the container extension of recordings, with the dot.
	Ext() string
	Close() error
}

// Cropper re-encodes a finished recording to an aspect ratio.
type Cropper interface {
	Crop(ctx context.Context, src string, policy aspect.Policy) <-chan crop.Result
}
