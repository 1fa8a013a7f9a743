package animation

import (
	"context"

	"github.com/chromedp/cdproto/runtime"
)

// Gateway issues Animation domain commands to the debugging target.
type Gateway interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	SetPlaybackRate(ctx context.Context, rate float64) error
	ReleaseAnimations(ctx context.Context, ids []string) error
	SetTiming(ctx context.Context, id string, duration, delay float64) error
	SeekAnimations(ctx context.Context, ids []string, t float64) error
	SetPaused(ctx context.Context, ids []string, paused bool) error
	CurrentTime(ctx context.Context, id string) (float64, error)
	ResolveAnimation(ctx context.Context, id string) (*runtime.RemoteObject, error)
}

// ScreencastParams configures the page screencast used for thumbnails.
type ScreencastParams struct {
	Format        string
	Quality       int64
	MaxWidth      int64
	MaxHeight     int64
	EveryNthFrame int64
}

// DefaultScreencastParams returns JPEG at quality 80, 300px high, every
// second frame.
func DefaultScreencastParams() ScreencastParams {
	return ScreencastParams{
		Format:        "jpeg",
		Quality:       80,
		MaxHeight:     300,
		EveryNthFrame: 2,
	}
}

// Screencaster starts and stops the page screencast.
type Screencaster interface {
	StartScreencast(ctx context.Context, params ScreencastParams) error
	StopScreencast(ctx context.Context) error
}

// NodeStyler overrides a computed style property on a DOM node.
type NodeStyler interface {
	SetNodeStyle(ctx context.Context, backendNodeID int64, property, value string) error
}
