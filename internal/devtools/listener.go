package devtools

import (
	"log/slog"

	"github.com/chromedp/cdproto"
	cdpanim "github.com/chromedp/cdproto/animation"
	"github.com/chromedp/cdproto/page"
)

// Sink accepts protocol events for later processing. Deliver must not block.
type Sink interface {
	Deliver(method string, params any) bool
}

// newListener returns a chromedp target listener that forwards the events
// the animation model consumes. Every screencast frame is acked through ack,
// even when the sink is full, so the stream keeps flowing.
func newListener(sink Sink, ack func(sessionID int64), logger *slog.Logger) func(ev any) {
	return func(ev any) {
		var method cdproto.MethodType
		switch e := ev.(type) {
		case *cdpanim.EventAnimationCreated:
			method = cdproto.EventAnimationAnimationCreated
		case *cdpanim.EventAnimationCanceled:
			method = cdproto.EventAnimationAnimationCanceled
		case *cdpanim.EventAnimationStarted:
			method = cdproto.EventAnimationAnimationStarted
		case *page.EventScreencastFrame:
			ack(e.SessionID)
			method = cdproto.EventPageScreencastFrame
		case *page.EventFrameNavigated:
			method = cdproto.EventPageFrameNavigated
		default:
			return
		}
		if !sink.Deliver(method.String(), ev) {
			logger.Warn("Session inbox full, dropping event", "method", method)
		}
	}
}
