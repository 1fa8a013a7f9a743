package devtools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/animscope/internal/cache"
	"github.com/OCAP2/animscope/internal/config"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// ErrNoPageTarget is returned when the browser has no page to attach to.
var ErrNoPageTarget = errors.New("no page target available")

// Target is an attached debugging target.
type Target struct {
	*Gateway

	ID  target.ID
	URL string

	ctx         context.Context
	cancel      context.CancelFunc
	cancelAlloc context.CancelFunc
	log         *slog.Logger
}

// Connect attaches to a page of the browser listening at cfg.URL. An empty
// cfg.TargetID picks the first page target. ctx bounds the connection
// attempt only; the attachment lives until Close.
func Connect(ctx context.Context, cfg config.BrowserConfig, nodes *cache.NodeCache, logger *slog.Logger) (*Target, error) {
	if logger == nil {
		logger = slog.Default()
	}
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), cfg.URL)
	stop := context.AfterFunc(ctx, cancelAlloc)
	defer stop()

	id := target.ID(cfg.TargetID)
	if id == "" {
		picked, err := probePage(allocCtx, logger)
		if err != nil {
			cancelAlloc()
			return nil, fmt.Errorf("connecting to %s: %w", cfg.URL, err)
		}
		id = picked
	}

	tctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithTargetID(id))
	if err := chromedp.Run(tctx); err != nil {
		cancel()
		cancelAlloc()
		return nil, fmt.Errorf("attaching to target %s: %w", id, err)
	}

	c := chromedp.FromContext(tctx)
	t := &Target{
		Gateway:     NewGateway(c.Target, nodes, logger),
		ID:          id,
		ctx:         tctx,
		cancel:      cancel,
		cancelAlloc: cancelAlloc,
		log:         logger,
	}
	info, err := target.GetTargetInfo().WithTargetID(id).Do(cdp.WithExecutor(tctx, c.Browser))
	if err != nil {
		logger.Warn("Failed to read target info", "targetId", id, "error", err)
	} else {
		t.URL = info.URL
	}
	logger.Info("Attached to target", "targetId", id, "url", t.URL)
	return t, nil
}

// probePage lists the browser's targets through a throwaway tab. Cancelling
// the probe context closes that tab again.
func probePage(allocCtx context.Context, logger *slog.Logger) (target.ID, error) {
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if err := chromedp.Run(browserCtx); err != nil {
		return "", err
	}
	infos, err := chromedp.Targets(browserCtx)
	if err != nil {
		return "", fmt.Errorf("listing targets: %w", err)
	}
	probe := chromedp.FromContext(browserCtx).Target.TargetID
	info := pickPage(infos, probe)
	if info == nil {
		return "", ErrNoPageTarget
	}
	logger.Debug("Picked page target", "targetId", info.TargetID, "url", info.URL, "targets", len(infos))
	return info.TargetID, nil
}

// pickPage returns the first page target other than skip.
func pickPage(infos []*target.Info, skip target.ID) *target.Info {
	for _, info := range infos {
		if info.Type == "page" && info.TargetID != skip {
			return info
		}
	}
	return nil
}

// Context is the chromedp context bound to the target.
func (t *Target) Context() context.Context { return t.ctx }

// Listen forwards target events to sink until the target is closed.
func (t *Target) Listen(sink Sink) {
	chromedp.ListenTarget(t.ctx, newListener(sink, t.ackFrame, t.log))
}

// ackFrame runs off the listener goroutine; chromedp listeners must not
// issue commands.
func (t *Target) ackFrame(sessionID int64) {
	go func() {
		if err := t.AckFrame(t.ctx, sessionID); err != nil && t.ctx.Err() == nil {
			t.log.Warn("Failed to ack screencast frame", "session", sessionID, "error", err)
		}
	}()
}

// Close detaches from the target without closing the page. chromedp closes
// every target still held by a cancelled context, so the handle is dropped
// first.
func (t *Target) Close() {
	if c := chromedp.FromContext(t.ctx); c != nil && c.Target != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if id := c.Target.SessionID; id != "" && c.Browser != nil {
			err := target.DetachFromTarget().WithSessionID(id).Do(cdp.WithExecutor(ctx, c.Browser))
			if err != nil {
				t.log.Debug("Failed to detach from target", "targetId", t.ID, "error", err)
			}
		}
		cancel()
		c.Target = nil
	}
	t.cancel()
	t.cancelAlloc()
}
