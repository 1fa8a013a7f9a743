// Package devtools talks to a page over the remote debugging protocol. It
// implements the animation package's Gateway, Screencaster and NodeStyler on
// top of chromedp and forwards target events to a session.
package devtools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/OCAP2/animscope/internal/animation"
	"github.com/OCAP2/animscope/internal/cache"
	cdpanim "github.com/chromedp/cdproto/animation"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/css"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
)

// ErrNodeNotFound is returned when a backend node has no frontend id in the
// current document.
var ErrNodeNotFound = errors.New("node not found in document")

var (
	_ animation.Gateway      = (*Gateway)(nil)
	_ animation.Screencaster = (*Gateway)(nil)
	_ animation.NodeStyler   = (*Gateway)(nil)
)

// Gateway sends commands through a protocol executor, normally the chromedp
// target of a Target.
type Gateway struct {
	exec  cdp.Executor
	nodes *cache.NodeCache
	log   *slog.Logger

	mu        sync.Mutex
	styleInit bool
}

// NewGateway wraps exec. nodes may be shared with whoever resets it on
// navigation; nil creates a private cache.
func NewGateway(exec cdp.Executor, nodes *cache.NodeCache, logger *slog.Logger) *Gateway {
	if nodes == nil {
		nodes = cache.NewNodeCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{exec: exec, nodes: nodes, log: logger}
}

func (g *Gateway) with(ctx context.Context) context.Context {
	return cdp.WithExecutor(ctx, g.exec)
}

func (g *Gateway) Enable(ctx context.Context) error {
	return cdpanim.Enable().Do(g.with(ctx))
}

func (g *Gateway) Disable(ctx context.Context) error {
	return cdpanim.Disable().Do(g.with(ctx))
}

func (g *Gateway) SetPlaybackRate(ctx context.Context, rate float64) error {
	return cdpanim.SetPlaybackRate(rate).Do(g.with(ctx))
}

func (g *Gateway) ReleaseAnimations(ctx context.Context, ids []string) error {
	return cdpanim.ReleaseAnimations(ids).Do(g.with(ctx))
}

func (g *Gateway) SetTiming(ctx context.Context, id string, duration, delay float64) error {
	return cdpanim.SetTiming(id, duration, delay).Do(g.with(ctx))
}

func (g *Gateway) SeekAnimations(ctx context.Context, ids []string, t float64) error {
	return cdpanim.SeekAnimations(ids, t).Do(g.with(ctx))
}

func (g *Gateway) SetPaused(ctx context.Context, ids []string, paused bool) error {
	return cdpanim.SetPaused(ids, paused).Do(g.with(ctx))
}

func (g *Gateway) CurrentTime(ctx context.Context, id string) (float64, error) {
	return cdpanim.GetCurrentTime(id).Do(g.with(ctx))
}

func (g *Gateway) ResolveAnimation(ctx context.Context, id string) (*runtime.RemoteObject, error) {
	return cdpanim.ResolveAnimation(id).Do(g.with(ctx))
}

// StartScreencast starts the page screencast. Zero-valued params are left to
// the browser's defaults.
func (g *Gateway) StartScreencast(ctx context.Context, p animation.ScreencastParams) error {
	cmd := page.StartScreencast()
	if p.Format != "" {
		cmd = cmd.WithFormat(page.ScreencastFormat(p.Format))
	}
	if p.Quality > 0 {
		cmd = cmd.WithQuality(p.Quality)
	}
	if p.MaxWidth > 0 {
		cmd = cmd.WithMaxWidth(p.MaxWidth)
	}
	if p.MaxHeight > 0 {
		cmd = cmd.WithMaxHeight(p.MaxHeight)
	}
	if p.EveryNthFrame > 0 {
		cmd = cmd.WithEveryNthFrame(p.EveryNthFrame)
	}
	return cmd.Do(g.with(ctx))
}

func (g *Gateway) StopScreencast(ctx context.Context) error {
	return page.StopScreencast().Do(g.with(ctx))
}

// AckFrame confirms a screencast frame. The browser stops sending frames
// until the previous one is acknowledged.
func (g *Gateway) AckFrame(ctx context.Context, sessionID int64) error {
	return page.ScreencastFrameAck(sessionID).Do(g.with(ctx))
}

// SetNodeStyle overrides property on the node identified by backendNodeID.
func (g *Gateway) SetNodeStyle(ctx context.Context, backendNodeID int64, property, value string) error {
	ctx = g.with(ctx)
	if err := g.ensureStyling(ctx); err != nil {
		return err
	}
	nodeID, err := g.resolveNode(ctx, backendNodeID)
	if err != nil {
		return err
	}
	if err := css.SetEffectivePropertyValueForNode(cdp.NodeID(nodeID), property, value).Do(ctx); err != nil {
		return fmt.Errorf("setting %s on node %d: %w", property, backendNodeID, err)
	}
	return nil
}

// ResetNodes forgets every resolved node. Call it when the main frame
// navigates.
func (g *Gateway) ResetNodes() {
	g.mu.Lock()
	g.styleInit = false
	g.mu.Unlock()
	g.log.Debug("Forgetting resolved nodes", "count", g.nodes.Len())
	g.nodes.Reset()
}

// ensureStyling requests the document and enables the CSS domain once per
// document. Frontend node ids only exist after the document was requested.
func (g *Gateway) ensureStyling(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.styleInit {
		return nil
	}
	if _, err := dom.GetDocument().Do(ctx); err != nil {
		return fmt.Errorf("requesting document: %w", err)
	}
	if err := css.Enable().Do(ctx); err != nil {
		return fmt.Errorf("enabling css domain: %w", err)
	}
	g.styleInit = true
	return nil
}

func (g *Gateway) resolveNode(ctx context.Context, backendNodeID int64) (int64, error) {
	if id, ok := g.nodes.Get(backendNodeID); ok {
		return id, nil
	}
	ids, err := dom.PushNodesByBackendIDsToFrontend([]cdp.BackendNodeID{cdp.BackendNodeID(backendNodeID)}).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolving node %d: %w", backendNodeID, err)
	}
	if len(ids) == 0 || ids[0] == 0 {
		return 0, fmt.Errorf("%w: backend node %d", ErrNodeNotFound, backendNodeID)
	}
	id := int64(ids[0])
	g.nodes.Set(backendNodeID, id)
	return id, nil
}
