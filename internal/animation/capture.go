package animation

import (
	"context"
	"math"
	"time"
)

// DefaultMaxCaptureWindow bounds how long a single request keeps the
// screencast running.
const DefaultMaxCaptureWindow = 3 * time.Second

// Clock abstracts wall time for the capture deadline.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type frameSink interface {
	addScreenshot(frame string)
}

type captureRequest struct {
	endTime time.Time
	sink    frameSink
}

// ScreenshotCapture runs the page screencast while at least one group still
// wants thumbnails.
type ScreenshotCapture struct {
	model        *Model
	screencaster Screencaster
	clock        Clock
	params       ScreencastParams
	maxWindow    time.Duration

	requests  []captureRequest
	endTime   time.Time
	stopTimer Timer
	// generation invalidates stop timers scheduled before the latest
	// deadline change or stop.
	generation uint64
	capturing  bool
}

func newScreenshotCapture(m *Model, sc Screencaster, clock Clock, params ScreencastParams, maxWindow time.Duration) *ScreenshotCapture {
	return &ScreenshotCapture{
		model:        m,
		screencaster: sc,
		clock:        clock,
		params:       params,
		maxWindow:    maxWindow,
	}
}

// Capturing reports whether the screencast is running.
func (c *ScreenshotCapture) Capturing() bool { return c.capturing }

// Requests returns the number of live capture requests.
func (c *ScreenshotCapture) Requests() int { return len(c.requests) }

// EndTime is the shared deadline, zero when idle.
func (c *ScreenshotCapture) EndTime() time.Time { return c.endTime }

// CaptureScreenshots asks for frames for the next duration ms of page time,
// scaled by the playback rate and capped at the max window. It returns the
// wall-clock window granted to the request.
func (c *ScreenshotCapture) CaptureScreenshots(duration float64, sink frameSink) time.Duration {
	windowMs := math.Min(duration/c.model.playbackRate, float64(c.maxWindow/time.Millisecond))
	if math.IsNaN(windowMs) || windowMs < 0 {
		windowMs = 0
	}
	window := time.Duration(windowMs * float64(time.Millisecond))
	end := c.clock.Now().Add(window)
	c.requests = append(c.requests, captureRequest{endTime: end, sink: sink})

	if c.endTime.IsZero() || end.After(c.endTime) {
		if c.stopTimer != nil {
			c.stopTimer.Stop()
		}
		c.generation++
		gen := c.generation
		c.stopTimer = c.clock.AfterFunc(window, func() {
			c.model.post(func() {
				if c.generation == gen {
					c.Stop()
				}
			})
		})
		c.endTime = end
	}

	if c.capturing {
		return window
	}
	c.capturing = true
	params := c.params
	c.model.fire("startScreencast", func(ctx context.Context) error {
		return c.screencaster.StartScreencast(ctx, params)
	})
	return window
}

// HandleFrame fans a base64 frame out to every request whose window is
// still open. Expired requests are dropped.
func (c *ScreenshotCapture) HandleFrame(data string) {
	if !c.capturing {
		return
	}
	now := c.clock.Now()
	live := c.requests[:0]
	for _, r := range c.requests {
		if !r.endTime.Before(now) {
			live = append(live, r)
		}
	}
	clear(c.requests[len(live):])
	c.requests = live

	for _, r := range c.requests {
		r.sink.addScreenshot(data)
	}
	if len(c.requests) > 0 {
		c.model.metrics.frames.Add(context.Background(), int64(len(c.requests)))
	}
}

// Stop ends the screencast and forgets all requests.
func (c *ScreenshotCapture) Stop() {
	if !c.capturing {
		return
	}
	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.stopTimer = nil
	}
	c.generation++
	c.requests = nil
	c.endTime = time.Time{}
	c.capturing = false
	c.model.fire("stopScreencast", func(ctx context.Context) error {
		return c.screencaster.StopScreencast(ctx)
	})
}
