package session

import (
	"context"

	"github.com/OCAP2/animscope/internal/queue"
)

// commandQueue runs the model's fire-and-forget protocol calls on one
// goroutine, in the order the loop issued them.
type commandQueue struct {
	q    *queue.Queue[func()]
	wake chan struct{}
}

func newCommandQueue() *commandQueue {
	return &commandQueue{
		q:    queue.New[func()](),
		wake: make(chan struct{}, 1),
	}
}

// Exec enqueues f. It never blocks the loop.
func (c *commandQueue) Exec(f func()) {
	c.q.Push(f)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Len reports how many calls wait to be sent.
func (c *commandQueue) Len() int { return c.q.Len() }

// run sends queued calls until ctx is done. Calls left behind are dropped.
func (c *commandQueue) run(ctx context.Context) {
	for {
		for f, ok := c.q.Pop(); ok; f, ok = c.q.Pop() {
			if ctx.Err() != nil {
				return
			}
			f()
		}
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
		}
	}
}
