// Package channel provides generic channel wrappers used as event loop
// inboxes.
package channel

import "context"

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	Send(T)
	// TrySend enqueues without blocking and reports whether it did.
	TrySend(T) bool
	// SendContext blocks until the value is enqueued or ctx is done.
	SendContext(context.Context, T) error
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}
