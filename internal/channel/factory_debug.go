//go:build debug

package channel

// New returns an unbuffered channel in debug builds; size is ignored.
func New[T any](size int) Channel[T] {
	return NewUnbuffered[T]()
}
