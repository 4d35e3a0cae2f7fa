//go:build debug

package channel

// New ignores size in debug builds: every send waits for the consumer, which
// surfaces ordering assumptions between producers and handlers.
func New[T any](size int) Channel[T] {
	return NewUnbuffered[T]()
}
