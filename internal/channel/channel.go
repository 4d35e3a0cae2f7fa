// Package channel wraps the dispatcher's queues so debug builds can swap
// every queue for an unbuffered one.
package channel

// Receiver provides read access to a queue.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a queue.
type Sender[T any] interface {
	// Send blocks until the value is queued.
	Send(T)
	// TrySend queues the value only if that does not block.
	TrySend(T) bool
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}
