package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/livepid/tracker/internal/channel"
)

// timelineQueue is the command name the shared timeline reports its depth under.
const timelineQueue = "timeline"

// DefaultTimelineSize is the capacity of the shared timeline queue.
const DefaultTimelineSize = 4096

// ErrClosed is returned when dispatching to a queue after Close.
var ErrClosed = errors.New("dispatcher closed")

// Event represents an incoming command from the host feed.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
	timeline   bool
	await      bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Timeline puts the handler on the shared ordered queue. Every timeline
// handler runs on the same goroutine in dispatch order. Timeline dispatch
// blocks when the queue is full and never drops. Buffered is ignored.
func Timeline() Option {
	return func(c *config) {
		c.timeline = true
	}
}

// Await makes a timeline dispatch wait for the handler and return its result
// instead of "queued".
func Await() Option {
	return func(c *config) {
		c.timeline = true
		c.await = true
	}
}

type result struct {
	value any
	err   error
}

type job struct {
	event   Event
	handler HandlerFunc
	command string
	reply   chan result
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	// OTEL metrics
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter

	// Track buffers for gauge callback
	mu      sync.RWMutex
	buffers map[string]channel.Channel[Event]

	timeline     channel.Channel[job]
	timelineOnce sync.Once

	closeMu sync.RWMutex
	closed  bool
	workers sync.WaitGroup
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]channel.Channel[Event]),
		logger:   logger,
		timeline: channel.New[job](DefaultTimelineSize),
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for cmd, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(buf.Len()),
					metric.WithAttributes(attribute.String("command", cmd)))
			}
			o.ObserveInt64(d.queueSize, int64(d.timeline.Len()),
				metric.WithAttributes(attribute.String("command", timelineQueue)))
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	// Logging wraps the inner handler so queued handlers log when they run.
	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	switch {
	case cfg.timeline:
		handler = d.onTimeline(command, cfg.await, handler)
	case cfg.bufferSize > 0:
		handler = d.withBuffer(command, cfg.bufferSize, cfg.blocking, handler)
	}

	d.handlers[command] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Close stops accepting queued events, waits for every queue to drain and
// stops the worker goroutines. Sync handlers keep working.
func (d *Dispatcher) Close() {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return
	}
	d.closed = true
	d.timeline.Close()
	d.mu.RLock()
	for _, buf := range d.buffers {
		buf.Close()
	}
	d.mu.RUnlock()
	d.closeMu.Unlock()

	d.workers.Wait()
}

func (d *Dispatcher) startTimeline() {
	d.timelineOnce.Do(func() {
		d.workers.Add(1)
		go func() {
			defer d.workers.Done()
			for j := range d.timeline.Receive() {
				v, err := j.handler(j.event)
				d.processed.Add(context.Background(), 1,
					metric.WithAttributes(attribute.String("command", j.command)))
				if j.reply != nil {
					j.reply <- result{value: v, err: err}
				}
			}
		}()
	})
}

func (d *Dispatcher) onTimeline(command string, await bool, h HandlerFunc) HandlerFunc {
	d.startTimeline()

	return func(e Event) (any, error) {
		j := job{event: e, handler: h, command: command}
		if await {
			j.reply = make(chan result, 1)
		}

		d.closeMu.RLock()
		if d.closed {
			d.closeMu.RUnlock()
			return nil, ErrClosed
		}
		d.timeline.Send(j)
		d.closeMu.RUnlock()

		if !await {
			return "queued", nil
		}
		r := <-j.reply
		return r.value, r.err
	}
}

func (d *Dispatcher) withBuffer(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := channel.New[Event](size)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	cmdAttr := attribute.String("command", command)

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for e := range buffer.Receive() {
			h(e)
			d.processed.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
		}
	}()

	return func(e Event) (any, error) {
		d.closeMu.RLock()
		defer d.closeMu.RUnlock()
		if d.closed {
			return nil, ErrClosed
		}

		if blocking {
			buffer.Send(e)
			return "queued", nil
		}

		if buffer.TrySend(e) {
			return "queued", nil
		}
		d.dropped.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
		return nil, fmt.Errorf("queue full: %s", command)
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
