package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards events when the queue is full instead of making
	// the request wait for the sink.
	DropIfFull bool
	// RequestID extracts the request id stamped on events that lack one.
	RequestID func(context.Context) string
	// Now stamps events that lack a timestamp. Defaults to time.Now.
	Now func() time.Time
}

// pending is an event together with the request context it was raised in,
// detached from the request's cancellation so sinks can still read
// request-scoped values after the response is written.
type pending struct {
	ctx   context.Context
	event Event
}

// Dispatcher relays events from request goroutines to a single sink
// goroutine. Events reach the sink in the order they were accepted.
type Dispatcher struct {
	sink      Sink
	queue     chan pending
	drop      bool
	requestID func(context.Context) string
	now       func() time.Time

	stop    chan struct{}
	drained chan struct{}
	closing sync.Once
	closed  atomic.Bool

	dropped atomic.Uint64
}

// NewDispatcher starts the sink goroutine. A disabled config returns nil,
// and every method is safe on a nil *Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	d := &Dispatcher{
		sink:      sink,
		queue:     make(chan pending, size),
		drop:      cfg.DropIfFull,
		requestID: cfg.RequestID,
		now:       now,
		stop:      make(chan struct{}),
		drained:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.drained)
	for {
		select {
		case p := <-d.queue:
			d.sink.Emit(p.ctx, p.event)
		case <-d.stop:
			for {
				select {
				case p := <-d.queue:
					d.sink.Emit(p.ctx, p.event)
				default:
					return
				}
			}
		}
	}
}

// Emit stamps event with a timestamp and the request id from ctx when they
// are missing, then queues it. With DropIfFull a full queue drops the
// event; otherwise Emit waits for room, ctx cancellation or Close.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now().UTC()
	}
	if event.RequestID == "" && d.requestID != nil {
		event.RequestID = d.requestID(ctx)
	}
	p := pending{ctx: context.WithoutCancel(ctx), event: event}

	if d.drop {
		select {
		case d.queue <- p:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- p:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close stops accepting events and returns once the queue has drained to
// the sink. It is idempotent.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closing.Do(func() {
		d.closed.Store(true)
		close(d.stop)
	})
	<-d.drained
}

// Dropped is the number of events discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
