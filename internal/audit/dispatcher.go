package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit count and discard events instead of waiting for
	// buffer space.
	DropIfFull bool
}

// pending is one queued event plus the emitting call's context, detached
// from its cancellation so sinks still see request-scoped values.
type pending struct {
	ctx   context.Context
	event Event
}

// Dispatcher forwards session audit events to a sink on one background
// goroutine, in emission order.
type Dispatcher struct {
	dropIfFull bool
	sink       Sink

	// stop releases senders blocked on a full queue; mu then guards queue
	// against a send racing its close.
	stop     chan struct{}
	stopOnce sync.Once
	mu       sync.RWMutex
	closed   bool
	queue    chan pending

	drained   chan struct{}
	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher starts a dispatcher. It returns nil when cfg is disabled; a
// nil *Dispatcher accepts and ignores every call.
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

	d := &Dispatcher{
		dropIfFull: cfg.DropIfFull,
		sink:       sink,
		stop:       make(chan struct{}),
		queue:      make(chan pending, size),
		drained:    make(chan struct{}),
	}
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer close(d.drained)
	for p := range d.queue {
		d.sink.Emit(p.ctx, p.event)
		d.delivered.Add(1)
	}
}

// Emit queues event. Events emitted after Shutdown are ignored. Without
// DropIfFull, Emit waits for buffer space until ctx is done, and an event
// abandoned that way counts as dropped.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	p := pending{ctx: context.WithoutCancel(ctx), event: event}
	if d.dropIfFull {
		select {
		case d.queue <- p:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- p:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
		d.dropped.Add(1)
	}
}

// Shutdown stops intake and waits until every queued event reached the sink
// or ctx is done, whichever comes first. It returns ctx.Err() when delivery
// did not finish in time; the remaining events are still delivered in the
// background. Shutdown may be called more than once.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if d == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.stopOnce.Do(func() { close(d.stop) })
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is Shutdown without a deadline.
func (d *Dispatcher) Close() {
	_ = d.Shutdown(context.Background())
}

// Dropped returns how many events never reached the queue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered returns how many events the sink has received.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
