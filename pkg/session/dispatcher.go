package session

import (
	"context"
	"sync"
)

// Dispatcher runs every session callback on one goroutine. Sources post
// events from any goroutine; events run in arrival order.
type Dispatcher struct {
	handler func(Event)

	mu     sync.Mutex
	queue  []Event
	closed bool
	wake   chan struct{}
}

// NewDispatcher creates a dispatcher that hands events to handler
func NewDispatcher(handler func(Event)) *Dispatcher {
	return &Dispatcher{
		handler: handler,
		wake:    make(chan struct{}, 1),
	}
}

// Post queues an event without blocking. It reports false once the
// dispatcher is closed.
func (d *Dispatcher) Post(ev Event) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, ev)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of queued events
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Run handles events until ctx is done or the dispatcher is closed
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		d.RunPending()

		d.mu.Lock()
		closed := d.closed
		d.mu.Unlock()
		if closed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.wake:
		}
	}
}

// RunPending handles every event queued so far on the calling goroutine
// and returns how many ran. Events posted while draining run too.
func (d *Dispatcher) RunPending() int {
	n := 0
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return n
		}
		ev := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.handler(ev)
		n++
	}
}

// Close stops accepting events and wakes Run so it returns
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.queue = nil
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}
