package search

import (
	"context"
	"sync"
	"time"
)

// Debouncer coalesces rapid calls into one delayed call that runs with the most recent input.
//
// Each Call returns a channel that receives at most one value. The channel of a call that is
// superseded by a newer Call, or whose context ends first, is closed without a value; only
// the latest call ever delivers.
type Debouncer[In, Out any] struct {
	delay     time.Duration
	fn        func(context.Context, In) Out
	onDiscard func(In)

	mu      sync.Mutex
	gen     uint64
	pending *pendingCall[In, Out]
}

type pendingCall[In, Out any] struct {
	gen     uint64
	ctx     context.Context
	in      In
	out     chan Out
	timer   *time.Timer
	stopCtx func() bool
}

// NewDebouncer creates a debouncer that runs fn delay after the last Call.
// onDiscard, when non-nil, is invoked with the input of every call that does not deliver.
func NewDebouncer[In, Out any](delay time.Duration, fn func(context.Context, In) Out, onDiscard func(In)) *Debouncer[In, Out] {
	return &Debouncer[In, Out]{delay: delay, fn: fn, onDiscard: onDiscard}
}

// Call schedules fn(in), replacing any call still waiting for its delay.
func (d *Debouncer[In, Out]) Call(ctx context.Context, in In) <-chan Out {
	out := make(chan Out, 1)
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	if d.pending != nil {
		d.discardLocked(d.pending)
	}
	c := &pendingCall[In, Out]{gen: d.gen, ctx: ctx, in: in, out: out}
	c.timer = time.AfterFunc(d.delay, func() { d.fire(c) })
	c.stopCtx = context.AfterFunc(ctx, func() { d.abort(c) })
	d.pending = c
	return out
}

// discardLocked drops a call that has not fired yet. d.mu must be held.
func (d *Debouncer[In, Out]) discardLocked(c *pendingCall[In, Out]) {
	c.timer.Stop()
	c.stopCtx()
	if d.pending == c {
		d.pending = nil
	}
	close(c.out)
	if d.onDiscard != nil {
		d.onDiscard(c.in)
	}
}

func (d *Debouncer[In, Out]) abort(c *pendingCall[In, Out]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == c {
		d.discardLocked(c)
	}
}

func (d *Debouncer[In, Out]) fire(c *pendingCall[In, Out]) {
	d.mu.Lock()
	if d.pending != c {
		// Superseded or aborted between the timer firing and taking the lock.
		d.mu.Unlock()
		return
	}
	d.pending = nil
	d.mu.Unlock()
	c.stopCtx()

	result := d.fn(c.ctx, c.in)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != c.gen || c.ctx.Err() != nil {
		close(c.out)
		if d.onDiscard != nil {
			d.onDiscard(c.in)
		}
		return
	}
	c.out <- result
	close(c.out)
}

// Stop discards the pending call, if any.
func (d *Debouncer[In, Out]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.pending != nil {
		d.discardLocked(d.pending)
	}
}
