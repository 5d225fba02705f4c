// internal/sim/engine.go

package sim

import (
	"context"

	"github.com/emirpasic/gods/trees/redblacktree"
)

// Event is a callback registered with the engine for a point in simulated time.
type Event struct {
	key       eventKey
	fn        func()
	fired     bool
	cancelled bool
}

// At reports the simulated time the event is due.
func (ev *Event) At() float64 { return ev.key.at }

// Pending reports whether the event is still waiting to fire.
func (ev *Event) Pending() bool { return ev != nil && !ev.fired && !ev.cancelled }

// Engine is a single-threaded discrete-event loop. Callbacks run one at a
// time, in non-decreasing time order, and events due at the same time fire
// in the order they were scheduled.
type Engine struct {
	now   float64
	seq   uint64
	queue *redblacktree.Tree // ordered by (at, seq)
	pacer *Pacer
}

// NewEngine returns an engine with its clock at zero.
func NewEngine() *Engine {
	return &Engine{queue: redblacktree.NewWith(cmpEvent)}
}

// SetPacer stretches the run onto the wall clock. A nil pacer runs as fast
// as possible.
func (e *Engine) SetPacer(p *Pacer) { e.pacer = p }

// Now returns the current simulated time.
func (e *Engine) Now() float64 { return e.now }

// Pending returns the number of events waiting to fire.
func (e *Engine) Pending() int { return e.queue.Size() }

// Schedule registers fn to run delay time units from now. Negative delays
// are treated as zero.
func (e *Engine) Schedule(delay float64, fn func()) *Event {
	if delay < 0 {
		delay = 0
	}
	return e.At(e.now+delay, fn)
}

// At registers fn to run at the absolute time t, or now if t has passed.
func (e *Engine) At(t float64, fn func()) *Event {
	if t < e.now {
		t = e.now
	}
	e.seq++
	ev := &Event{key: eventKey{at: t, seq: e.seq}, fn: fn}
	e.queue.Put(ev.key, ev)
	return ev
}

// Cancel withdraws an event that has not fired yet. It reports whether the
// event was still pending.
func (e *Engine) Cancel(ev *Event) bool {
	if !ev.Pending() {
		return false
	}
	ev.cancelled = true
	e.queue.Remove(ev.key)
	return true
}

// RunUntil fires every event due strictly before until and then moves the
// clock to until. Events due exactly at until stay queued, so work injected
// at that instant runs ahead of them. The clock never moves backward.
func (e *Engine) RunUntil(ctx context.Context, until float64) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		node := e.queue.Left()
		if node == nil {
			break
		}
		key := node.Key.(eventKey)
		if key.at >= until {
			break
		}
		ev := node.Value.(*Event)
		e.queue.Remove(key)

		if err := e.advance(ctx, key.at); err != nil {
			// put it back so a later run still sees it
			e.queue.Put(key, ev)
			return err
		}
		ev.fired = true
		ev.fn()
	}

	if until > e.now {
		return e.advance(ctx, until)
	}
	return nil
}

// Drain fires every queued event regardless of time.
func (e *Engine) Drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		node := e.queue.Left()
		if node == nil {
			return nil
		}
		key := node.Key.(eventKey)
		if err := e.advance(ctx, key.at); err != nil {
			return err
		}
		ev := node.Value.(*Event)
		e.queue.Remove(key)
		ev.fired = true
		ev.fn()
	}
}

func (e *Engine) advance(ctx context.Context, t float64) error {
	if t <= e.now {
		return nil
	}
	if e.pacer != nil {
		if err := e.pacer.Wait(ctx, t-e.now); err != nil {
			return err
		}
	}
	e.now = t
	return nil
}

// eventKey orders events by due time, then by registration order.
type eventKey struct {
	at  float64
	seq uint64
}

func cmpEvent(a, b any) int {
	ka, kb := a.(eventKey), b.(eventKey)
	switch {
	case ka.at < kb.at:
		return -1
	case ka.at > kb.at:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}
