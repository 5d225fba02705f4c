package sim

import (
	"context"
	"sync/atomic"
	"time"
)

// Pacer maps simulated time onto wall time so a run can be watched live.
type Pacer struct {
	scale time.Duration // wall time per simulated time unit
	waits atomic.Int64
}

// NewPacer creates a pacer that spends scale of wall time per simulated unit.
func NewPacer(scale time.Duration) *Pacer {
	return &Pacer{scale: scale}
}

// Wait blocks for dt simulated units, or until ctx is done.
func (p *Pacer) Wait(ctx context.Context, dt float64) error {
	remaining := time.Duration(dt * float64(p.scale))
	if remaining <= 0 {
		return nil
	}
	p.waits.Add(1)

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Count returns how many non-zero waits the pacer has performed.
func (p *Pacer) Count() int64 {
	return p.waits.Load()
}
