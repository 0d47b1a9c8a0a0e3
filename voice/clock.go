package voice

import (
	"context"
	"sync/atomic"
	"time"
)

// FrameClock stands in for the timer B interrupt. Each period it posts a
// "frame elapsed" signal into a single-slot mailbox; the loop that owns the
// speech voice drains it and calls Advance. A tick that finds the slot full
// is counted as an overrun and dropped.
type FrameClock struct {
	period  time.Duration
	c       chan struct{}
	restart chan struct{}
	done    chan struct{}
	running atomic.Bool
	ticks   atomic.Uint64
	overrun atomic.Uint64
}

func NewFrameClock(period time.Duration) *FrameClock {
	if period <= 0 {
		period = DefaultFramePeriod
	}
	return &FrameClock{
		period:  period,
		c:       make(chan struct{}, 1),
		restart: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// C is the mailbox.
func (fc *FrameClock) C() <-chan struct{} {
	return fc.c
}

// Period returns the tick interval.
func (fc *FrameClock) Period() time.Duration { return fc.period }

// Run ticks until ctx is cancelled (blocking - run in goroutine). Run may
// be called once.
func (fc *FrameClock) Run(ctx context.Context) {
	ticker := time.NewTicker(fc.period)
	defer ticker.Stop()
	fc.running.Store(true)
	defer close(fc.done)

	for {
		select {
		case <-ctx.Done():
			fc.running.Store(false)
			return
		case <-fc.restart:
			ticker.Reset(fc.period)
			fc.drain()
		case <-ticker.C:
			fc.Signal()
		}
	}
}

// Restart starts a new period now and drops a pending tick, so the next
// tick arrives one full period later. Call it from the mailbox consumer
// when an utterance starts.
func (fc *FrameClock) Restart() {
	if !fc.running.Load() {
		fc.drain()
		return
	}
	select {
	case fc.restart <- struct{}{}:
	case <-fc.done:
		fc.drain()
	}
}

func (fc *FrameClock) drain() {
	select {
	case <-fc.c:
	default:
	}
}

// Signal posts one tick without blocking.
func (fc *FrameClock) Signal() {
	fc.ticks.Add(1)
	select {
	case fc.c <- struct{}{}:
	default:
		fc.overrun.Add(1)
	}
}

// Stats returns the number of ticks and overruns so far.
func (fc *FrameClock) Stats() (ticks, overruns uint64) {
	return fc.ticks.Load(), fc.overrun.Load()
}
