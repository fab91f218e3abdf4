package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock gives components read access to simulation time without
// depending on the controller driving it.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the listeners allow while still stepping by Tick.
	Accelerated
)

// ModeFromFlag returns Accelerated when accelerated is set.
func ModeFromFlag(accelerated bool) Mode {
	if accelerated {
		return Accelerated
	}
	return RealTime
}

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// TimeController drives simulation time in fixed steps and notifies
// registered listeners after every step.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	steps       int

	listeners []func(time.Time)
}

var _ SimClock = (*TimeController)(nil)

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime moves the simulation clock without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// Steps returns how many steps have been taken.
func (tc *TimeController) Steps() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.steps
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Advance moves simulation time forward by one Tick and runs the listeners
// synchronously. It returns the new simulation time.
func (tc *TimeController) Advance() time.Time {
	tc.mu.Lock()
	tc.currentTime = tc.currentTime.Add(tc.Tick)
	tc.steps++
	now := tc.currentTime
	listeners := append([]func(time.Time){}, tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(now)
	}
	return now
}

// Start runs the controller for the specified simulated duration in a
// separate goroutine, beginning at StartTime. A non-positive duration runs
// until ctx is cancelled. The returned channel is closed when the
// controller finishes.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.SetTime(tc.StartTime)
		if tc.Tick <= 0 {
			return
		}

		var tickC <-chan time.Time
		if tc.Mode == RealTime {
			ticker := time.NewTicker(tc.Tick)
			defer ticker.Stop()
			tickC = ticker.C
		}

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}
			if tickC != nil {
				select {
				case <-ctx.Done():
					return
				case <-tickC:
				}
			} else if ctx.Err() != nil {
				return
			}

			tc.Advance()
			elapsed += tc.Tick
		}
	}()
	return done
}
