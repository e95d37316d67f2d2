// Package pump bridges synchronous callers to the SDK's single-threaded
// callback pump.
package pump

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shruggr/workshop/sdk"
)

// DefaultInterval is the wait between pump drives
const DefaultInterval = 50 * time.Millisecond

// Driver serializes access to an sdk.Pump. Drive holds the lock for exactly one
// RunCallbacks call so that several waiters can interleave.
type Driver struct {
	mu        sync.Mutex
	pump      sdk.Pump
	interval  time.Duration
	dedicated atomic.Bool
	drives    atomic.Uint64
	logger    *slog.Logger
}

// NewDriver wraps p. interval <= 0 selects DefaultInterval.
func NewDriver(p sdk.Pump, interval time.Duration, logger *slog.Logger) *Driver {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		pump:     p,
		interval: interval,
		logger:   logger,
	}
}

// Drive runs the SDK callbacks once
func (d *Driver) Drive() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pump.RunCallbacks()
	d.drives.Add(1)
}

// Drives returns how many times the pump has been driven
func (d *Driver) Drives() uint64 {
	return d.drives.Load()
}

// Interval returns the poll interval
func (d *Driver) Interval() time.Duration {
	return d.interval
}

// Dedicated reports whether a Run loop currently owns pump driving
func (d *Driver) Dedicated() bool {
	return d.dedicated.Load()
}

// Run drives the pump every interval until ctx is done. While it runs, Wait
// does not drive the pump and only blocks on the slot.
func (d *Driver) Run(ctx context.Context) {
	if !d.dedicated.CompareAndSwap(false, true) {
		d.logger.Warn("Pump driver already running")
		return
	}
	defer d.dedicated.Store(false)

	d.logger.Debug("Pump driver started", "interval", d.interval)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		d.Drive()
		select {
		case <-ctx.Done():
			d.logger.Debug("Pump driver stopped", "drives", d.Drives())
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until slot holds a value or ctx is done, driving the pump between
// checks unless a dedicated Run loop is active. On success the value is taken
// from the slot. Once ctx is done Wait never returns the value, even if it
// arrived in the same iteration.
func Wait[T any](ctx context.Context, d *Driver, slot *Slot[T]) (T, error) {
	var zero T

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		if !d.Dedicated() {
			d.Drive()
		}

		select {
		case <-slot.Ready():
			v, ok := slot.Take()
			if !ok {
				return zero, ErrTaken
			}
			if err := ctx.Err(); err != nil {
				return zero, err
			}
			return v, nil
		default:
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-slot.Ready():
		case <-ticker.C:
		}
	}
}
