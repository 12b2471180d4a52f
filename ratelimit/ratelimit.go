// Package ratelimit provides the permit dispenser that paces embedding calls.
//
// A Dispenser emits permits into a channel of capacity one at a fixed
// interval of one minute divided by the tokens-per-minute budget. A consumer
// takes one permit per request, so no more than the budget of requests start
// in any minute, give or take the single buffered permit.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// ErrInvalidRate is returned for a non-positive tokens-per-minute budget.
var ErrInvalidRate = errors.New("ratelimit: tokens per minute must be positive")

// Dispenser emits permits at a fixed rate.
type Dispenser struct {
	interval time.Duration
	limiter  *rate.Limiter
	permits  chan struct{}
}

// NewDispenser creates a dispenser allowing tokensPerMinute permits per minute.
func NewDispenser(tokensPerMinute int) (*Dispenser, error) {
	if tokensPerMinute <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRate, tokensPerMinute)
	}
	interval := time.Minute / time.Duration(tokensPerMinute)
	return &Dispenser{
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		permits:  make(chan struct{}, 1),
	}, nil
}

// Interval returns the spacing between permits.
func (d *Dispenser) Interval() time.Duration { return d.interval }

// Run emits permits until ctx is cancelled. It returns nil on cancellation.
func (d *Dispenser) Run(ctx context.Context) error {
	for {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil //nolint:nilerr // cancellation is the normal stop signal
		}
		select {
		case d.permits <- struct{}{}:
		case <-ctx.Done():
			return nil
		}
	}
}

// Permits returns the channel permits are delivered on.
func (d *Dispenser) Permits() <-chan struct{} { return d.permits }

// Acquire blocks until a permit is available or ctx is done.
func (d *Dispenser) Acquire(ctx context.Context) error {
	select {
	case <-d.permits:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
