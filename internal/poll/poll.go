// Package poll provides the bounded retry loop used by trade
// confirmation: run a step up to N times with a fixed delay, letting the
// step decide when the loop is done.
package poll

import (
	"context"
	"errors"
	"time"
)

// Outcome tells the loop what to do after a step.
type Outcome int

const (
	// Continue retries after the delay.
	Continue Outcome = iota
	// Done stops the loop successfully.
	Done
	// Failed stops the loop with the step's error.
	Failed
)

// ErrExhausted is returned when every attempt asked to continue.
var ErrExhausted = errors.New("poll: attempts exhausted")

// Clock abstracts sleeping so tests drive the loop without real delays.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock sleeps on the wall clock, honoring context cancellation.
type RealClock struct{}

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Step runs one attempt. attempt is 1-based.
type Step func(ctx context.Context, attempt int) (Outcome, error)

// Run executes step up to attempts times, sleeping delay between tries.
// No delay follows the final attempt. attempts < 1 runs once.
func Run(ctx context.Context, attempts int, delay time.Duration, clock Clock, step Step) error {
	if attempts < 1 {
		attempts = 1
	}
	if clock == nil {
		clock = RealClock{}
	}
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := step(ctx, i)
		switch outcome {
		case Done:
			return nil
		case Failed:
			if err == nil {
				err = errors.New("poll: step failed")
			}
			return err
		}
		if i < attempts {
			if err := clock.Sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
	return ErrExhausted
}
