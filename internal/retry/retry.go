// Package retry provides the bounded fixed-delay polling loop shared by
// dataset provisioning and load verification.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrExhausted is returned when all attempts complete without the
// terminal condition being reached.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Policy is a bounded poll: MaxAttempts tries separated by a fixed Delay.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Do invokes fn until it reports done, returns an error, or attempts run
// out. fn returning (false, nil) means "not yet visible, keep polling".
// The sleep between attempts respects ctx cancellation.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) (done bool, err error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == attempts {
			break
		}
		log.Info().
			Str("op", op).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("delay", p.Delay).
			Msg("condition not met, waiting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	return ErrExhausted
}
