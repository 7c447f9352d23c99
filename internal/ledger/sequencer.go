package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"bankledger/internal/infrastructure/lock"

	"github.com/rs/zerolog"
)

// Sequencer hands out strictly increasing values for named counters using
// only Get and CompareAndSwap on the store. Callers in one process are
// serialized per counter; across processes the compare-and-swap decides.
type Sequencer struct {
	store       CounterStore
	local       *lock.LocalLocker
	maxAttempts int
	backoff     time.Duration
	log         zerolog.Logger
}

func NewSequencer(store CounterStore, opts Options, log zerolog.Logger) *Sequencer {
	attempts := opts.MaxConflictRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	return &Sequencer{
		store:       store,
		local:       lock.NewLocalLocker(),
		maxAttempts: attempts,
		backoff:     opts.RetryBackoff,
		log:         log,
	}
}

// Next returns the next value of counter name. The value is persisted
// before it is returned.
func (s *Sequencer) Next(ctx context.Context, name string) (int64, error) {
	release, err := s.local.Acquire(ctx, name)
	if err != nil {
		return 0, err
	}
	defer release()

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := s.wait(ctx, attempt); err != nil {
				return 0, err
			}
		}

		cur, err := s.store.Get(ctx, name)
		if err != nil {
			lastErr = err
			continue
		}
		ok, err := s.store.CompareAndSwap(ctx, name, cur, cur+1)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return cur + 1, nil
		}
		lastErr = nil
		s.log.Debug().Str("counter", name).Int64("seen", cur).Int("attempt", attempt).Msg("counter race")
	}

	if lastErr != nil {
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return 0, lastErr
		}
		return 0, fmt.Errorf("%w: counter %s: %v", ErrStoreUnavailable, name, lastErr)
	}
	return 0, fmt.Errorf("%w: counter %s", ErrCounterRace, name)
}

func (s *Sequencer) wait(ctx context.Context, attempt int) error {
	d := s.backoff * time.Duration(attempt)
	if d > 0 {
		d += time.Duration(rand.Int63n(int64(d)/2 + 1))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// NextValue is shorthand for e.Sequencer().Next.
func (e *Engine) NextValue(ctx context.Context, name string) (int64, error) {
	return e.seq.Next(ctx, name)
}
