package notify

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/taxestimator-api/internal/lock"
	"github.com/noah-isme/taxestimator-api/internal/obs"
	"github.com/noah-isme/taxestimator-api/internal/reminder"
)

const scanLockKey = "reminder-scan"

// Locker runs fn only when the named lock is free.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Scanner looks for reminders due within Lookahead and queues one notify task per reminder.
type Scanner struct {
	Store     reminder.Store
	Queue     Enqueuer
	Locker    Locker
	LockTTL   time.Duration
	Lookahead time.Duration
	Batch     int
	MaxRetry  int
	Now       func() time.Time
	Logger    zerolog.Logger
}

// ScanResult summarises one scan.
type ScanResult struct {
	Due      int
	Enqueued int
	Skipped  int
}

// HandleScan is the asynq handler for TypeReminderScan. A scan that finds the
// lock held by another worker is a no-op.
func (s *Scanner) HandleScan(ctx context.Context, _ *asynq.Task) error {
	logger := obs.LoggerFrom(ctx, s.Logger)
	if s.Locker == nil {
		_, err := s.Scan(ctx)
		return err
	}
	err := s.Locker.TryWithLock(ctx, scanLockKey, s.LockTTL, func(ctx context.Context) error {
		_, err := s.Scan(ctx)
		return err
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		logger.Debug().Msg("reminder scan already running elsewhere")
		return nil
	}
	return err
}

// Scan lists due reminders and enqueues them.
func (s *Scanner) Scan(ctx context.Context) (ScanResult, error) {
	if s.Store == nil || s.Queue == nil {
		return ScanResult{}, errors.New("notify: scanner not configured")
	}
	logger := obs.LoggerFrom(ctx, s.Logger)
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	lookahead := s.Lookahead
	if lookahead < 0 {
		lookahead = 0
	}
	batch := s.Batch
	if batch <= 0 {
		batch = 200
	}

	due, err := s.Store.ListDue(ctx, now().UTC().Add(lookahead), batch)
	if err != nil {
		return ScanResult{}, err
	}
	obs.ObserveReminderScan(len(due))

	res := ScanResult{Due: len(due)}
	var errs error
	for _, r := range due {
		task, err := NewNotifyTask(r.ID, s.MaxRetry)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		if _, err := s.Queue.EnqueueContext(ctx, task); err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
				res.Skipped++
				continue
			}
			errs = errors.Join(errs, err)
			continue
		}
		res.Enqueued++
	}
	logger.Info().
		Int("due", res.Due).
		Int("enqueued", res.Enqueued).
		Int("skipped", res.Skipped).
		Msg("reminder scan finished")
	return res, errs
}
