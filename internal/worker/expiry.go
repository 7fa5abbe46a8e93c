package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper expires overdue pending reservations created before the cutoff.
type Sweeper interface {
	ExpireOverdue(ctx context.Context, createdBefore time.Time) (int, error)
}

// ExpiryWorker periodically expires reservations whose payment window has
// elapsed. Failed sweeps back off exponentially; a successful sweep resets
// the backoff.
type ExpiryWorker struct {
	sweeper       Sweeper
	paymentWindow time.Duration
	sweepInterval time.Duration
	backoff       Backoff
	logger        zerolog.Logger
}

func NewExpiryWorker(sweeper Sweeper, paymentWindow, sweepInterval time.Duration, logger *zerolog.Logger) *ExpiryWorker {
	if paymentWindow <= 0 {
		paymentWindow = 48 * time.Hour
	}
	if sweepInterval <= 0 {
		sweepInterval = 15 * time.Minute
	}
	return &ExpiryWorker{
		sweeper:       sweeper,
		paymentWindow: paymentWindow,
		sweepInterval: sweepInterval,
		backoff: Backoff{
			Initial: 10 * time.Second,
			Max:     sweepInterval,
			Factor:  2,
		},
		logger: logger.With().Str("component", "expiry_worker").Logger(),
	}
}

// Run sweeps until the context is cancelled. It sweeps once immediately so a
// restart does not wait a full interval to catch up.
func (w *ExpiryWorker) Run(ctx context.Context) {
	w.logger.Info().
		Dur("payment_window", w.paymentWindow).
		Dur("sweep_interval", w.sweepInterval).
		Msg("expiry worker started")

	failures := 0
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("expiry worker stopped")
			return
		case <-timer.C:
		}

		if err := w.Sweep(ctx); err != nil {
			failures++
			delay := w.backoff.Delay(failures)
			w.logger.Error().Err(err).Dur("retry_in", delay).Msg("sweep failed")
			timer.Reset(delay)
			continue
		}

		failures = 0
		timer.Reset(w.sweepInterval)
	}
}

// Sweep runs a single expiry pass.
func (w *ExpiryWorker) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-w.paymentWindow)
	expired, err := w.sweeper.ExpireOverdue(ctx, cutoff)
	if err != nil {
		return err
	}
	if expired > 0 {
		w.logger.Info().Int("expired", expired).Msg("expired overdue reservations")
	}
	return nil
}
