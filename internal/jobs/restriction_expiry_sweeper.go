// restriction_expiry_sweeper.go implements the RestrictionExpirySweeper background job,
// which periodically lifts admin restrictions whose expiry has passed. Accounts are
// already treated as unrestricted once their expiry passes; the sweep brings the stored
// state in line and records a RESTRICTION_REMOVED ledger entry for each account as the
// SYSTEM actor. Every lift goes through the restriction engine, so a restriction that an
// admin replaced or lifted since the candidate query ran is left alone.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/castline/castline/internal/config"
	"github.com/castline/castline/internal/db/models"
	"github.com/castline/castline/internal/restriction"
	"github.com/castline/castline/internal/telemetry"
)

// ExpiredRestrictionLister finds sweep candidates.
type ExpiredRestrictionLister interface {
	ListExpiredRestrictions(ctx context.Context, now time.Time, limit int) ([]*models.Account, error)
}

// RestrictionLifter lifts one expired restriction.
type RestrictionLifter interface {
	LiftExpiredRestriction(ctx context.Context, actor restriction.Actor, targetID string) (*restriction.Result, error)
}

// RestrictionExpirySweeper periodically lifts expired restrictions.
type RestrictionExpirySweeper struct {
	accounts  ExpiredRestrictionLister
	engine    RestrictionLifter
	actor     restriction.Actor
	interval  time.Duration
	batchSize int
	enabled   bool
	now       func() time.Time
	stopChan  chan struct{}
}

// NewRestrictionExpirySweeper creates a new RestrictionExpirySweeper.
func NewRestrictionExpirySweeper(accounts ExpiredRestrictionLister, engine RestrictionLifter, cfg *config.TrustConfig) *RestrictionExpirySweeper {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	batch := cfg.SweepBatchSize
	if batch <= 0 {
		batch = 100
	}
	return &RestrictionExpirySweeper{
		accounts:  accounts,
		engine:    engine,
		actor:     restriction.SystemActor(cfg.SystemActorID),
		interval:  interval,
		batchSize: batch,
		enabled:   cfg.SweepEnabled,
		now:       func() time.Time { return time.Now().UTC() },
		stopChan:  make(chan struct{}),
	}
}

// Start runs a sweep immediately and then on every interval until ctx is
// cancelled or Stop is called. It returns at once when the sweep is disabled.
func (s *RestrictionExpirySweeper) Start(ctx context.Context) {
	if !s.enabled {
		slog.Info("restriction expiry sweeper: disabled (trust.sweep_enabled=false)")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("restriction expiry sweeper started", "interval", s.interval, "batch_size", s.batchSize)

	s.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.stopChan:
			slog.Info("restriction expiry sweeper stopped")
			return
		case <-ctx.Done():
			slog.Info("restriction expiry sweeper context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (s *RestrictionExpirySweeper) Stop() {
	close(s.stopChan)
}

// RunOnce lifts up to one batch of expired restrictions and returns how many
// were lifted.
func (s *RestrictionExpirySweeper) RunOnce(ctx context.Context) int {
	candidates, err := s.accounts.ListExpiredRestrictions(ctx, s.now(), s.batchSize)
	if err != nil {
		slog.Error("restriction expiry sweeper: failed to list expired restrictions", "error", err)
		return 0
	}
	if len(candidates) == 0 {
		return 0
	}

	lifted := 0
	for _, account := range candidates {
		if ctx.Err() != nil {
			break
		}
		res, err := s.engine.LiftExpiredRestriction(ctx, s.actor, account.ID)
		if err != nil {
			// the engine already logged it; the next run retries
			continue
		}
		if res.Unchanged {
			continue
		}
		lifted++
		telemetry.RestrictionSweepLiftedTotal.Inc()
	}

	slog.Info("restriction expiry sweeper: run complete", "candidates", len(candidates), "lifted", lifted)
	return lifted
}
