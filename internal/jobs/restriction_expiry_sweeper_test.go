package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/castline/castline/internal/apperr"
	"github.com/castline/castline/internal/config"
	"github.com/castline/castline/internal/db/models"
	"github.com/castline/castline/internal/restriction"
	"github.com/castline/castline/internal/restriction/restrictiontest"
	"github.com/castline/castline/internal/telemetry"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type stubLister struct {
	mu       sync.Mutex
	accounts []*models.Account
	err      error
	calls    int
	limit    int
}

func (l *stubLister) ListExpiredRestrictions(_ context.Context, _ time.Time, limit int) ([]*models.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	l.limit = limit
	return l.accounts, l.err
}

func (l *stubLister) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type stubLifter struct {
	mu        sync.Mutex
	actors    []restriction.Actor
	targets   []string
	unchanged map[string]bool
	failing   map[string]error
}

func (l *stubLifter) LiftExpiredRestriction(_ context.Context, actor restriction.Actor, targetID string) (*restriction.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actors = append(l.actors, actor)
	l.targets = append(l.targets, targetID)
	if err := l.failing[targetID]; err != nil {
		return nil, err
	}
	return &restriction.Result{Account: &models.Account{ID: targetID}, Unchanged: l.unchanged[targetID]}, nil
}

func sweepConfig() *config.TrustConfig {
	return &config.TrustConfig{
		SweepEnabled:   true,
		SweepInterval:  time.Hour,
		SweepBatchSize: 10,
		SystemActorID:  "system:restriction-sweeper",
	}
}

func accountsWithIDs(ids ...string) []*models.Account {
	out := make([]*models.Account, 0, len(ids))
	for _, id := range ids {
		out = append(out, &models.Account{ID: id, Role: models.RoleDirector, Frozen: true})
	}
	return out
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNewRestrictionExpirySweeper_Defaults(t *testing.T) {
	s := NewRestrictionExpirySweeper(&stubLister{}, &stubLifter{}, &config.TrustConfig{SystemActorID: "sys"})
	assert.Equal(t, 5*time.Minute, s.interval)
	assert.Equal(t, 100, s.batchSize)
	assert.False(t, s.enabled)
	assert.Equal(t, restriction.SystemActor("sys"), s.actor)
}

// ---------------------------------------------------------------------------
// RunOnce
// ---------------------------------------------------------------------------

func TestRunOnce_LiftsCandidatesAsSystem(t *testing.T) {
	lister := &stubLister{accounts: accountsWithIDs("a", "b", "c")}
	lifter := &stubLifter{
		unchanged: map[string]bool{"b": true},
		failing:   map[string]error{"c": apperr.Conflict("modified concurrently")},
	}
	s := NewRestrictionExpirySweeper(lister, lifter, sweepConfig())

	before := testutil.ToFloat64(telemetry.RestrictionSweepLiftedTotal)
	lifted := s.RunOnce(context.Background())

	assert.Equal(t, 1, lifted)
	assert.Equal(t, []string{"a", "b", "c"}, lifter.targets)
	assert.Equal(t, 10, lister.limit)
	for _, actor := range lifter.actors {
		assert.Equal(t, models.ActorSystem, actor.Role)
		assert.Equal(t, "system:restriction-sweeper", actor.ID)
	}
	assert.Equal(t, before+1, testutil.ToFloat64(telemetry.RestrictionSweepLiftedTotal))
}

func TestRunOnce_ListError(t *testing.T) {
	lister := &stubLister{err: errors.New("db down")}
	lifter := &stubLifter{}
	s := NewRestrictionExpirySweeper(lister, lifter, sweepConfig())

	assert.Equal(t, 0, s.RunOnce(context.Background()))
	assert.Empty(t, lifter.targets)
}

func TestRunOnce_CancelledContextStops(t *testing.T) {
	lister := &stubLister{accounts: accountsWithIDs("a", "b")}
	lifter := &stubLifter{}
	s := NewRestrictionExpirySweeper(lister, lifter, sweepConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, s.RunOnce(ctx))
	assert.Empty(t, lifter.targets)
}

// ---------------------------------------------------------------------------
// Start / Stop
// ---------------------------------------------------------------------------

func TestStart_DisabledReturnsImmediately(t *testing.T) {
	cfg := sweepConfig()
	cfg.SweepEnabled = false
	lister := &stubLister{}
	s := NewRestrictionExpirySweeper(lister, &stubLifter{}, cfg)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return for a disabled sweeper")
	}
	assert.Zero(t, lister.callCount())
}

func TestStart_RunsImmediatelyAndStops(t *testing.T) {
	lister := &stubLister{}
	s := NewRestrictionExpirySweeper(lister, &stubLifter{}, sweepConfig())

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool { return lister.callCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	s.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestStart_ContextCancel(t *testing.T) {
	lister := &stubLister{}
	s := NewRestrictionExpirySweeper(lister, &stubLifter{}, sweepConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	assert.Eventually(t, func() bool { return lister.callCount() >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancel")
	}
}

func TestRunOnce_WithEngine(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	reason := "cooldown"
	store := restrictiontest.NewMemStore(
		&models.Account{ID: "director-1", Role: models.RoleDirector, TrustScore: 60, VerificationTier: models.TierBasic,
			Frozen: true, RestrictionReason: &reason, RestrictionExpiresAt: &past},
		&models.Account{ID: "director-2", Role: models.RoleDirector, TrustScore: 60, VerificationTier: models.TierBasic,
			Frozen: true, RestrictionReason: &reason, RestrictionExpiresAt: &future},
		&models.Account{ID: "talent-1", Role: models.RoleTalent, VerificationTier: models.TierBasic,
			Frozen: true, RestrictionExpiresAt: &past},
	)
	cfg := &config.TrustConfig{SweepEnabled: true, SystemActorID: "system:sweeper"}
	s := NewRestrictionExpirySweeper(store, restriction.NewEngine(store, nil), cfg)

	assert.Equal(t, 1, s.RunOnce(context.Background()))

	lifted := store.Account("director-1")
	assert.False(t, lifted.Frozen)
	assert.Nil(t, lifted.RestrictionReason)
	assert.True(t, store.Account("director-2").Frozen)
	assert.True(t, store.Account("talent-1").Frozen)

	entries := store.Entries()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, models.ActorSystem, entries[0].ActorRole)
		assert.Equal(t, "system:sweeper", entries[0].ActorID)
		assert.Equal(t, models.ActionRestrictionRemoved, entries[0].ActionType)
	}

	// a second run finds nothing left to lift
	assert.Equal(t, 0, s.RunOnce(context.Background()))
	assert.Len(t, store.Entries(), 1)
}
