// Package restriction implements the account restriction state machine: payment
// confirmation, admin restrictions, role and trust overrides, and expiry of timed
// restrictions. Every privileged transition re-verifies the acting admin against
// the stored account, validates before mutating, and commits the account change
// together with exactly one audit ledger entry.
package restriction

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/castline/castline/internal/apperr"
	"github.com/castline/castline/internal/db/models"
	"github.com/castline/castline/internal/ledger"
	"github.com/castline/castline/internal/telemetry"
)

// Operation names used for metrics and logs.
const (
	OpConfirmPayment         = "confirm_payment"
	OpSubmitPayment          = "submit_payment"
	OpApplyRestriction       = "apply_restriction"
	OpLiftRestriction        = "lift_restriction"
	OpLiftExpired            = "lift_expired_restriction"
	OpChangeRole             = "change_role"
	OpOverrideTrustScore     = "override_trust_score"
	OpChangeVerificationTier = "change_verification_tier"
)

// AccountStore is the persistence the engine needs. ApplyMutation must write the
// account (guarded by its Version) and entry atomically.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ApplyMutation(ctx context.Context, account *models.Account, entry *models.AuditLog) error
}

// Publisher receives entries after they commit.
type Publisher interface {
	Publish(entry *models.AuditLog)
}

type discardPublisher struct{}

func (discardPublisher) Publish(*models.AuditLog) {}

// Actor is a verified identity allowed to write ledger entries.
type Actor struct {
	ID   string
	Role models.ActorRole
}

// SystemActor returns the actor used by in-process background jobs.
func SystemActor(id string) Actor {
	return Actor{ID: id, Role: models.ActorSystem}
}

// Result describes a transition outcome.
type Result struct {
	Account *models.Account
	// Entry is the committed ledger entry; nil when Unchanged.
	Entry *models.AuditLog
	// Unchanged is set when the request matched the current state and nothing was written.
	Unchanged bool
}

// Engine executes restriction and trust transitions.
type Engine struct {
	accounts  AccountStore
	publisher Publisher
	now       func() time.Time
}

// NewEngine creates an Engine. A nil publisher discards committed entries.
func NewEngine(accounts AccountStore, publisher Publisher) *Engine {
	if publisher == nil {
		publisher = discardPublisher{}
	}
	return &Engine{
		accounts:  accounts,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// VerifyAdmin loads actorID and checks it is an unrestricted ADMIN. Roles carried
// by the caller's session are never consulted.
func (e *Engine) VerifyAdmin(ctx context.Context, actorID string) (Actor, error) {
	if actorID == "" {
		return Actor{}, apperr.Unauthorized("authentication required")
	}
	account, err := e.accounts.GetAccount(ctx, actorID)
	if err != nil {
		return Actor{}, apperr.Persistence(err, "load actor account")
	}
	if account == nil {
		return Actor{}, apperr.Unauthorized("actor account not found")
	}
	if account.Role != models.RoleAdmin {
		return Actor{}, apperr.Forbidden("admin role required")
	}
	if !account.CanAct(e.now()) {
		return Actor{}, apperr.Forbidden("actor account is restricted")
	}
	return Actor{ID: account.ID, Role: models.ActorAdmin}, nil
}

// loadTarget fetches an auditable (TALENT or DIRECTOR) account.
func (e *Engine) loadTarget(ctx context.Context, id string) (*models.Account, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.InvalidInput("account id is required")
	}
	account, err := e.accounts.GetAccount(ctx, id)
	if err != nil {
		return nil, apperr.Persistence(err, "load target account")
	}
	if account == nil {
		return nil, apperr.NotFound("account %s not found", id)
	}
	if account.Role != models.RoleTalent && account.Role != models.RoleDirector {
		return nil, apperr.InvalidInput("account %s has role %s; only TALENT and DIRECTOR accounts can be managed", id, account.Role)
	}
	return account, nil
}

func requireReason(reason string) (string, error) {
	r := strings.TrimSpace(reason)
	if r == "" {
		return "", apperr.InvalidInput("reason is required")
	}
	return r, nil
}

// transition is one ledgered account change.
type transition struct {
	op       string
	actor    Actor
	before   *models.Account
	after    *models.Account
	action   models.ActionType
	fields   []string
	reason   string
	metadata map[string]interface{}
}

// commit validates and persists t, then publishes the committed entry.
func (e *Engine) commit(ctx context.Context, t transition) (*Result, error) {
	if !t.after.SatisfiesPaymentInvariant() {
		return nil, apperr.Conflict("talent account %s cannot be active without confirmed payment", t.before.ID)
	}

	entry := &models.AuditLog{
		ActorID:        t.actor.ID,
		ActorRole:      t.actor.Role,
		TargetUserID:   t.before.ID,
		TargetUserRole: t.before.Role,
		ActionType:     t.action,
		BeforeState:    ledger.Snapshot(t.before, t.fields...),
		AfterState:     ledger.Snapshot(t.after, t.fields...),
		Reason:         t.reason,
		Metadata:       t.metadata,
	}
	if err := ledger.Validate(entry); err != nil {
		return nil, err
	}

	if err := e.accounts.ApplyMutation(ctx, t.after, entry); err != nil {
		return nil, err
	}

	telemetry.TrustTransitionsTotal.WithLabelValues(t.op, "committed").Inc()
	telemetry.AuditLedgerWritesTotal.WithLabelValues("committed").Inc()
	slog.Info("trust transition committed",
		"operation", t.op,
		"action_type", entry.ActionType,
		"actor_id", entry.ActorID,
		"actor_role", entry.ActorRole,
		"target_id", entry.TargetUserID,
		"audit_log_id", entry.ID,
		"state", t.after.State(),
	)
	e.publisher.Publish(entry)

	return &Result{Account: t.after, Entry: entry}, nil
}

// unchanged records a no-op outcome.
func (e *Engine) unchanged(op string, account *models.Account) *Result {
	telemetry.TrustTransitionsTotal.WithLabelValues(op, "noop").Inc()
	slog.Info("trust transition skipped; state already matches", "operation", op, "target_id", account.ID)
	return &Result{Account: account, Unchanged: true}
}

// fail records a rejected or failed operation and returns err unchanged.
func (e *Engine) fail(op, actorID, targetID string, err error) error {
	kind := apperr.KindOf(err)
	telemetry.TrustTransitionsTotal.WithLabelValues(op, strings.ToLower(string(kind))).Inc()

	switch {
	case errors.Is(err, apperr.ErrLedgerWrite), errors.Is(err, apperr.ErrCommitUnknown):
		telemetry.AuditLedgerWritesTotal.WithLabelValues("failed").Inc()
		slog.Error("trust transition failed while writing the audit ledger",
			"critical", true, "operation", op, "actor_id", actorID, "target_id", targetID, "error", err)
	case kind == apperr.KindPersistenceFailure:
		slog.Error("trust transition failed", "operation", op, "actor_id", actorID, "target_id", targetID, "error", err)
	default:
		slog.Warn("trust transition rejected", "operation", op, "actor_id", actorID, "target_id", targetID,
			"kind", kind, "error", err)
	}
	return err
}
