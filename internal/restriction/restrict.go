package restriction

import (
	"context"
	"strings"
	"time"

	"github.com/castline/castline/internal/apperr"
	"github.com/castline/castline/internal/db/models"
	"github.com/castline/castline/internal/ledger"
)

const expiredRestrictionReason = "Restriction expired"

var restrictionFields = []string{
	ledger.FieldFrozen,
	ledger.FieldRestrictionReason,
	ledger.FieldRestrictionExpiresAt,
}

// ApplyRestriction freezes an ACTIVE account. A nil expiresAt restricts until an
// admin lifts it. A restriction whose expiry has already passed may be replaced.
func (e *Engine) ApplyRestriction(ctx context.Context, actorID, targetID, reason string, expiresAt *time.Time) (*Result, error) {
	res, err := e.applyRestriction(ctx, actorID, targetID, reason, expiresAt)
	if err != nil {
		return nil, e.fail(OpApplyRestriction, actorID, targetID, err)
	}
	return res, nil
}

func (e *Engine) applyRestriction(ctx context.Context, actorID, targetID, reason string, expiresAt *time.Time) (*Result, error) {
	actor, err := e.VerifyAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	reason, err = requireReason(reason)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, apperr.InvalidInput("restriction expiry must be in the future")
	}

	before, err := e.loadTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	switch before.State() {
	case models.StatePaymentPending:
		return nil, apperr.Conflict("account %s is awaiting payment confirmation", before.ID)
	case models.StateAdminRestricted:
		if !before.RestrictionExpired(now) {
			return nil, apperr.Conflict("account %s is already restricted", before.ID)
		}
	}

	after := before.Clone()
	after.Frozen = true
	after.RestrictionReason = &reason
	if expiresAt != nil {
		exp := expiresAt.UTC()
		after.RestrictionExpiresAt = &exp
	} else {
		after.RestrictionExpiresAt = nil
	}

	return e.commit(ctx, transition{
		op:     OpApplyRestriction,
		actor:  actor,
		before: before,
		after:  after,
		action: models.ActionRestrictionApplied,
		fields: restrictionFields,
		reason: reason,
	})
}

// LiftRestriction returns an ADMIN_RESTRICTED account to ACTIVE. It never
// substitutes for payment confirmation.
func (e *Engine) LiftRestriction(ctx context.Context, actorID, targetID, reason string) (*Result, error) {
	res, err := e.liftRestriction(ctx, actorID, targetID, reason)
	if err != nil {
		return nil, e.fail(OpLiftRestriction, actorID, targetID, err)
	}
	return res, nil
}

func (e *Engine) liftRestriction(ctx context.Context, actorID, targetID, reason string) (*Result, error) {
	actor, err := e.VerifyAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	reason, err = requireReason(reason)
	if err != nil {
		return nil, err
	}
	before, err := e.loadTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	switch before.State() {
	case models.StatePaymentPending:
		return nil, apperr.Conflict("account %s is awaiting payment confirmation; lifting a restriction cannot confirm payment", before.ID)
	case models.StateActive:
		return nil, apperr.Conflict("account %s is not restricted", before.ID)
	}
	if before.RestrictionReason == nil {
		return nil, apperr.Conflict("account %s is frozen without an admin restriction", before.ID)
	}

	return e.commit(ctx, transition{
		op:     OpLiftRestriction,
		actor:  actor,
		before: before,
		after:  unrestricted(before),
		action: models.ActionRestrictionRemoved,
		fields: restrictionFields,
		reason: reason,
	})
}

// LiftExpiredRestriction clears a restriction whose expiry has passed. Only the
// SYSTEM actor may call it. An account that is no longer restricted, or whose
// restriction has not expired, is returned Unchanged.
func (e *Engine) LiftExpiredRestriction(ctx context.Context, actor Actor, targetID string) (*Result, error) {
	res, err := e.liftExpired(ctx, actor, targetID)
	if err != nil {
		return nil, e.fail(OpLiftExpired, actor.ID, targetID, err)
	}
	return res, nil
}

func (e *Engine) liftExpired(ctx context.Context, actor Actor, targetID string) (*Result, error) {
	if actor.Role != models.ActorSystem || strings.TrimSpace(actor.ID) == "" {
		return nil, apperr.Forbidden("expired restrictions are lifted by the system only")
	}
	before, err := e.loadTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !before.RestrictionExpired(e.now()) {
		return e.unchanged(OpLiftExpired, before), nil
	}

	return e.commit(ctx, transition{
		op:     OpLiftExpired,
		actor:  actor,
		before: before,
		after:  unrestricted(before),
		action: models.ActionRestrictionRemoved,
		fields: restrictionFields,
		reason: expiredRestrictionReason,
		metadata: map[string]interface{}{
			"expired_at": before.RestrictionExpiresAt.UTC().Format(time.RFC3339Nano),
		},
	})
}

func unrestricted(a *models.Account) *models.Account {
	after := a.Clone()
	after.Frozen = false
	after.RestrictionReason = nil
	after.RestrictionExpiresAt = nil
	return after
}
