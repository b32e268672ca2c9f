package restriction

import (
	"context"

	"github.com/castline/castline/internal/apperr"
	"github.com/castline/castline/internal/db/models"
	"github.com/castline/castline/internal/ledger"
	"github.com/castline/castline/internal/trust"
)

// ChangeRole reassigns the target's role. Freeze and payment fields are left
// alone, so a change that would move the account into a different restriction
// state is refused: a payment-pending talent keeps its role until payment is
// confirmed, and a restricted account cannot become a payment-pending talent.
func (e *Engine) ChangeRole(ctx context.Context, actorID, targetID, role, reason string) (*Result, error) {
	res, err := e.changeRole(ctx, actorID, targetID, role, reason)
	if err != nil {
		return nil, e.fail(OpChangeRole, actorID, targetID, err)
	}
	return res, nil
}

func (e *Engine) changeRole(ctx context.Context, actorID, targetID, role, reason string) (*Result, error) {
	actor, err := e.VerifyAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	newRole, ok := models.ParseRole(role)
	if !ok {
		return nil, apperr.InvalidInput("role must be TALENT, DIRECTOR or ADMIN")
	}
	reason, err = requireReason(reason)
	if err != nil {
		return nil, err
	}
	before, err := e.loadTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if before.Role == newRole {
		return e.unchanged(OpChangeRole, before), nil
	}

	after := before.Clone()
	after.Role = newRole
	if !after.SatisfiesPaymentInvariant() {
		return nil, apperr.Conflict("account %s has no confirmed payment and is not frozen; it cannot become a talent", before.ID)
	}
	switch {
	case before.State() == models.StatePaymentPending:
		return nil, apperr.Conflict("account %s is awaiting payment confirmation; confirm payment before changing its role", before.ID)
	case after.State() != before.State():
		return nil, apperr.Conflict("account %s is %s; lift the restriction before changing its role", before.ID, before.State())
	}

	return e.commit(ctx, transition{
		op:     OpChangeRole,
		actor:  actor,
		before: before,
		after:  after,
		action: models.ActionOther,
		fields: []string{ledger.FieldRole},
		reason: reason,
		metadata: map[string]interface{}{
			"operation": models.OperationRoleChanged,
			"from_role": string(before.Role),
			"to_role":   string(newRole),
		},
	})
}

// OverrideTrustScore sets a director's trust score. The new score takes effect
// on the next job listing read.
func (e *Engine) OverrideTrustScore(ctx context.Context, actorID, targetID string, score int, reason string) (*Result, error) {
	res, err := e.overrideTrustScore(ctx, actorID, targetID, score, reason)
	if err != nil {
		return nil, e.fail(OpOverrideTrustScore, actorID, targetID, err)
	}
	return res, nil
}

func (e *Engine) overrideTrustScore(ctx context.Context, actorID, targetID string, score int, reason string) (*Result, error) {
	actor, err := e.VerifyAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	newLevel, err := trust.ResolveLevel(score)
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
	if before.Role != models.RoleDirector {
		return nil, apperr.InvalidInput("trust scores apply to director accounts only")
	}
	if before.TrustScore == score {
		return e.unchanged(OpOverrideTrustScore, before), nil
	}
	oldLevel, err := trust.ResolveLevel(before.TrustScore)
	if err != nil {
		return nil, apperr.Persistence(err, "stored trust score out of range")
	}

	after := before.Clone()
	after.TrustScore = score

	return e.commit(ctx, transition{
		op:     OpOverrideTrustScore,
		actor:  actor,
		before: before,
		after:  after,
		action: models.ActionTrustScoreOverride,
		fields: []string{ledger.FieldTrustScore},
		reason: reason,
		metadata: map[string]interface{}{
			"from_level": string(oldLevel),
			"to_level":   string(newLevel),
		},
	})
}

// ChangeVerificationTier sets a talent's verification tier.
func (e *Engine) ChangeVerificationTier(ctx context.Context, actorID, targetID, tier, reason string) (*Result, error) {
	res, err := e.changeVerificationTier(ctx, actorID, targetID, tier, reason)
	if err != nil {
		return nil, e.fail(OpChangeVerificationTier, actorID, targetID, err)
	}
	return res, nil
}

func (e *Engine) changeVerificationTier(ctx context.Context, actorID, targetID, tier, reason string) (*Result, error) {
	actor, err := e.VerifyAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	newTier, ok := models.ParseVerificationTier(tier)
	if !ok {
		return nil, apperr.InvalidInput("unknown verification tier %q", tier)
	}
	reason, err = requireReason(reason)
	if err != nil {
		return nil, err
	}
	before, err := e.loadTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if before.Role != models.RoleTalent {
		return nil, apperr.InvalidInput("verification tiers apply to talent accounts only")
	}
	if before.VerificationTier == newTier {
		return e.unchanged(OpChangeVerificationTier, before), nil
	}

	after := before.Clone()
	after.VerificationTier = newTier
	level, err := trust.LevelForTier(newTier)
	if err != nil {
		return nil, err
	}

	return e.commit(ctx, transition{
		op:     OpChangeVerificationTier,
		actor:  actor,
		before: before,
		after:  after,
		action: models.ActionTrustTierChange,
		fields: []string{ledger.FieldVerificationTier},
		reason: reason,
		metadata: map[string]interface{}{
			"trust_level": string(level),
		},
	})
}
