// Package ledger builds, validates and publishes audit ledger entries. Entries
// are persisted by the account repository in the same transaction as the
// mutation they describe; this package only shapes them and, after commit,
// hands copies to the external shippers.
package ledger

import (
	"strings"
	"time"

	"github.com/castline/castline/internal/apperr"
	"github.com/castline/castline/internal/db/models"
)

// Snapshot field names. They match the Account JSON tags.
const (
	FieldRole                 = "role"
	FieldTrustScore           = "trust_score"
	FieldVerificationTier     = "verification_tier"
	FieldFrozen               = "frozen"
	FieldRestrictionReason    = "restriction_reason"
	FieldRestrictionExpiresAt = "restriction_expires_at"
	FieldPaymentConfirmed     = "payment_confirmed"
	FieldPaymentMethod        = "payment_method"
	FieldPaymentReference     = "payment_reference"
	FieldPaymentAt            = "payment_at"
)

// Snapshot captures the named fields of a. Absent optional fields are recorded
// as nil and timestamps as RFC 3339 strings so snapshots read the same before
// and after a JSONB round trip.
func Snapshot(a *models.Account, fields ...string) map[string]interface{} {
	snap := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		switch f {
		case FieldRole:
			snap[f] = string(a.Role)
		case FieldTrustScore:
			snap[f] = a.TrustScore
		case FieldVerificationTier:
			snap[f] = string(a.VerificationTier)
		case FieldFrozen:
			snap[f] = a.Frozen
		case FieldRestrictionReason:
			snap[f] = optString(a.RestrictionReason)
		case FieldRestrictionExpiresAt:
			snap[f] = optTime(a.RestrictionExpiresAt)
		case FieldPaymentConfirmed:
			snap[f] = a.PaymentConfirmed
		case FieldPaymentMethod:
			if a.PaymentMethod == nil {
				snap[f] = nil
			} else {
				snap[f] = string(*a.PaymentMethod)
			}
		case FieldPaymentReference:
			snap[f] = optString(a.PaymentReference)
		case FieldPaymentAt:
			snap[f] = optTime(a.PaymentAt)
		}
	}
	return snap
}

func optString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func optTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Validate checks an entry before it is written. Every failure is InvalidInput;
// nothing has been persisted at this point.
func Validate(e *models.AuditLog) error {
	if strings.TrimSpace(e.Reason) == "" {
		return apperr.InvalidInput("reason is required")
	}
	if e.ActorID == "" {
		return apperr.InvalidInput("actor id is required")
	}
	if e.ActorRole != models.ActorAdmin && e.ActorRole != models.ActorSystem {
		return apperr.InvalidInput("actor role %q cannot write ledger entries", e.ActorRole)
	}
	if e.TargetUserID == "" {
		return apperr.InvalidInput("target user id is required")
	}
	if e.TargetUserRole != models.RoleTalent && e.TargetUserRole != models.RoleDirector {
		return apperr.InvalidInput("target role %q is not auditable", e.TargetUserRole)
	}
	if _, ok := models.ParseActionType(string(e.ActionType)); !ok {
		return apperr.InvalidInput("unknown action type %q", e.ActionType)
	}
	if e.BeforeState == nil || e.AfterState == nil {
		return apperr.InvalidInput("before and after state are required")
	}
	return nil
}
