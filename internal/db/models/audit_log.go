// Package models - audit_log.go defines the AuditLog model: one immutable ledger entry per
// privileged account mutation, with before/after snapshots of the mutated fields only.
package models

import (
	"strings"
	"time"
)

// ActorRole identifies who performed a ledgered mutation.
type ActorRole string

const (
	ActorAdmin  ActorRole = "ADMIN"
	ActorSystem ActorRole = "SYSTEM"
)

// ActionType is the closed set of ledger action kinds.
type ActionType string

const (
	ActionTrustTierChange    ActionType = "TRUST_TIER_CHANGE"
	ActionTrustScoreOverride ActionType = "TRUST_SCORE_OVERRIDE"
	ActionRestrictionApplied ActionType = "RESTRICTION_APPLIED"
	ActionRestrictionRemoved ActionType = "RESTRICTION_REMOVED"
	ActionFlagAdded          ActionType = "FLAG_ADDED"
	ActionFlagRemoved        ActionType = "FLAG_REMOVED"
	ActionAccountFrozen      ActionType = "ACCOUNT_FROZEN"
	ActionAccountUnfrozen    ActionType = "ACCOUNT_UNFROZEN"
	ActionProfileEdited      ActionType = "PROFILE_EDITED"
	ActionOther              ActionType = "OTHER"
)

// ParseActionType validates an action type name (case-insensitive).
func ParseActionType(s string) (ActionType, bool) {
	switch a := ActionType(strings.ToUpper(strings.TrimSpace(s))); a {
	case ActionTrustTierChange, ActionTrustScoreOverride, ActionRestrictionApplied,
		ActionRestrictionRemoved, ActionFlagAdded, ActionFlagRemoved, ActionAccountFrozen,
		ActionAccountUnfrozen, ActionProfileEdited, ActionOther:
		return a, true
	}
	return "", false
}

// Metadata "operation" values for actions recorded as ActionOther.
const (
	OperationPaymentConfirmed = "payment.confirmed"
	OperationRoleChanged      = "role.changed"
)

// AuditLog is a single ledger entry. ID and CreatedAt are assigned at write time.
type AuditLog struct {
	ID             string                 `json:"id"`
	ActorID        string                 `json:"actor_id"`
	ActorRole      ActorRole              `json:"actor_role"`
	TargetUserID   string                 `json:"target_user_id"`
	TargetUserRole Role                   `json:"target_user_role"`
	ActionType     ActionType             `json:"action_type"`
	BeforeState    map[string]interface{} `json:"before_state"`
	AfterState     map[string]interface{} `json:"after_state"`
	Reason         string                 `json:"reason"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
