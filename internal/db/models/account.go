// Package models - account.go defines the Account model holding the trust, restriction and
// payment fields of a casting-platform user, plus the derived restriction state.
package models

import (
	"strings"
	"time"
)

// Role is the platform role of an account.
type Role string

const (
	RoleTalent   Role = "TALENT"
	RoleDirector Role = "DIRECTOR"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole validates a role name (case-insensitive).
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleTalent, RoleDirector, RoleAdmin:
		return r, true
	}
	return "", false
}

// VerificationTier describes how far a talent profile has been verified.
type VerificationTier string

const (
	TierBasic    VerificationTier = "BASIC"
	TierComplete VerificationTier = "COMPLETE"
	TierVerified VerificationTier = "VERIFIED"
	TierFeatured VerificationTier = "FEATURED"
)

// ParseVerificationTier validates a tier name (case-insensitive).
func ParseVerificationTier(s string) (VerificationTier, bool) {
	switch t := VerificationTier(strings.ToUpper(strings.TrimSpace(s))); t {
	case TierBasic, TierComplete, TierVerified, TierFeatured:
		return t, true
	}
	return "", false
}

// PaymentMethod is the currency a registration payment was made in.
type PaymentMethod string

const (
	PaymentETH PaymentMethod = "ETH"
	PaymentBTC PaymentMethod = "BTC"
)

// ParsePaymentMethod validates a payment method (case-insensitive).
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s))); m {
	case PaymentETH, PaymentBTC:
		return m, true
	}
	return "", false
}

// RestrictionState is derived from the freeze and payment fields; it is never stored.
type RestrictionState string

const (
	StateActive          RestrictionState = "ACTIVE"
	StatePaymentPending  RestrictionState = "PAYMENT_PENDING"
	StateAdminRestricted RestrictionState = "ADMIN_RESTRICTED"
)

// Account is one platform user. It is mutated only through the restriction engine;
// Version increments on every committed write and guards against lost updates.
type Account struct {
	ID                   string           `json:"id" db:"id"`
	Role                 Role             `json:"role" db:"role"`
	TrustScore           int              `json:"trust_score" db:"trust_score"`
	VerificationTier     VerificationTier `json:"verification_tier" db:"verification_tier"`
	Frozen               bool             `json:"frozen" db:"frozen"`
	RestrictionReason    *string          `json:"restriction_reason,omitempty" db:"restriction_reason"`
	RestrictionExpiresAt *time.Time       `json:"restriction_expires_at,omitempty" db:"restriction_expires_at"`
	PaymentConfirmed     bool             `json:"payment_confirmed" db:"payment_confirmed"`
	PaymentMethod        *PaymentMethod   `json:"payment_method,omitempty" db:"payment_method"`
	PaymentReference     *string          `json:"payment_reference,omitempty" db:"payment_reference"`
	PaymentAt            *time.Time       `json:"payment_at,omitempty" db:"payment_at"`
	Version              int64            `json:"version" db:"version"`
	CreatedAt            time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at" db:"updated_at"`
}

// State derives the restriction state. Only talents can be payment-pending.
func (a *Account) State() RestrictionState {
	if !a.Frozen {
		return StateActive
	}
	if a.Role == RoleTalent && !a.PaymentConfirmed {
		return StatePaymentPending
	}
	return StateAdminRestricted
}

// RestrictionExpired reports whether an admin restriction carries an expiry that has passed.
func (a *Account) RestrictionExpired(now time.Time) bool {
	return a.State() == StateAdminRestricted &&
		a.RestrictionExpiresAt != nil &&
		!now.Before(*a.RestrictionExpiresAt)
}

// CanAct reports whether the account may apply, message or post. An expired
// restriction no longer blocks the account even before the sweep clears it.
func (a *Account) CanAct(now time.Time) bool {
	if !a.Frozen {
		return true
	}
	return a.RestrictionExpired(now)
}

// SatisfiesPaymentInvariant reports whether a talent without confirmed payment is frozen.
func (a *Account) SatisfiesPaymentInvariant() bool {
	return a.Role != RoleTalent || a.PaymentConfirmed || a.Frozen
}

// Clone returns a deep copy so callers can mutate without touching the original.
func (a *Account) Clone() *Account {
	c := *a
	if a.RestrictionReason != nil {
		v := *a.RestrictionReason
		c.RestrictionReason = &v
	}
	if a.RestrictionExpiresAt != nil {
		v := *a.RestrictionExpiresAt
		c.RestrictionExpiresAt = &v
	}
	if a.PaymentMethod != nil {
		v := *a.PaymentMethod
		c.PaymentMethod = &v
	}
	if a.PaymentReference != nil {
		v := *a.PaymentReference
		c.PaymentReference = &v
	}
	if a.PaymentAt != nil {
		v := *a.PaymentAt
		c.PaymentAt = &v
	}
	return &c
}
