package restriction

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/castline/castline/internal/apperr"
	"github.com/castline/castline/internal/db/models"
	"github.com/castline/castline/internal/ledger"
	"github.com/castline/castline/internal/telemetry"
)

const defaultConfirmReason = "Registration payment confirmed"

var paymentFields = []string{
	ledger.FieldFrozen,
	ledger.FieldRestrictionReason,
	ledger.FieldRestrictionExpiresAt,
	ledger.FieldPaymentConfirmed,
	ledger.FieldPaymentMethod,
	ledger.FieldPaymentReference,
	ledger.FieldPaymentAt,
}

// ConfirmPaymentInput is an admin's payment confirmation for a talent account.
type ConfirmPaymentInput struct {
	AccountID string
	// Method falls back to the method the talent submitted when empty.
	Method    string
	Reference string
	Reason    string
}

// ConfirmPayment moves a PAYMENT_PENDING talent to ACTIVE. Confirming an account
// that is already confirmed returns Unchanged and writes nothing, so clients can
// safely retry.
func (e *Engine) ConfirmPayment(ctx context.Context, actorID string, in ConfirmPaymentInput) (*Result, error) {
	res, err := e.confirmPayment(ctx, actorID, in)
	if err != nil {
		return nil, e.fail(OpConfirmPayment, actorID, in.AccountID, err)
	}
	return res, nil
}

func (e *Engine) confirmPayment(ctx context.Context, actorID string, in ConfirmPaymentInput) (*Result, error) {
	actor, err := e.VerifyAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	before, err := e.loadTarget(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}
	if before.Role != models.RoleTalent {
		return nil, apperr.Conflict("account %s is a %s; only talent accounts require payment", before.ID, before.Role)
	}

	var method models.PaymentMethod
	switch {
	case strings.TrimSpace(in.Method) != "":
		m, ok := models.ParsePaymentMethod(in.Method)
		if !ok {
			return nil, apperr.InvalidInput("payment method must be ETH or BTC")
		}
		method = m
	case before.PaymentMethod != nil:
		method = *before.PaymentMethod
	default:
		return nil, apperr.InvalidInput("payment method is required")
	}

	if before.PaymentConfirmed {
		return e.unchanged(OpConfirmPayment, before), nil
	}

	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = defaultConfirmReason
	}

	reference := strings.TrimSpace(in.Reference)
	if reference == "" && before.PaymentReference != nil {
		reference = *before.PaymentReference
	}

	now := e.now()
	after := before.Clone()
	after.PaymentConfirmed = true
	after.Frozen = false
	after.RestrictionReason = nil
	after.RestrictionExpiresAt = nil
	after.PaymentMethod = &method
	if reference != "" {
		after.PaymentReference = &reference
	}
	after.PaymentAt = &now

	metadata := map[string]interface{}{
		"operation":      models.OperationPaymentConfirmed,
		"payment_method": string(method),
	}
	if reference != "" {
		metadata["payment_reference"] = reference
	}

	res, err := e.commit(ctx, transition{
		op:       OpConfirmPayment,
		actor:    actor,
		before:   before,
		after:    after,
		action:   models.ActionOther,
		fields:   paymentFields,
		reason:   reason,
		metadata: metadata,
	})
	if errors.Is(err, apperr.ErrConflictingState) {
		// An overlapping resend may have confirmed the account first.
		if current, lerr := e.loadTarget(ctx, before.ID); lerr == nil && current.PaymentConfirmed {
			return e.unchanged(OpConfirmPayment, current), nil
		}
	}
	return res, err
}

// SubmitPaymentInput is a talent's claim to have paid the registration fee.
type SubmitPaymentInput struct {
	Method    string
	Reference string
}

// SubmitPayment records the talent's payment method and reference for admin
// review. The account stays frozen and no ledger entry is written; settings
// decides which methods are currently accepted.
func (e *Engine) SubmitPayment(ctx context.Context, accountID string, settings models.PaymentSettings, in SubmitPaymentInput) (*models.Account, error) {
	account, err := e.submitPayment(ctx, accountID, settings, in)
	if err != nil {
		return nil, e.fail(OpSubmitPayment, accountID, accountID, err)
	}
	return account, nil
}

func (e *Engine) submitPayment(ctx context.Context, accountID string, settings models.PaymentSettings, in SubmitPaymentInput) (*models.Account, error) {
	if accountID == "" {
		return nil, apperr.Unauthorized("authentication required")
	}
	before, err := e.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, apperr.Persistence(err, "load account")
	}
	if before == nil {
		return nil, apperr.Unauthorized("account not found")
	}
	if before.Role != models.RoleTalent {
		return nil, apperr.Forbidden("only talent accounts submit payments")
	}

	method, ok := models.ParsePaymentMethod(in.Method)
	if !ok {
		return nil, apperr.InvalidInput("payment method must be ETH or BTC")
	}
	if _, enabled := settings.AddressFor(method); !enabled {
		return nil, apperr.InvalidInput("payment method %s is not currently accepted", method)
	}
	reference := strings.TrimSpace(in.Reference)
	if reference == "" {
		return nil, apperr.InvalidInput("payment reference is required")
	}
	if before.PaymentConfirmed {
		return nil, apperr.Conflict("payment for account %s is already confirmed", before.ID)
	}

	after := before.Clone()
	after.PaymentMethod = &method
	after.PaymentReference = &reference
	if err := e.accounts.ApplyMutation(ctx, after, nil); err != nil {
		return nil, err
	}
	telemetry.TrustTransitionsTotal.WithLabelValues(OpSubmitPayment, "committed").Inc()
	slog.Info("payment submitted for review", "account_id", after.ID, "payment_method", method)
	return after, nil
}
