// accounts.go implements the admin account management handlers: payment confirmation,
// restrictions, role and trust overrides. Each handler passes the caller's account id to
// the restriction engine, which re-verifies the admin role against the stored account.
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/castline/castline/internal/api/respond"
	"github.com/castline/castline/internal/apperr"
	"github.com/castline/castline/internal/db/models"
	"github.com/castline/castline/internal/middleware"
	"github.com/castline/castline/internal/restriction"
)

// AdminVerifier checks that an account id belongs to an unrestricted admin.
type AdminVerifier interface {
	VerifyAdmin(ctx context.Context, actorID string) (restriction.Actor, error)
}

// AccountEngine is the subset of the restriction engine the account handlers drive.
type AccountEngine interface {
	AdminVerifier
	ConfirmPayment(ctx context.Context, actorID string, in restriction.ConfirmPaymentInput) (*restriction.Result, error)
	ApplyRestriction(ctx context.Context, actorID, targetID, reason string, expiresAt *time.Time) (*restriction.Result, error)
	LiftRestriction(ctx context.Context, actorID, targetID, reason string) (*restriction.Result, error)
	ChangeRole(ctx context.Context, actorID, targetID, role, reason string) (*restriction.Result, error)
	OverrideTrustScore(ctx context.Context, actorID, targetID string, score int, reason string) (*restriction.Result, error)
	ChangeVerificationTier(ctx context.Context, actorID, targetID, tier, reason string) (*restriction.Result, error)
}

// AccountReader loads accounts.
type AccountReader interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
}

// AccountHandlers handles admin account endpoints
type AccountHandlers struct {
	engine   AccountEngine
	accounts AccountReader
	now      func() time.Time
}

// NewAccountHandlers creates a new AccountHandlers instance
func NewAccountHandlers(engine AccountEngine, accounts AccountReader) *AccountHandlers {
	return &AccountHandlers{
		engine:   engine,
		accounts: accounts,
		now:      time.Now,
	}
}

// ConfirmPaymentRequest confirms a talent's registration payment.
type ConfirmPaymentRequest struct {
	Method    string `json:"method"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

// RestrictRequest applies an admin restriction. ExpiresAt is RFC 3339; omit it for
// a restriction that lasts until lifted.
type RestrictRequest struct {
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// ReasonRequest carries only the mandatory reason.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// ChangeRoleRequest moves an account to another role.
type ChangeRoleRequest struct {
	Role   string `json:"role"`
	Reason string `json:"reason"`
}

// OverrideTrustScoreRequest sets a director's trust score.
type OverrideTrustScoreRequest struct {
	TrustScore *int   `json:"trust_score"`
	Reason     string `json:"reason"`
}

// ChangeVerificationTierRequest sets a talent's verification tier.
type ChangeVerificationTierRequest struct {
	VerificationTier string `json:"verification_tier"`
	Reason           string `json:"reason"`
}

// @Summary      Get account
// @Description  Returns any account with its derived restriction state and trust profile.
// @Tags         Admin
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Account ID"
// @Success      200  {object}  restriction.Status
// @Failure      403  {object}  map[string]interface{}  "Caller is not an active admin"
// @Failure      404  {object}  map[string]interface{}  "Account not found"
// @Router       /api/v1/admin/accounts/{id} [get]
// GetAccountHandler returns an account's status
// GET /api/v1/admin/accounts/:id
func (h *AccountHandlers) GetAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if _, err := h.engine.VerifyAdmin(ctx, middleware.AccountID(c)); err != nil {
			respond.Error(c, err)
			return
		}

		id := c.Param("id")
		account, err := h.accounts.GetAccount(ctx, id)
		if err != nil {
			respond.Error(c, apperr.Persistence(err, "load account"))
			return
		}
		if account == nil {
			respond.Error(c, apperr.NotFound("account %s not found", id))
			return
		}

		status, err := restriction.Describe(account, h.now().UTC())
		if err != nil {
			respond.Error(c, apperr.Persistence(err, "resolve account trust"))
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

// @Summary      Confirm payment
// @Description  Activates a PAYMENT_PENDING talent. Confirming an already confirmed account is a no-op reported with unchanged=true.
// @Tags         Admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                 true  "Account ID"
// @Param        body  body  ConfirmPaymentRequest  true  "Payment details"
// @Success      200  {object}  map[string]interface{}  "account, audit_log, unchanged"
// @Failure      409  {object}  map[string]interface{}  "Account is not a talent"
// @Router       /api/v1/admin/accounts/{id}/confirm-payment [post]
// ConfirmPaymentHandler confirms a talent's registration payment
// POST /api/v1/admin/accounts/:id/confirm-payment
func (h *AccountHandlers) ConfirmPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ConfirmPaymentRequest
		if !bindBody(c, &req) {
			return
		}
		res, err := h.engine.ConfirmPayment(c.Request.Context(), middleware.AccountID(c), restriction.ConfirmPaymentInput{
			AccountID: c.Param("id"),
			Method:    req.Method,
			Reference: req.Reference,
			Reason:    req.Reason,
		})
		h.respondResult(c, res, err)
	}
}

// @Summary      Restrict account
// @Description  Freezes an active account with a mandatory reason and optional RFC 3339 expiry.
// @Tags         Admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string           true  "Account ID"
// @Param        body  body  RestrictRequest  true  "Restriction"
// @Success      200  {object}  map[string]interface{}  "account, audit_log, unchanged"
// @Failure      400  {object}  map[string]interface{}  "Missing reason or expiry in the past"
// @Failure      409  {object}  map[string]interface{}  "Account is payment pending or already restricted"
// @Router       /api/v1/admin/accounts/{id}/restrict [post]
// RestrictHandler applies an admin restriction
// POST /api/v1/admin/accounts/:id/restrict
func (h *AccountHandlers) RestrictHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RestrictRequest
		if !bindBody(c, &req) {
			return
		}
		res, err := h.engine.ApplyRestriction(c.Request.Context(), middleware.AccountID(c), c.Param("id"), req.Reason, req.ExpiresAt)
		h.respondResult(c, res, err)
	}
}

// @Summary      Lift restriction
// @Tags         Admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string         true  "Account ID"
// @Param        body  body  ReasonRequest  true  "Reason"
// @Success      200  {object}  map[string]interface{}  "account, audit_log, unchanged"
// @Failure      409  {object}  map[string]interface{}  "Account is not restricted"
// @Router       /api/v1/admin/accounts/{id}/lift-restriction [post]
// LiftRestrictionHandler lifts an admin restriction
// POST /api/v1/admin/accounts/:id/lift-restriction
func (h *AccountHandlers) LiftRestrictionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ReasonRequest
		if !bindBody(c, &req) {
			return
		}
		res, err := h.engine.LiftRestriction(c.Request.Context(), middleware.AccountID(c), c.Param("id"), req.Reason)
		h.respondResult(c, res, err)
	}
}

// @Summary      Change role
// @Tags         Admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string             true  "Account ID"
// @Param        body  body  ChangeRoleRequest  true  "Role change"
// @Success      200  {object}  map[string]interface{}  "account, audit_log, unchanged"
// @Router       /api/v1/admin/accounts/{id}/role [post]
// ChangeRoleHandler changes an account's role
// POST /api/v1/admin/accounts/:id/role
func (h *AccountHandlers) ChangeRoleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangeRoleRequest
		if !bindBody(c, &req) {
			return
		}
		res, err := h.engine.ChangeRole(c.Request.Context(), middleware.AccountID(c), c.Param("id"), req.Role, req.Reason)
		h.respondResult(c, res, err)
	}
}

// @Summary      Override trust score
// @Description  Sets a director's trust score (0-100). The trust level follows from the score.
// @Tags         Admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                     true  "Account ID"
// @Param        body  body  OverrideTrustScoreRequest  true  "Score override"
// @Success      200  {object}  map[string]interface{}  "account, audit_log, unchanged"
// @Failure      400  {object}  map[string]interface{}  "Score out of range or account is not a director"
// @Router       /api/v1/admin/accounts/{id}/trust-score [post]
// OverrideTrustScoreHandler sets a director's trust score
// POST /api/v1/admin/accounts/:id/trust-score
func (h *AccountHandlers) OverrideTrustScoreHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req OverrideTrustScoreRequest
		if !bindBody(c, &req) {
			return
		}
		if req.TrustScore == nil {
			respond.BadRequest(c, "trust_score is required")
			return
		}
		res, err := h.engine.OverrideTrustScore(c.Request.Context(), middleware.AccountID(c), c.Param("id"), *req.TrustScore, req.Reason)
		h.respondResult(c, res, err)
	}
}

// @Summary      Change verification tier
// @Tags         Admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                         true  "Account ID"
// @Param        body  body  ChangeVerificationTierRequest  true  "Tier change"
// @Success      200  {object}  map[string]interface{}  "account, audit_log, unchanged"
// @Failure      400  {object}  map[string]interface{}  "Unknown tier or account is not a talent"
// @Router       /api/v1/admin/accounts/{id}/verification-tier [post]
// ChangeVerificationTierHandler sets a talent's verification tier
// POST /api/v1/admin/accounts/:id/verification-tier
func (h *AccountHandlers) ChangeVerificationTierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangeVerificationTierRequest
		if !bindBody(c, &req) {
			return
		}
		res, err := h.engine.ChangeVerificationTier(c.Request.Context(), middleware.AccountID(c), c.Param("id"), req.VerificationTier, req.Reason)
		h.respondResult(c, res, err)
	}
}

func bindBody(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respond.BadRequest(c, "invalid request body")
		return false
	}
	return true
}

// respondResult renders a transition outcome with the account's derived status.
func (h *AccountHandlers) respondResult(c *gin.Context, res *restriction.Result, err error) {
	if err != nil {
		respond.Error(c, err)
		return
	}
	status, err := restriction.Describe(res.Account, h.now().UTC())
	if err != nil {
		respond.Error(c, apperr.Persistence(err, "resolve account trust"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":   status,
		"audit_log": res.Entry,
		"unchanged": res.Unchanged,
	})
}
