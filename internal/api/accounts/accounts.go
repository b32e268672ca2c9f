// Package accounts serves the authenticated caller's own account: its restriction
// state and trust profile, and the talent payment submission flow.
package accounts

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

// AccountReader loads accounts.
type AccountReader interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
}

// PaymentSubmitter records a talent's payment claim.
type PaymentSubmitter interface {
	SubmitPayment(ctx context.Context, accountID string, settings models.PaymentSettings, in restriction.SubmitPaymentInput) (*models.Account, error)
}

// PaymentSettingsSource resolves the current payment settings.
type PaymentSettingsSource interface {
	PaymentSettings(ctx context.Context) (models.PaymentSettings, error)
}

// Handlers handles account self-service and public payment settings endpoints
type Handlers struct {
	accounts AccountReader
	payments PaymentSubmitter
	settings PaymentSettingsSource
	now      func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(accounts AccountReader, payments PaymentSubmitter, settings PaymentSettingsSource) *Handlers {
	return &Handlers{
		accounts: accounts,
		payments: payments,
		settings: settings,
		now:      time.Now,
	}
}

// @Summary      Current account
// @Description  Returns the caller's account with its restriction state, whether it can act, and its trust profile.
// @Tags         Accounts
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  restriction.Status
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/v1/accounts/me [get]
// GetMeHandler returns the authenticated account
// GET /api/v1/accounts/me
func (h *Handlers) GetMeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := middleware.AccountID(c)
		account, err := h.accounts.GetAccount(c.Request.Context(), accountID)
		if err != nil {
			respond.Error(c, apperr.Persistence(err, "load account"))
			return
		}
		if account == nil {
			respond.Error(c, apperr.Unauthorized("account not found"))
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

// SubmitPaymentRequest is a talent's payment claim.
type SubmitPaymentRequest struct {
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

// @Summary      Submit registration payment
// @Description  Records the payment method and transaction reference for admin review. The account stays locked until an admin confirms.
// @Tags         Accounts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  SubmitPaymentRequest  true  "Payment claim"
// @Success      202  {object}  map[string]interface{}  "account, state"
// @Failure      400  {object}  map[string]interface{}  "Invalid method or blank reference"
// @Failure      403  {object}  map[string]interface{}  "Caller is not a talent"
// @Failure      409  {object}  map[string]interface{}  "Payment already confirmed"
// @Router       /api/v1/accounts/me/payment [post]
// SubmitPaymentHandler records a talent's payment claim
// POST /api/v1/accounts/me/payment
func (h *Handlers) SubmitPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SubmitPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BadRequest(c, "invalid request body")
			return
		}

		settings, err := h.settings.PaymentSettings(c.Request.Context())
		if err != nil {
			respond.Error(c, err)
			return
		}

		account, err := h.payments.SubmitPayment(c.Request.Context(), middleware.AccountID(c), settings, restriction.SubmitPaymentInput{
			Method:    req.Method,
			Reference: req.Reference,
		})
		if err != nil {
			respond.Error(c, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"account": account,
			"state":   account.State(),
		})
	}
}

// @Summary      Payment settings
// @Description  Returns the addresses talents pay their registration fee to. An empty address means the method is not accepted.
// @Tags         Settings
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "eth_address, btc_address, methods"
// @Router       /api/v1/settings/payment [get]
// GetPaymentSettingsHandler returns the public payment settings
// GET /api/v1/settings/payment
func (h *Handlers) GetPaymentSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		settings, err := h.settings.PaymentSettings(c.Request.Context())
		if err != nil {
			respond.Error(c, err)
			return
		}

		methods := make([]models.PaymentMethod, 0, 2)
		for _, m := range []models.PaymentMethod{models.PaymentETH, models.PaymentBTC} {
			if _, ok := settings.AddressFor(m); ok {
				methods = append(methods, m)
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"eth_address": settings.ETHAddress,
			"btc_address": settings.BTCAddress,
			"methods":     methods,
		})
	}
}
