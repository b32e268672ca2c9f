// settings.go implements the admin handler for platform payment settings.
package admin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/castline/castline/internal/api/respond"
	"github.com/castline/castline/internal/db/models"
	"github.com/castline/castline/internal/middleware"
)

// PaymentSettingsUpdater saves payment settings.
type PaymentSettingsUpdater interface {
	UpdatePaymentSettings(ctx context.Context, in models.PaymentSettings, updatedBy string) (models.PaymentSettings, error)
}

// SettingsHandlers handles admin settings endpoints
type SettingsHandlers struct {
	verifier AdminVerifier
	settings PaymentSettingsUpdater
}

// NewSettingsHandlers creates a new SettingsHandlers instance
func NewSettingsHandlers(verifier AdminVerifier, settings PaymentSettingsUpdater) *SettingsHandlers {
	return &SettingsHandlers{verifier: verifier, settings: settings}
}

// UpdatePaymentSettingsRequest replaces both payment addresses. An empty address
// disables that method; at least one must be set.
type UpdatePaymentSettingsRequest struct {
	ETHAddress string `json:"eth_address"`
	BTCAddress string `json:"btc_address"`
}

// @Summary      Update payment settings
// @Tags         Admin
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  UpdatePaymentSettingsRequest  true  "Payment addresses"
// @Success      200  {object}  models.PaymentSettings
// @Failure      400  {object}  map[string]interface{}  "No address given"
// @Failure      403  {object}  map[string]interface{}  "Caller is not an active admin"
// @Router       /api/v1/admin/settings/payment [put]
// UpdatePaymentSettingsHandler saves the payment addresses
// PUT /api/v1/admin/settings/payment
func (h *SettingsHandlers) UpdatePaymentSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		actor, err := h.verifier.VerifyAdmin(ctx, middleware.AccountID(c))
		if err != nil {
			respond.Error(c, err)
			return
		}

		var req UpdatePaymentSettingsRequest
		if !bindBody(c, &req) {
			return
		}

		saved, err := h.settings.UpdatePaymentSettings(ctx, models.PaymentSettings{
			ETHAddress: req.ETHAddress,
			BTCAddress: req.BTCAddress,
		}, actor.ID)
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, saved)
	}
}
