// Package settings resolves platform settings. Values saved by an admin take precedence
// over the defaults from configuration; callers receive plain values so the payment
// flow never reaches into shared state on its own.
package settings

import (
	"context"
	"strings"

	"github.com/castline/castline/internal/apperr"
	"github.com/castline/castline/internal/config"
	"github.com/castline/castline/internal/db/models"
)

// Store persists admin-saved settings.
type Store interface {
	GetPaymentSettings(ctx context.Context) (*models.PaymentSettings, error)
	UpsertPaymentSettings(ctx context.Context, settings *models.PaymentSettings, updatedBy string) error
}

// Resolver combines stored settings with configured defaults.
type Resolver struct {
	store    Store
	defaults models.PaymentSettings
}

// NewResolver creates a Resolver.
func NewResolver(store Store, cfg config.PaymentConfig) *Resolver {
	return &Resolver{
		store: store,
		defaults: models.PaymentSettings{
			ETHAddress: strings.TrimSpace(cfg.ETHAddress),
			BTCAddress: strings.TrimSpace(cfg.BTCAddress),
		},
	}
}

// PaymentSettings returns the saved payment settings, or the configured defaults
// when nothing was saved yet.
func (r *Resolver) PaymentSettings(ctx context.Context) (models.PaymentSettings, error) {
	stored, err := r.store.GetPaymentSettings(ctx)
	if err != nil {
		return models.PaymentSettings{}, apperr.Persistence(err, "load payment settings")
	}
	if stored == nil {
		return r.defaults, nil
	}
	return *stored, nil
}

// UpdatePaymentSettings saves new payment addresses. At least one method must
// stay enabled, otherwise no talent could ever pay.
func (r *Resolver) UpdatePaymentSettings(ctx context.Context, in models.PaymentSettings, updatedBy string) (models.PaymentSettings, error) {
	s := models.PaymentSettings{
		ETHAddress: strings.TrimSpace(in.ETHAddress),
		BTCAddress: strings.TrimSpace(in.BTCAddress),
	}
	if s.ETHAddress == "" && s.BTCAddress == "" {
		return models.PaymentSettings{}, apperr.InvalidInput("at least one payment address is required")
	}
	if err := r.store.UpsertPaymentSettings(ctx, &s, updatedBy); err != nil {
		return models.PaymentSettings{}, apperr.Persistence(err, "save payment settings")
	}
	return s, nil
}
