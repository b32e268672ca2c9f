// settings_repository.go implements SettingsRepository for keyed platform settings rows
// stored as JSONB. Only the payment settings key is used today.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/castline/castline/internal/db/models"
)

// SettingsRepository handles platform settings database operations
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetPaymentSettings returns the stored payment settings, or nil, nil if none were saved.
func (r *SettingsRepository) GetPaymentSettings(ctx context.Context) (*models.PaymentSettings, error) {
	var row struct {
		Value     []byte    `db:"value"`
		UpdatedAt time.Time `db:"updated_at"`
		UpdatedBy *string   `db:"updated_by"`
	}
	query := `SELECT value, updated_at, updated_by FROM settings WHERE key = $1`
	err := r.db.GetContext(ctx, &row, query, models.PaymentSettingsKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var settings models.PaymentSettings
	if err := json.Unmarshal(row.Value, &settings); err != nil {
		return nil, err
	}
	settings.UpdatedAt = &row.UpdatedAt
	settings.UpdatedBy = row.UpdatedBy
	return &settings, nil
}

// UpsertPaymentSettings stores the payment settings, replacing any previous value.
func (r *SettingsRepository) UpsertPaymentSettings(ctx context.Context, settings *models.PaymentSettings, updatedBy string) error {
	value, err := json.Marshal(models.PaymentSettings{
		ETHAddress: settings.ETHAddress,
		BTCAddress: settings.BTCAddress,
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO settings (key, value, updated_at, updated_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by
	`
	if _, err := r.db.ExecContext(ctx, query, models.PaymentSettingsKey, value, now, updatedBy); err != nil {
		return err
	}
	settings.UpdatedAt = &now
	settings.UpdatedBy = &updatedBy
	return nil
}
