package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castline/castline/internal/db/models"
)

func TestGetPaymentSettings_Found(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)
	now := time.Now()

	mock.ExpectQuery("SELECT value, updated_at, updated_by FROM settings WHERE key").
		WithArgs(models.PaymentSettingsKey).
		WillReturnRows(sqlmock.NewRows([]string{"value", "updated_at", "updated_by"}).
			AddRow([]byte(`{"eth_address":"0xabc","btc_address":""}`), now, "admin-1"))

	settings, err := repo.GetPaymentSettings(context.Background())
	require.NoError(t, err)
	require.NotNil(t, settings)
	assert.Equal(t, "0xabc", settings.ETHAddress)
	_, btcEnabled := settings.AddressFor(models.PaymentBTC)
	assert.False(t, btcEnabled)
	require.NotNil(t, settings.UpdatedBy)
	assert.Equal(t, "admin-1", *settings.UpdatedBy)
}

func TestGetPaymentSettings_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)
	mock.ExpectQuery("SELECT value").
		WillReturnRows(sqlmock.NewRows([]string{"value", "updated_at", "updated_by"}))

	settings, err := repo.GetPaymentSettings(context.Background())
	require.NoError(t, err)
	assert.Nil(t, settings)
}

func TestUpsertPaymentSettings(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)
	mock.ExpectExec("INSERT INTO settings .* ON CONFLICT \\(key\\) DO UPDATE").
		WithArgs(models.PaymentSettingsKey, sqlmock.AnyArg(), sqlmock.AnyArg(), "admin-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	settings := &models.PaymentSettings{ETHAddress: "0xabc", BTCAddress: "bc1q"}
	require.NoError(t, repo.UpsertPaymentSettings(context.Background(), settings, "admin-1"))
	require.NotNil(t, settings.UpdatedAt)
	assert.Equal(t, "admin-1", *settings.UpdatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPaymentSettings_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)
	mock.ExpectExec("INSERT INTO settings").WillReturnError(errDB)

	settings := &models.PaymentSettings{ETHAddress: "0xabc"}
	assert.Error(t, repo.UpsertPaymentSettings(context.Background(), settings, "admin-1"))
	assert.Nil(t, settings.UpdatedAt)
}
