package repositories

import (
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

var errDB = errors.New("db error")

func strPtr(s string) *string { return &s }

// newMockDB returns a sqlx handle backed by sqlmock.
func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var accountCols = []string{
	"id", "role", "trust_score", "verification_tier", "frozen", "restriction_reason",
	"restriction_expires_at", "payment_confirmed", "payment_method", "payment_reference", "payment_at",
	"version", "created_at", "updated_at",
}

func sampleTalentRow() *sqlmock.Rows {
	return sqlmock.NewRows(accountCols).
		AddRow("talent-1", "TALENT", 0, "BASIC", true, nil,
			nil, false, "ETH", "0xdeadbeef", nil,
			3, time.Now(), time.Now())
}
