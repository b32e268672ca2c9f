// Package repositories implements the data access layer (repository pattern) for castline.
// Each repository type encapsulates all database queries for a domain entity.
// Handlers and the trust engine never issue SQL directly; all database access goes through this layer.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/castline/castline/internal/apperr"
	"github.com/castline/castline/internal/db/models"
)

const accountColumns = `id, role, trust_score, verification_tier, frozen, restriction_reason,
	restriction_expires_at, payment_confirmed, payment_method, payment_reference, payment_at,
	version, created_at, updated_at`

// AccountRepository handles account database operations
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new AccountRepository
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetAccount retrieves an account by ID. Returns nil, nil when absent.
func (r *AccountRepository) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	err := r.db.GetContext(ctx, &account, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ListExpiredRestrictions returns restricted accounts whose restriction expiry has
// passed, oldest expiry first. Payment-pending talents are excluded.
func (r *AccountRepository) ListExpiredRestrictions(ctx context.Context, now time.Time, limit int) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE frozen = true
		  AND restriction_expires_at IS NOT NULL
		  AND restriction_expires_at <= $1
		  AND (role <> 'TALENT' OR payment_confirmed = true)
		ORDER BY restriction_expires_at ASC
		LIMIT $2`

	accounts := make([]*models.Account, 0)
	if err := r.db.SelectContext(ctx, &accounts, query, now, limit); err != nil {
		return nil, err
	}
	return accounts, nil
}

// ApplyMutation persists the mutated account and, when entry is non-nil, its audit
// ledger entry in a single transaction. The update only succeeds if the stored
// version still equals account.Version; otherwise nothing is written and a
// ConflictingState error is returned. On success account.Version is incremented
// and the entry carries its assigned ID and CreatedAt.
func (r *AccountRepository) ApplyMutation(ctx context.Context, account *models.Account, entry *models.AuditLog) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Persistence(err, "begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	query := `
		UPDATE accounts SET
			role = $3,
			trust_score = $4,
			verification_tier = $5,
			frozen = $6,
			restriction_reason = $7,
			restriction_expires_at = $8,
			payment_confirmed = $9,
			payment_method = $10,
			payment_reference = $11,
			payment_at = $12,
			version = version + 1,
			updated_at = $13
		WHERE id = $1 AND version = $2
	`
	res, err := tx.ExecContext(ctx, query,
		account.ID,
		account.Version,
		account.Role,
		account.TrustScore,
		account.VerificationTier,
		account.Frozen,
		account.RestrictionReason,
		account.RestrictionExpiresAt,
		account.PaymentConfirmed,
		account.PaymentMethod,
		account.PaymentReference,
		account.PaymentAt,
		now,
	)
	if err != nil {
		return apperr.Persistence(err, "update account")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Persistence(err, "update account")
	}
	if n == 0 {
		return apperr.Conflict("account %s was modified concurrently; reload and retry", account.ID)
	}

	if entry != nil {
		if err = insertAuditLog(ctx, tx, entry); err != nil {
			return apperr.Persistence(fmt.Errorf("%w: %v", apperr.ErrLedgerWrite, err), "record audit entry")
		}
	}

	if err = tx.Commit(); err != nil {
		return apperr.Persistence(fmt.Errorf("%w: %v", apperr.ErrCommitUnknown, err), "commit account mutation")
	}

	account.Version++
	account.UpdatedAt = now
	return nil
}
