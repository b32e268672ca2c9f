// audit_repository.go implements AuditRepository, the append-only audit ledger store. It exposes
// insert and read queries only: ledger entries are never updated or deleted through this layer.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/castline/castline/internal/db/models"
)

const auditColumns = `id, actor_id, actor_role, target_user_id, target_user_role, action_type,
	before_state, after_state, reason, metadata, created_at`

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilters contains filters for querying audit logs
type AuditFilters struct {
	TargetUserID *string
	ActorID      *string
	ActionType   *models.ActionType
	StartDate    *time.Time
	EndDate      *time.Time
}

// auditRow mirrors the audit_logs table; JSONB columns are decoded after scanning.
type auditRow struct {
	ID             string            `db:"id"`
	ActorID        string            `db:"actor_id"`
	ActorRole      models.ActorRole  `db:"actor_role"`
	TargetUserID   string            `db:"target_user_id"`
	TargetUserRole models.Role       `db:"target_user_role"`
	ActionType     models.ActionType `db:"action_type"`
	BeforeState    []byte            `db:"before_state"`
	AfterState     []byte            `db:"after_state"`
	Reason         string            `db:"reason"`
	Metadata       []byte            `db:"metadata"`
	CreatedAt      time.Time         `db:"created_at"`
}

func (row *auditRow) toModel() (*models.AuditLog, error) {
	log := &models.AuditLog{
		ID:             row.ID,
		ActorID:        row.ActorID,
		ActorRole:      row.ActorRole,
		TargetUserID:   row.TargetUserID,
		TargetUserRole: row.TargetUserRole,
		ActionType:     row.ActionType,
		Reason:         row.Reason,
		CreatedAt:      row.CreatedAt,
	}
	for _, col := range []struct {
		raw []byte
		dst *map[string]interface{}
	}{
		{row.BeforeState, &log.BeforeState},
		{row.AfterState, &log.AfterState},
		{row.Metadata, &log.Metadata},
	} {
		if col.raw == nil {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("decode audit log %s: %w", row.ID, err)
		}
	}
	return log, nil
}

// insertAuditLog writes one entry using ext, which is either the DB or an open
// transaction. ID and CreatedAt are assigned here.
func insertAuditLog(ctx context.Context, ext sqlx.ExecerContext, log *models.AuditLog) error {
	log.ID = uuid.New().String()
	log.CreatedAt = time.Now().UTC()

	before, err := json.Marshal(log.BeforeState)
	if err != nil {
		return err
	}
	after, err := json.Marshal(log.AfterState)
	if err != nil {
		return err
	}
	var metadataJSON []byte
	if log.Metadata != nil {
		metadataJSON, err = json.Marshal(log.Metadata)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = ext.ExecContext(ctx, query,
		log.ID,
		log.ActorID,
		log.ActorRole,
		log.TargetUserID,
		log.TargetUserRole,
		log.ActionType,
		before,
		after,
		log.Reason,
		metadataJSON,
		log.CreatedAt,
	)
	return err
}

// CreateAuditLog appends a standalone audit log entry
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return insertAuditLog(ctx, r.db, log)
}

// ListAuditLogs retrieves audit logs with optional filters and pagination, newest first
func (r *AuditRepository) ListAuditLogs(ctx context.Context, filters AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	where := ` WHERE 1=1`
	args := make([]interface{}, 0)
	paramIndex := 1

	add := func(clause string, v interface{}) {
		where += fmt.Sprintf(clause, paramIndex)
		args = append(args, v)
		paramIndex++
	}
	if filters.TargetUserID != nil {
		add(` AND target_user_id = $%d`, *filters.TargetUserID)
	}
	if filters.ActorID != nil {
		add(` AND actor_id = $%d`, *filters.ActorID)
	}
	if filters.ActionType != nil {
		add(` AND action_type = $%d`, *filters.ActionType)
	}
	if filters.StartDate != nil {
		add(` AND created_at >= $%d`, *filters.StartDate)
	}
	if filters.EndDate != nil {
		add(` AND created_at <= $%d`, *filters.EndDate)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM audit_logs`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + auditColumns + ` FROM audit_logs` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, err
	}

	logs := make([]*models.AuditLog, 0, len(rows))
	for i := range rows {
		log, err := rows[i].toModel()
		if err != nil {
			return nil, 0, err
		}
		logs = append(logs, log)
	}
	return logs, total, nil
}

// GetAuditLog retrieves a single audit log entry by ID. Returns nil, nil when absent.
func (r *AuditRepository) GetAuditLog(ctx context.Context, logID string) (*models.AuditLog, error) {
	var row auditRow
	query := `SELECT ` + auditColumns + ` FROM audit_logs WHERE id = $1`
	err := r.db.GetContext(ctx, &row, query, logID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toModel()
}
