// job_repository.go implements JobRepository, reading open casting jobs joined with the
// owning director's current trust score for the public listing.
package repositories

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/castline/castline/internal/db/models"
)

// JobRepository handles job database operations
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new JobRepository
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// ListOpenJobs returns open, unexpired jobs in creation order together with each
// director's trust score as stored right now. Jobs of directors under an active
// restriction are excluded.
func (r *JobRepository) ListOpenJobs(ctx context.Context, now time.Time) ([]models.JobWithDirectorTrust, error) {
	query := `
		SELECT j.id, j.director_id, j.title, j.location, j.status, j.deadline, j.created_at,
		       d.trust_score AS director_trust_score
		FROM jobs j
		JOIN accounts d ON d.id = j.director_id
		WHERE j.status = 'OPEN'
		  AND (j.deadline IS NULL OR j.deadline >= $1)
		  AND (d.frozen = false OR (d.restriction_expires_at IS NOT NULL AND d.restriction_expires_at <= $1 AND d.restriction_reason IS NOT NULL))
		ORDER BY j.created_at ASC, j.id ASC
	`
	jobs := make([]models.JobWithDirectorTrust, 0)
	if err := r.db.SelectContext(ctx, &jobs, query, now); err != nil {
		return nil, err
	}
	return jobs, nil
}
