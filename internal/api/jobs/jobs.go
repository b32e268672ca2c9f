// Package jobs serves the public casting job listing, ranked by each director's
// current trust on every request.
package jobs

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/castline/castline/internal/api/respond"
	"github.com/castline/castline/internal/apperr"
	"github.com/castline/castline/internal/db/models"
	"github.com/castline/castline/internal/telemetry"
	"github.com/castline/castline/internal/trust"
)

// JobLister reads open jobs joined with their director's trust score.
type JobLister interface {
	ListOpenJobs(ctx context.Context, now time.Time) ([]models.JobWithDirectorTrust, error)
}

// Handlers handles job listing endpoints
type Handlers struct {
	jobs JobLister
	now  func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(jobs JobLister) *Handlers {
	return &Handlers{jobs: jobs, now: time.Now}
}

// @Summary      List open jobs
// @Description  Lists open casting jobs ordered by the director's visibility weight, then soonest deadline.
// @Tags         Jobs
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "jobs: []trust.RankedJob"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/v1/jobs [get]
// ListOpenJobsHandler lists open jobs
// GET /api/v1/jobs
func (h *Handlers) ListOpenJobsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := h.jobs.ListOpenJobs(c.Request.Context(), h.now().UTC())
		if err != nil {
			respond.Error(c, apperr.Persistence(err, "list open jobs"))
			return
		}

		start := time.Now()
		ranked, err := trust.RankJobs(rows)
		telemetry.JobListingRankDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			respond.Error(c, apperr.Persistence(err, "rank open jobs"))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"jobs":  ranked,
			"total": len(ranked),
		})
	}
}
