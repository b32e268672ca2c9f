// audit_logs.go implements read-only handlers over the audit ledger. There are no
// update or delete endpoints.
package admin

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/castline/castline/internal/api/respond"
	"github.com/castline/castline/internal/apperr"
	"github.com/castline/castline/internal/db/models"
	"github.com/castline/castline/internal/db/repositories"
	"github.com/castline/castline/internal/middleware"
)

// AuditReader queries the audit ledger.
type AuditReader interface {
	ListAuditLogs(ctx context.Context, filters repositories.AuditFilters, limit, offset int) ([]*models.AuditLog, int, error)
	GetAuditLog(ctx context.Context, logID string) (*models.AuditLog, error)
}

// AuditHandlers handles audit ledger endpoints
type AuditHandlers struct {
	verifier AdminVerifier
	logs     AuditReader
}

// NewAuditHandlers creates a new AuditHandlers instance
func NewAuditHandlers(verifier AdminVerifier, logs AuditReader) *AuditHandlers {
	return &AuditHandlers{verifier: verifier, logs: logs}
}

// maxAuditPage keeps (page-1)*per_page well inside the OFFSET range.
const maxAuditPage = 1_000_000

// @Summary      List audit logs
// @Description  Returns ledger entries newest first. Dates are RFC 3339 and bound created_at inclusively.
// @Tags         Admin
// @Security     Bearer
// @Produce      json
// @Param        target_user_id  query  string  false  "Target account ID"
// @Param        actor_id        query  string  false  "Actor account ID"
// @Param        action_type     query  string  false  "Action type, e.g. RESTRICTION_APPLIED"
// @Param        start_date      query  string  false  "Earliest created_at (RFC 3339)"
// @Param        end_date        query  string  false  "Latest created_at (RFC 3339)"
// @Param        page            query  int     false  "Page number (default 1)"
// @Param        per_page        query  int     false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "audit_logs: []models.AuditLog, pagination: map"
// @Failure      400  {object}  map[string]interface{}  "Invalid filter"
// @Failure      403  {object}  map[string]interface{}  "Caller is not an active admin"
// @Router       /api/v1/admin/audit-logs [get]
// ListAuditLogsHandler lists audit log entries with filters and pagination
// GET /api/v1/admin/audit-logs?page=1&per_page=20
func (h *AuditHandlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if _, err := h.verifier.VerifyAdmin(ctx, middleware.AccountID(c)); err != nil {
			respond.Error(c, err)
			return
		}

		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
		if page < 1 {
			page = 1
		}
		if perPage < 1 || perPage > 100 {
			perPage = 20
		}
		if page > maxAuditPage {
			respond.BadRequest(c, "page must not exceed %d", maxAuditPage)
			return
		}

		filters, err := parseAuditFilters(c)
		if err != nil {
			respond.Error(c, err)
			return
		}

		logs, total, err := h.logs.ListAuditLogs(ctx, filters, perPage, (page-1)*perPage)
		if err != nil {
			respond.Error(c, apperr.Persistence(err, "list audit logs"))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"audit_logs": logs,
			"pagination": gin.H{
				"page":     page,
				"per_page": perPage,
				"total":    total,
			},
		})
	}
}

// @Summary      Get audit log
// @Tags         Admin
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Audit log ID"
// @Success      200  {object}  models.AuditLog
// @Failure      404  {object}  map[string]interface{}  "Audit log not found"
// @Router       /api/v1/admin/audit-logs/{id} [get]
// GetAuditLogHandler returns a single audit log entry
// GET /api/v1/admin/audit-logs/:id
func (h *AuditHandlers) GetAuditLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if _, err := h.verifier.VerifyAdmin(ctx, middleware.AccountID(c)); err != nil {
			respond.Error(c, err)
			return
		}

		id := c.Param("id")
		log, err := h.logs.GetAuditLog(ctx, id)
		if err != nil {
			respond.Error(c, apperr.Persistence(err, "load audit log"))
			return
		}
		if log == nil {
			respond.Error(c, apperr.NotFound("audit log %s not found", id))
			return
		}
		c.JSON(http.StatusOK, log)
	}
}

func parseAuditFilters(c *gin.Context) (repositories.AuditFilters, error) {
	var f repositories.AuditFilters
	if v := c.Query("target_user_id"); v != "" {
		f.TargetUserID = &v
	}
	if v := c.Query("actor_id"); v != "" {
		f.ActorID = &v
	}
	if v := c.Query("action_type"); v != "" {
		action, ok := models.ParseActionType(v)
		if !ok {
			return f, apperr.InvalidInput("unknown action_type %q", v)
		}
		f.ActionType = &action
	}

	var err error
	if f.StartDate, err = parseDate(c, "start_date"); err != nil {
		return f, err
	}
	if f.EndDate, err = parseDate(c, "end_date"); err != nil {
		return f, err
	}
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(*f.EndDate) {
		return f, apperr.InvalidInput("start_date must not be after end_date")
	}
	return f, nil
}

func parseDate(c *gin.Context, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, apperr.InvalidInput("%s must be an RFC 3339 timestamp", key)
	}
	return &t, nil
}
