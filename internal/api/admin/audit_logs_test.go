package admin

import (
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castline/castline/internal/db/repositories"
)

// ---------------------------------------------------------------------------
// Router helper
// ---------------------------------------------------------------------------

var auditCols = []string{
	"id", "actor_id", "actor_role", "target_user_id", "target_user_role", "action_type",
	"before_state", "after_state", "reason", "metadata", "created_at",
}

func newAuditRouter(t *testing.T, actorID string) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := repositories.NewAuditRepository(sqlx.NewDb(db, "sqlmock"))
	h := NewAuditHandlers(newEngine(newStore()), repo)

	r := gin.New()
	g := r.Group("/admin/audit-logs", asAccount(actorID))
	g.GET("", h.ListAuditLogsHandler())
	g.GET("/:id", h.GetAuditLogHandler())
	return mock, r
}

func auditRows() *sqlmock.Rows {
	return sqlmock.NewRows(auditCols).
		AddRow("log-2", "admin-1", "ADMIN", "talent-2", "TALENT", "RESTRICTION_REMOVED",
			[]byte(`{"frozen":true}`), []byte(`{"frozen":false}`), "appeal accepted", nil, time.Now()).
		AddRow("log-1", "admin-1", "ADMIN", "talent-2", "TALENT", "RESTRICTION_APPLIED",
			[]byte(`{"frozen":false}`), []byte(`{"frozen":true}`), "spam", nil, time.Now().Add(-time.Hour))
}

// ---------------------------------------------------------------------------
// ListAuditLogsHandler
// ---------------------------------------------------------------------------

func TestListAuditLogsHandler(t *testing.T) {
	mock, r := newAuditRouter(t, "admin-1")
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT .* FROM audit_logs.*ORDER BY created_at DESC").
		WithArgs(20, 0).
		WillReturnRows(auditRows())

	w := doJSON(r, http.MethodGet, "/admin/audit-logs", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := getJSON(w)
	logs := resp["audit_logs"].([]interface{})
	require.Len(t, logs, 2)
	assert.Equal(t, "log-2", logs[0].(map[string]interface{})["id"])
	assert.Equal(t, float64(2), resp["pagination"].(map[string]interface{})["total"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAuditLogsHandler_FiltersAndPaging(t *testing.T) {
	mock, r := newAuditRouter(t, "admin-1")
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("talent-2", "admin-1", "RESTRICTION_APPLIED", start, end).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT .* FROM audit_logs").
		WithArgs("talent-2", "admin-1", "RESTRICTION_APPLIED", start, end, 10, 10).
		WillReturnRows(sqlmock.NewRows(auditCols))

	w := doJSON(r, http.MethodGet, "/admin/audit-logs?target_user_id=talent-2&actor_id=admin-1"+
		"&action_type=restriction_applied&start_date=2026-01-01T00:00:00Z&end_date=2026-02-01T00:00:00Z"+
		"&page=2&per_page=10", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, getJSON(w)["audit_logs"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAuditLogsHandler_InvalidFilters(t *testing.T) {
	for _, q := range []string{
		"action_type=DELETED",
		"start_date=yesterday",
		"end_date=2026-13-01",
		"start_date=2026-02-01T00:00:00Z&end_date=2026-01-01T00:00:00Z",
		"page=9223372036854775807&per_page=100",
		"page=1000001",
	} {
		mock, r := newAuditRouter(t, "admin-1")
		w := doJSON(r, http.MethodGet, "/admin/audit-logs?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.NoError(t, mock.ExpectationsWereMet(), q)
	}
}

func TestListAuditLogsHandler_LastAllowedPage(t *testing.T) {
	mock, r := newAuditRouter(t, "admin-1")
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT .* FROM audit_logs").
		WithArgs(100, (maxAuditPage-1)*100).
		WillReturnRows(sqlmock.NewRows(auditCols))

	w := doJSON(r, http.MethodGet, "/admin/audit-logs?page=1000000&per_page=100", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAuditLogsHandler_DBError(t *testing.T) {
	mock, r := newAuditRouter(t, "admin-1")
	mock.ExpectQuery("SELECT COUNT").WillReturnError(errDB)

	w := doJSON(r, http.MethodGet, "/admin/audit-logs", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", getJSON(w)["error"])
}

func TestListAuditLogsHandler_RequiresAdmin(t *testing.T) {
	mock, r := newAuditRouter(t, "director-1")
	w := doJSON(r, http.MethodGet, "/admin/audit-logs", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// GetAuditLogHandler
// ---------------------------------------------------------------------------

func TestGetAuditLogHandler(t *testing.T) {
	mock, r := newAuditRouter(t, "admin-1")
	mock.ExpectQuery("SELECT .* FROM audit_logs WHERE id").
		WithArgs("log-1").
		WillReturnRows(sqlmock.NewRows(auditCols).
			AddRow("log-1", "admin-1", "ADMIN", "talent-2", "TALENT", "RESTRICTION_APPLIED",
				[]byte(`{"frozen":false}`), []byte(`{"frozen":true}`), "spam", nil, time.Now()))

	w := doJSON(r, http.MethodGet, "/admin/audit-logs/log-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := getJSON(w)
	assert.Equal(t, "RESTRICTION_APPLIED", resp["action_type"])
	assert.Equal(t, true, resp["after_state"].(map[string]interface{})["frozen"])
}

func TestGetAuditLogHandler_NotFound(t *testing.T) {
	mock, r := newAuditRouter(t, "admin-1")
	mock.ExpectQuery("SELECT .* FROM audit_logs WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(auditCols))

	w := doJSON(r, http.MethodGet, "/admin/audit-logs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
