package admin

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castline/castline/internal/db/models"
	"github.com/castline/castline/internal/restriction/restrictiontest"
)

// ---------------------------------------------------------------------------
// Router helper
// ---------------------------------------------------------------------------

func newAccountsRouter(store *restrictiontest.MemStore, actorID string) *gin.Engine {
	h := NewAccountHandlers(newEngine(store), store)

	r := gin.New()
	g := r.Group("/admin/accounts", asAccount(actorID))
	g.GET("/:id", h.GetAccountHandler())
	g.POST("/:id/confirm-payment", h.ConfirmPaymentHandler())
	g.POST("/:id/restrict", h.RestrictHandler())
	g.POST("/:id/lift-restriction", h.LiftRestrictionHandler())
	g.POST("/:id/role", h.ChangeRoleHandler())
	g.POST("/:id/trust-score", h.OverrideTrustScoreHandler())
	g.POST("/:id/verification-tier", h.ChangeVerificationTierHandler())
	return r
}

// ---------------------------------------------------------------------------
// GetAccountHandler
// ---------------------------------------------------------------------------

func TestGetAccountHandler(t *testing.T) {
	r := newAccountsRouter(newStore(), "admin-1")

	w := doJSON(r, http.MethodGet, "/admin/accounts/director-1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := getJSON(w)
	assert.Equal(t, "ACTIVE", resp["state"])
	assert.Equal(t, "MEDIUM", resp["trust"].(map[string]interface{})["trust_level"])

	w = doJSON(r, http.MethodGet, "/admin/accounts/nobody", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAccountHandler_RequiresAdmin(t *testing.T) {
	cases := []struct {
		actor string
		want  int
	}{
		{"", http.StatusUnauthorized},
		{"ghost", http.StatusUnauthorized},
		{"talent-2", http.StatusForbidden},
		{"admin-2", http.StatusForbidden},
	}
	for _, tc := range cases {
		w := doJSON(newAccountsRouter(newStore(), tc.actor), http.MethodGet, "/admin/accounts/director-1", nil)
		assert.Equal(t, tc.want, w.Code, "actor %q", tc.actor)
	}
}

// ---------------------------------------------------------------------------
// ConfirmPaymentHandler
// ---------------------------------------------------------------------------

func TestConfirmPaymentHandler(t *testing.T) {
	store := newStore()
	r := newAccountsRouter(store, "admin-1")

	w := doJSON(r, http.MethodPost, "/admin/accounts/talent-1/confirm-payment", ConfirmPaymentRequest{Reason: "verified on chain"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := getJSON(w)
	assert.Equal(t, false, resp["unchanged"])
	assert.Equal(t, "ACTIVE", resp["account"].(map[string]interface{})["state"])
	entry := resp["audit_log"].(map[string]interface{})
	assert.Equal(t, "OTHER", entry["action_type"])
	assert.Equal(t, "admin-1", entry["actor_id"])
	assert.Equal(t, "BTC", entry["metadata"].(map[string]interface{})["payment_method"])

	stored := store.Account("talent-1")
	assert.True(t, stored.PaymentConfirmed)
	assert.False(t, stored.Frozen)

	// A retry reports unchanged and writes nothing.
	w = doJSON(r, http.MethodPost, "/admin/accounts/talent-1/confirm-payment", ConfirmPaymentRequest{})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, getJSON(w)["unchanged"])
	assert.Nil(t, getJSON(w)["audit_log"])
	assert.Len(t, store.Entries(), 1)
}

func TestConfirmPaymentHandler_Director(t *testing.T) {
	store := newStore()
	w := doJSON(newAccountsRouter(store, "admin-1"), http.MethodPost, "/admin/accounts/director-1/confirm-payment", ConfirmPaymentRequest{Method: "ETH"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICTING_STATE", getJSON(w)["code"])
	assert.Empty(t, store.Entries())
}

func TestConfirmPaymentHandler_NonAdminWritesNothing(t *testing.T) {
	store := newStore()
	w := doJSON(newAccountsRouter(store, "talent-2"), http.MethodPost, "/admin/accounts/talent-1/confirm-payment", ConfirmPaymentRequest{})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.True(t, store.Account("talent-1").Frozen)
	assert.Empty(t, store.Entries())
}

// ---------------------------------------------------------------------------
// RestrictHandler / LiftRestrictionHandler
// ---------------------------------------------------------------------------

func TestRestrictAndLift(t *testing.T) {
	store := newStore()
	r := newAccountsRouter(store, "admin-1")
	expires := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)

	w := doJSON(r, http.MethodPost, "/admin/accounts/talent-2/restrict", RestrictRequest{Reason: "spam", ExpiresAt: &expires})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	account := getJSON(w)["account"].(map[string]interface{})
	assert.Equal(t, "ADMIN_RESTRICTED", account["state"])
	assert.Equal(t, false, account["can_act"])
	assert.Equal(t, "RESTRICTION_APPLIED", getJSON(w)["audit_log"].(map[string]interface{})["action_type"])

	w = doJSON(r, http.MethodPost, "/admin/accounts/talent-2/restrict", RestrictRequest{Reason: "again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(r, http.MethodPost, "/admin/accounts/talent-2/lift-restriction", ReasonRequest{Reason: "appeal accepted"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ACTIVE", getJSON(w)["account"].(map[string]interface{})["state"])

	entries := store.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionRestrictionApplied, entries[0].ActionType)
	assert.Equal(t, models.ActionRestrictionRemoved, entries[1].ActionType)
	assert.False(t, store.Account("talent-2").Frozen)
}

func TestRestrictHandler_Rejections(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	cases := []struct {
		name   string
		target string
		body   interface{}
		want   int
	}{
		{"blank reason", "talent-2", RestrictRequest{Reason: "  "}, http.StatusBadRequest},
		{"past expiry", "talent-2", RestrictRequest{Reason: "spam", ExpiresAt: &past}, http.StatusBadRequest},
		{"bad expiry format", "talent-2", map[string]string{"reason": "spam", "expires_at": "tomorrow"}, http.StatusBadRequest},
		{"payment pending", "talent-1", RestrictRequest{Reason: "spam"}, http.StatusConflict},
		{"admin target", "admin-2", RestrictRequest{Reason: "spam"}, http.StatusBadRequest},
		{"unknown target", "nobody", RestrictRequest{Reason: "spam"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newStore()
			w := doJSON(newAccountsRouter(store, "admin-1"), http.MethodPost, "/admin/accounts/"+tc.target+"/restrict", tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
			assert.Empty(t, store.Entries())
		})
	}
}

func TestLiftRestrictionHandler_NotRestricted(t *testing.T) {
	w := doJSON(newAccountsRouter(newStore(), "admin-1"), http.MethodPost, "/admin/accounts/director-1/lift-restriction", ReasonRequest{Reason: "x"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

// ---------------------------------------------------------------------------
// Role and trust handlers
// ---------------------------------------------------------------------------

func TestChangeRoleHandler(t *testing.T) {
	store := newStore()
	r := newAccountsRouter(store, "admin-1")

	w := doJSON(r, http.MethodPost, "/admin/accounts/talent-2/role", ChangeRoleRequest{Role: "director", Reason: "casting agency"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.RoleDirector, store.Account("talent-2").Role)

	w = doJSON(r, http.MethodPost, "/admin/accounts/talent-2/role", ChangeRoleRequest{Role: "producer", Reason: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/admin/accounts/talent-1/role", ChangeRoleRequest{Role: "director", Reason: "switching"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, models.RoleTalent, store.Account("talent-1").Role)
}

func TestOverrideTrustScoreHandler(t *testing.T) {
	store := newStore()
	r := newAccountsRouter(store, "admin-1")

	w := doJSON(r, http.MethodPost, "/admin/accounts/director-1/trust-score", map[string]interface{}{"trust_score": 85, "reason": "long record"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ELITE", getJSON(w)["account"].(map[string]interface{})["trust"].(map[string]interface{})["trust_level"])
	assert.Equal(t, 85, store.Account("director-1").TrustScore)

	cases := []struct {
		name   string
		target string
		body   map[string]interface{}
	}{
		{"missing score", "director-1", map[string]interface{}{"reason": "x"}},
		{"out of range", "director-1", map[string]interface{}{"trust_score": 101, "reason": "x"}},
		{"talent target", "talent-2", map[string]interface{}{"trust_score": 50, "reason": "x"}},
	}
	for _, tc := range cases {
		w := doJSON(r, http.MethodPost, "/admin/accounts/"+tc.target+"/trust-score", tc.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, tc.name)
	}
	assert.Len(t, store.Entries(), 1)
}

func TestChangeVerificationTierHandler(t *testing.T) {
	store := newStore()
	r := newAccountsRouter(store, "admin-1")

	w := doJSON(r, http.MethodPost, "/admin/accounts/talent-2/verification-tier", ChangeVerificationTierRequest{VerificationTier: "VERIFIED", Reason: "id checked"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	entry := getJSON(w)["audit_log"].(map[string]interface{})
	assert.Equal(t, "TRUST_TIER_CHANGE", entry["action_type"])
	assert.Equal(t, models.TierVerified, store.Account("talent-2").VerificationTier)

	w = doJSON(r, http.MethodPost, "/admin/accounts/talent-2/verification-tier", ChangeVerificationTierRequest{VerificationTier: "VERIFIED", Reason: "again"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, getJSON(w)["unchanged"])
	assert.Len(t, store.Entries(), 1)
}

func TestAccountHandlers_MalformedBody(t *testing.T) {
	r := newAccountsRouter(newStore(), "admin-1")
	for _, path := range []string{"confirm-payment", "restrict", "lift-restriction", "role", "trust-score", "verification-tier"} {
		w := doJSON(r, http.MethodPost, "/admin/accounts/talent-2/"+path, "not-an-object")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}
