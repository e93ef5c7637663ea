package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"gemmy/internal/auth"
	"gemmy/internal/store"
)

func newRouter(t *testing.T) (*gin.Engine, *auth.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := auth.NewService(store.NewMemory(), "mw-secret", time.Hour, time.Hour, zap.NewNop())

	r := gin.New()
	r.Use(RequestID())
	g := r.Group("/", AuthGuard(svc, zap.NewNop()))
	g.GET("/who", func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"uid": id.UID})
	})
	g.GET("/vendor", RequireVendor(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r, svc
}

func get(r *gin.Engine, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthGuard(t *testing.T) {
	r, svc := newRouter(t)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/who", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/who", "not-a-jwt").Code)

	tokens, id, err := svc.Anonymous()
	require.NoError(t, err)
	w := get(r, "/who", tokens.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.UID)
}

func TestRequireVendor(t *testing.T) {
	r, svc := newRouter(t)
	ctx := context.Background()

	anon, _, err := svc.Anonymous()
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, get(r, "/vendor", anon.AccessToken).Code)

	_, err = svc.CreateAccount(ctx, "staff@gemmy.test", "", "pw", false)
	require.NoError(t, err)
	staff, _, err := svc.Login(ctx, "staff@gemmy.test", "pw")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, get(r, "/vendor", staff.AccessToken).Code)

	_, err = svc.CreateAccount(ctx, "owner@gemmy.test", "", "pw", true)
	require.NoError(t, err)
	owner, _, err := svc.Login(ctx, "owner@gemmy.test", "pw")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, get(r, "/vendor", owner.AccessToken).Code)
}

func TestRequestIDReusesHeader(t *testing.T) {
	r, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))

	w = get(r, "/who", "")
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestRequestLoggerUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(RequestID(), RequestLogger(zap.New(core)))
	r.GET("/api/track/:token", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	get(r, "/api/track/secret-token", "")
	get(r, "/boom", "")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "/api/track/:token", entries[0].ContextMap()["route"])
	for _, v := range entries[0].ContextMap() {
		assert.NotEqual(t, "/api/track/secret-token", v)
	}
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}
