package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captionloom/caption-server/internal/auth"
	"github.com/captionloom/caption-server/internal/maintenance"
	"github.com/captionloom/caption-server/internal/ratelimit"
	"github.com/captionloom/caption-server/internal/secrets"
)

const testSecret = "test-secret"

type memDocStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func newMemDocStore() *memDocStore {
	return &memDocStore{docs: make(map[string][]byte)}
}

func (m *memDocStore) GetDocument(_ context.Context, name string, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.docs[name]
	if !ok {
		return secrets.ErrDocumentNotFound
	}
	return json.Unmarshal(raw, out)
}

func (m *memDocStore) UpsertDocument(_ context.Context, name string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = raw
	return nil
}

func (m *memDocStore) DeleteDocument(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, name)
	return nil
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func sessionToken(t *testing.T, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(auth.JWTConfig{Secret: testSecret, ExpiryHours: 1},
		"user-1", "user@example.com", role)
	require.NoError(t, err)
	return token
}

func TestJWTAuthRejectsMissingAndBadTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/protected", JWTAuth(testSecret), okHandler)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthRejectsBypassTokenAsSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/protected", JWTAuth(testSecret), okHandler)

	bypass, err := auth.GenerateBypassToken(testSecret, "oncall@example.com", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+bypass)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/admin", JWTAuth(testSecret), RequireRole("admin"), okHandler)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken(t, "admin"))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken(t, "user"))
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimitBlocksAfterCapacity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := ratelimit.NewLimiter(2, time.Minute)

	engine := gin.New()
	engine.GET("/", RateLimit(limiter, func(context.Context, string) bool { return false }), okHandler)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimitExemptsAdmins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := ratelimit.NewLimiter(1, time.Minute)

	engine := gin.New()
	engine.GET("/", OptionalJWTAuth(testSecret),
		RateLimit(limiter, func(context.Context, string) bool { return true }), okHandler)

	token := sessionToken(t, "admin")
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func newGateEngine(t *testing.T, store *memDocStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gate := maintenance.NewGate(store, maintenance.Options{CacheTTL: time.Nanosecond})

	engine := gin.New()
	engine.Use(OptionalJWTAuth(testSecret), MaintenanceGate(gate, testSecret))
	engine.GET("/api/v1/captions", okHandler)
	engine.GET("/health", okHandler)
	engine.GET("/api/v1/bootstrap/status", okHandler)
	return engine
}

func enableMaintenance(t *testing.T, store *memDocStore, allowedEmails []string) {
	t.Helper()
	require.NoError(t, store.UpsertDocument(context.Background(), maintenance.DocumentName, maintenance.Config{
		Enabled:       true,
		Message:       "down for upkeep",
		AllowedEmails: allowedEmails,
	}))
}

func TestMaintenanceGateBlocksWhenEnabled(t *testing.T) {
	store := newMemDocStore()
	engine := newGateEngine(t, store)
	enableMaintenance(t, store, nil)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/captions", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "down for upkeep")
}

func TestMaintenanceGateExemptPaths(t *testing.T) {
	store := newMemDocStore()
	engine := newGateEngine(t, store)
	enableMaintenance(t, store, nil)

	for _, path := range []string{"/health", "/api/v1/bootstrap/status"} {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestMaintenanceGatePassesAllowlistedSession(t *testing.T) {
	store := newMemDocStore()
	engine := newGateEngine(t, store)
	enableMaintenance(t, store, []string{"user@example.com"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/captions", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken(t, "user"))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMaintenanceGateHonorsBypassCookie(t *testing.T) {
	store := newMemDocStore()
	engine := newGateEngine(t, store)
	enableMaintenance(t, store, []string{"oncall@example.com"})

	bypass, err := auth.GenerateBypassToken(testSecret, "oncall@example.com", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/captions", nil)
	req.AddCookie(&http.Cookie{Name: BypassCookie, Value: bypass})
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMaintenanceGateIgnoresForgedCookie(t *testing.T) {
	store := newMemDocStore()
	engine := newGateEngine(t, store)
	enableMaintenance(t, store, []string{"oncall@example.com"})

	forged, err := auth.GenerateBypassToken("other-secret", "oncall@example.com", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/captions", nil)
	req.AddCookie(&http.Cookie{Name: BypassCookie, Value: forged})
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMaintenanceGateDisabledPassesAll(t *testing.T) {
	store := newMemDocStore()
	engine := newGateEngine(t, store)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/captions", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
