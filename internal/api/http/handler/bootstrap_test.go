package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captionloom/caption-server/internal/auth"
	"github.com/captionloom/caption-server/internal/bootstrap"
	"github.com/captionloom/caption-server/internal/otp"
	"github.com/captionloom/caption-server/internal/systemlock"
)

type capturingIssuer struct {
	inner    *otp.Issuer
	lastCode string
}

func (c *capturingIssuer) Issue(ctx context.Context, identity string) (*otp.IssuedCode, error) {
	issued, err := c.inner.Issue(ctx, identity)
	if err == nil {
		c.lastCode = issued.Code
	}
	return issued, err
}

func (c *capturingIssuer) Verify(ctx context.Context, identity, code string) error {
	return c.inner.Verify(ctx, identity, code)
}

type bootstrapFixture struct {
	engine *gin.Engine
	issuer *capturingIssuer
	sender *recordingSender
	lock   *systemlock.Service
}

func newBootstrapFixture(t *testing.T) *bootstrapFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	lock := systemlock.NewService(newMemSecretStore())
	require.NoError(t, lock.SetPin(context.Background(), "4812", "test"))

	issuer := &capturingIssuer{
		inner: otp.NewIssuer(&memCodeStore{}, otp.Config{TTL: time.Minute}),
	}
	sender := &recordingSender{}
	flow := bootstrap.NewFlow(lock, issuer, newMemAccounts(), sender,
		auth.JWTConfig{Secret: "test-secret", ExpiryHours: 1})

	h := NewBootstrapHandler(flow)
	engine := gin.New()
	engine.POST("/api/v1/bootstrap/verify-pin", h.VerifyPin)
	engine.POST("/api/v1/bootstrap/request-code", h.RequestCode)
	engine.POST("/api/v1/bootstrap/create-admin", h.CreateAdmin)
	engine.GET("/api/v1/bootstrap/status", h.Status)

	return &bootstrapFixture{engine: engine, issuer: issuer, sender: sender, lock: lock}
}

func (f *bootstrapFixture) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func TestBootstrapVerifyPin(t *testing.T) {
	f := newBootstrapFixture(t)

	rec := f.post(t, "/api/v1/bootstrap/verify-pin", gin.H{"pin": "4812"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.post(t, "/api/v1/bootstrap/verify-pin", gin.H{"pin": "0000"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid pin")
}

func TestBootstrapVerifyPinNotConfigured(t *testing.T) {
	f := newBootstrapFixture(t)
	require.NoError(t, f.lock.Disable(context.Background(), "test"))

	rec := f.post(t, "/api/v1/bootstrap/verify-pin", gin.H{"pin": "4812"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBootstrapRequestCode(t *testing.T) {
	f := newBootstrapFixture(t)

	rec := f.post(t, "/api/v1/bootstrap/request-code", gin.H{
		"pin": "4812", "email": "owner@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Delivered bool   `json:"delivered"`
		ExpiresAt string `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Delivered)
	assert.NotEmpty(t, resp.ExpiresAt)
	assert.Equal(t, []string{"owner@example.com"}, f.sender.sent)
	assert.Len(t, f.issuer.lastCode, 6)
}

func TestBootstrapRequestCodeWrongPin(t *testing.T) {
	f := newBootstrapFixture(t)

	rec := f.post(t, "/api/v1/bootstrap/request-code", gin.H{
		"pin": "9999", "email": "owner@example.com",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.sender.sent)
}

func TestBootstrapCreateAdmin(t *testing.T) {
	f := newBootstrapFixture(t)

	rec := f.post(t, "/api/v1/bootstrap/request-code", gin.H{
		"pin": "4812", "email": "owner@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.post(t, "/api/v1/bootstrap/create-admin", gin.H{
		"pin":      "4812",
		"email":    "owner@example.com",
		"code":     f.issuer.lastCode,
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Email string `json:"email"`
		Role  string `json:"role"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "owner@example.com", resp.Email)
	assert.Equal(t, "admin", resp.Role)

	claims, err := auth.ValidateToken("test-secret", resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", claims.Email)
}

func TestBootstrapCreateAdminBadCode(t *testing.T) {
	f := newBootstrapFixture(t)

	rec := f.post(t, "/api/v1/bootstrap/request-code", gin.H{
		"pin": "4812", "email": "owner@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.post(t, "/api/v1/bootstrap/create-admin", gin.H{
		"pin":      "4812",
		"email":    "owner@example.com",
		"code":     "000000",
		"password": "correct horse battery",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired code")
}

func TestBootstrapCreateAdminCodeSingleUse(t *testing.T) {
	f := newBootstrapFixture(t)

	rec := f.post(t, "/api/v1/bootstrap/request-code", gin.H{
		"pin": "4812", "email": "owner@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	code := f.issuer.lastCode

	body := gin.H{
		"pin":      "4812",
		"email":    "owner@example.com",
		"code":     code,
		"password": "correct horse battery",
	}
	rec = f.post(t, "/api/v1/bootstrap/create-admin", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Replay of the same code must read like any other bad code.
	rec = f.post(t, "/api/v1/bootstrap/create-admin", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired code")
}

func TestBootstrapCreateAdminValidation(t *testing.T) {
	f := newBootstrapFixture(t)

	rec := f.post(t, "/api/v1/bootstrap/create-admin", gin.H{
		"pin":      "4812",
		"email":    "not-an-email",
		"code":     "123456",
		"password": "correct horse battery",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.post(t, "/api/v1/bootstrap/create-admin", gin.H{
		"pin":      "4812",
		"email":    "owner@example.com",
		"code":     "123456",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBootstrapStatus(t *testing.T) {
	f := newBootstrapFixture(t)

	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/bootstrap/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		PinConfigured bool `json:"pin_configured"`
		AdminExists   bool `json:"admin_exists"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.PinConfigured)
	assert.False(t, resp.AdminExists)

	recCode := f.post(t, "/api/v1/bootstrap/request-code", gin.H{
		"pin": "4812", "email": "owner@example.com",
	})
	require.Equal(t, http.StatusOK, recCode.Code)
	recAdmin := f.post(t, "/api/v1/bootstrap/create-admin", gin.H{
		"pin":      "4812",
		"email":    "owner@example.com",
		"code":     f.issuer.lastCode,
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, recAdmin.Code)

	rec = httptest.NewRecorder()
	f.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/bootstrap/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.AdminExists)
}
