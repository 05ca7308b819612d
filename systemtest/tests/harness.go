package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"

	"github.com/captionloom/caption-server/internal/api/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`\b(\d{6})\b`)

// CaptureSender stands in for the outbound mailer and keeps the last body
// so scenarios can read the delivered verification code.
type CaptureSender struct {
	mu       sync.Mutex
	lastBody string
}

func (s *CaptureSender) Send(_ context.Context, _, _, body string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastBody = body
	return true
}

// LastCode extracts the six digit code from the most recent mail body.
func (s *CaptureSender) LastCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	match := codePattern.FindStringSubmatch(s.lastBody)
	if match == nil {
		return ""
	}
	return match[1]
}

// Login authenticates and returns the session token.
func Login(t *testing.T, router *gin.Engine, email, password string) string {
	t.Helper()
	rr := doJSON(router, "POST", "/api/v1/auth/login", dto.LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp dto.LoginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Token
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func doJSONWithAuth(router *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
