package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotogether/internal/domain"
	"gotogether/internal/middleware"
)

// stubVerifier is a test double for auth.Verifier.
type stubVerifier struct {
	principal domain.Principal
	err       error
	seen      string
}

func (s *stubVerifier) Verify(_ context.Context, token string) (domain.Principal, error) {
	s.seen = token
	return s.principal, s.err
}

func newTestRouter(v *stubVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestIDMiddleware(), middleware.Auth(v))
	r.GET("/test", func(c *gin.Context) {
		p := middleware.Principal(c)
		c.JSON(http.StatusOK, gin.H{"sub": p.Subject, "role": p.Role, "request_id": middleware.RequestID(c)})
	})
	return r
}

func TestAuth_MissingHeader(t *testing.T) {
	r := newTestRouter(&stubVerifier{principal: domain.Principal{Subject: "user1"}})
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"missing credential","kind":"unauthorized"}`, w.Body.String())
}

func TestAuth_InvalidBearerPrefix(t *testing.T) {
	r := newTestRouter(&stubVerifier{principal: domain.Principal{Subject: "user1"}})
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Token sometoken")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_VerifierError(t *testing.T) {
	r := newTestRouter(&stubVerifier{err: errors.New("bad token")})
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer invalidtoken")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid credential")
}

func TestAuth_ValidToken(t *testing.T) {
	v := &stubVerifier{principal: domain.Principal{Subject: "driver123", Role: domain.RoleDriver}}
	r := newTestRouter(v)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer validtoken")
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "validtoken", v.seen)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "driver123", body["sub"])
	assert.Equal(t, "driver", body["role"])
	assert.Equal(t, "req-42", body["request_id"])
}

func TestAuth_QueryTokenOnlyForUpgrade(t *testing.T) {
	v := &stubVerifier{principal: domain.Principal{Subject: "rider1", Role: domain.RoleRider}}
	r := newTestRouter(v)

	plain := httptest.NewRequest(http.MethodGet, "/test?token=abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, plain)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	upgrade := httptest.NewRequest(http.MethodGet, "/test?token=abc", nil)
	upgrade.Header.Set("Connection", "Upgrade")
	upgrade.Header.Set("Upgrade", "websocket")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, upgrade)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", v.seen)
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CORSMiddleware([]string{"https://app.example.com"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	preflight := httptest.NewRequest(http.MethodOptions, "/x", nil)
	preflight.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, preflight)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	other := httptest.NewRequest(http.MethodGet, "/x", nil)
	other.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, other)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
