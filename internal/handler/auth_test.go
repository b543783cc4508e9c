package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/authgrid/backend/internal/service"
)

func testCookieConfig() CookieConfig {
	return CookieConfig{
		Name:     refreshCookieName,
		Path:     "/",
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((168 * time.Hour).Seconds()),
	}
}

func TestSignupHandlerRejectsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var svc *service.SessionService
	r.POST("/api/v1/auth/signup", NewAuthHandler(svc, testCookieConfig()).Signup)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", bytes.NewBufferString(`{"email":`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSigninHandlerRejectsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var svc *service.SessionService
	r.POST("/api/v1/auth/signin", NewAuthHandler(svc, testCookieConfig()).Signin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin", bytes.NewBufferString(`not json`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestServiceTokenHandlerRejectsMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var svc *service.ServiceAuthService
	r.POST("/api/v1/service/token", NewServiceAuthHandler(svc).Token)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/service/token", bytes.NewBufferString(`{`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestWriteAuthErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err  error
		code int
	}{
		{service.ErrInvalidInput, http.StatusBadRequest},
		{service.ErrInvalidToken, http.StatusBadRequest},
		{service.ErrUnsupportedGrant, http.StatusBadRequest},
		{service.ErrUnauthorized, http.StatusUnauthorized},
		{service.ErrNotVerified, http.StatusForbidden},
		{service.ErrNotFound, http.StatusNotFound},
		{service.ErrConflict, http.StatusConflict},
		{service.ErrTokenExpired, http.StatusGone},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		writeAuthError(c, tc.err)
		if w.Code != tc.code {
			t.Errorf("writeAuthError(%v) = %d, want %d", tc.err, w.Code, tc.code)
		}
	}
}

func TestCookieConfigParsing(t *testing.T) {
	cfg := baseAuthConfig()
	cookieCfg, err := NewCookieConfig(cfg, 168*time.Hour)
	if err != nil {
		t.Fatalf("NewCookieConfig: %v", err)
	}
	if cookieCfg.Name != refreshCookieName {
		t.Fatalf("name = %q", cookieCfg.Name)
	}
	if cookieCfg.SameSite != http.SameSiteLaxMode {
		t.Fatalf("sameSite = %v, want lax", cookieCfg.SameSite)
	}
	if !cookieCfg.Secure {
		t.Fatal("secure should default to true")
	}
	if cookieCfg.MaxAge != int((168 * time.Hour).Seconds()) {
		t.Fatalf("maxAge = %d", cookieCfg.MaxAge)
	}
}

func TestCookieConfigRejectsInsecureSameSiteNone(t *testing.T) {
	cfg := baseAuthConfig()
	cfg.CookieSameSite = "none"
	cfg.CookieSecure = "false"

	if _, err := NewCookieConfig(cfg, time.Hour); err == nil {
		t.Fatal("expected error for SameSite=None without Secure")
	}
}

func TestCookieConfigRejectsUnknownSameSite(t *testing.T) {
	cfg := baseAuthConfig()
	cfg.CookieSameSite = "sideways"

	if _, err := NewCookieConfig(cfg, time.Hour); err == nil {
		t.Fatal("expected error for unknown SameSite value")
	}
}
