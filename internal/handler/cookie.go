package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/authgrid/backend/internal/config"
	"github.com/authgrid/backend/internal/service"
)

const refreshCookieName = "authgrid_refresh"

// CookieConfig controls how the refresh token cookie is written.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   int
}

func NewCookieConfig(cfg config.AuthConfig, refreshTTL time.Duration) (CookieConfig, error) {
	secure, err := parseBool(cfg.CookieSecure, true)
	if err != nil {
		return CookieConfig{}, fmt.Errorf("%w: invalid AUTH_COOKIE_SECURE", service.ErrMisconfigured)
	}

	sameSite, err := parseSameSite(cfg.CookieSameSite)
	if err != nil {
		return CookieConfig{}, fmt.Errorf("%w: invalid AUTH_COOKIE_SAMESITE", service.ErrMisconfigured)
	}

	if sameSite == http.SameSiteNoneMode && !secure {
		return CookieConfig{}, fmt.Errorf("%w: SameSite=None requires Secure cookie", service.ErrMisconfigured)
	}

	path := cfg.CookiePath
	if strings.TrimSpace(path) == "" {
		path = "/"
	}

	return CookieConfig{
		Name:     refreshCookieName,
		Path:     path,
		Domain:   cfg.CookieDomain,
		Secure:   secure,
		SameSite: sameSite,
		MaxAge:   int(refreshTTL.Seconds()),
	}, nil
}

func parseBool(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, err
	}
	return parsed, nil
}

func parseSameSite(value string) (http.SameSite, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return http.SameSiteLaxMode, nil
	}
	switch value {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, service.ErrInvalidInput
	}
}
