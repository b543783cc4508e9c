package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/authgrid/backend/internal/model"
	"github.com/authgrid/backend/internal/service"
)

type AuthHandler struct {
	svc       *service.SessionService
	cookieCfg CookieConfig
}

func NewAuthHandler(svc *service.SessionService, cookieCfg CookieConfig) *AuthHandler {
	return &AuthHandler{svc: svc, cookieCfg: cookieCfg}
}

// Signup godoc
// @Summary Register a new account
// @Description Creates a pending account and emails a verification link.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.SignupRequest true "Name, email and password; username optional"
// @Success 201 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/v1/auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req model.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.svc.Signup(c.Request.Context(), req); err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model.MessageResponse{
		Message: "account created, check your email to verify it",
	})
}

// VerifyEmail godoc
// @Summary Verify an email address
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.VerifyEmailRequest true "Verification token from the email link"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 410 {object} model.ErrorResponse
// @Router /api/v1/auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req model.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.svc.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.MessageResponse{Message: "email verified"})
}

// ResendVerification godoc
// @Summary Resend the verification email
// @Description Always responds 200 so callers cannot probe for accounts.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.ResendVerificationRequest true "Account email"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /api/v1/auth/resend-verification [post]
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req model.ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.svc.ResendVerification(c.Request.Context(), req.Email); err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.MessageResponse{
		Message: "if the account exists, a verification email was sent",
	})
}

// Signin godoc
// @Summary Sign in
// @Description Identifier may be an email or a username.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.SigninRequest true "Identifier and password; set trustDevice to mint a device token"
// @Success 200 {object} model.SessionResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/v1/auth/signin [post]
func (h *AuthHandler) Signin(c *gin.Context) {
	var req model.SigninRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.svc.Signin(c.Request.Context(), req)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, session.RefreshToken)
	c.JSON(http.StatusOK, session)
}

// Refresh godoc
// @Summary Rotate the refresh token
// @Description Reads the refresh token from the cookie, falling back to the body.
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} model.SessionResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken := h.refreshTokenFrom(c)

	session, err := h.svc.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, session.RefreshToken)
	c.JSON(http.StatusOK, session)
}

// Signout godoc
// @Summary Sign out
// @Description Revokes the refresh token and, if sent, the trusted-device token.
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} model.StatusResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/auth/signout [post]
func (h *AuthHandler) Signout(c *gin.Context) {
	var req model.SignoutRequest
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken == "" {
		req.RefreshToken, _ = c.Cookie(h.cookieCfg.Name)
	}

	err := h.svc.Signout(c.Request.Context(), req.RefreshToken, req.TrustedDeviceToken)
	h.clearRefreshCookie(c)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.StatusResponse{Status: "signed_out"})
}

// SignoutAll godoc
// @Summary Sign out everywhere
// @Description Revokes every live refresh token and all trusted devices.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.StatusResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/v1/auth/signout-all [post]
func (h *AuthHandler) SignoutAll(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.svc.SignoutAllDevices(c.Request.Context(), user.ID); err != nil {
		writeAuthError(c, err)
		return
	}

	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, model.StatusResponse{Status: "signed_out_all"})
}

// Me godoc
// @Summary Get the current user's profile
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.MeResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	profile, err := h.svc.Me(c.Request.Context(), user.ID)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *AuthHandler) refreshTokenFrom(c *gin.Context) string {
	if cookie, err := c.Cookie(h.cookieCfg.Name); err == nil && cookie != "" {
		return cookie
	}
	var req model.RefreshRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(h.cookieCfg.SameSite)
	c.SetCookie(h.cookieCfg.Name, token, h.cookieCfg.MaxAge, h.cookieCfg.Path, h.cookieCfg.Domain, h.cookieCfg.Secure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(h.cookieCfg.SameSite)
	c.SetCookie(h.cookieCfg.Name, "", -1, h.cookieCfg.Path, h.cookieCfg.Domain, h.cookieCfg.Secure, true)
}

func writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
	case errors.Is(err, service.ErrInvalidToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token"})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, service.ErrNotVerified):
		c.JSON(http.StatusForbidden, gin.H{"error": "email not verified"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	case errors.Is(err, service.ErrTokenExpired):
		c.JSON(http.StatusGone, gin.H{"error": "token expired"})
	case errors.Is(err, service.ErrUnsupportedGrant):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported grant type"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}
