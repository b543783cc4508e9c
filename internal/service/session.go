package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/authgrid/backend/internal/db"
	"github.com/authgrid/backend/internal/events"
	"github.com/authgrid/backend/internal/model"
	"github.com/authgrid/backend/internal/token"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
	minNameLength     = 2

	// deviceCap bounds concurrent live refresh tokens per user. Enforcement
	// is best-effort: a small overshoot under concurrent signins is
	// acceptable, this is a UX limit rather than a security boundary.
	deviceCap = 3
)

// SessionStore is the transactional record store the session manager needs.
// *db.Postgres satisfies it; tests use in-memory fakes.
type SessionStore interface {
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
	GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*model.User, error)
	GetUserByVerificationToken(ctx context.Context, tokenValue string) (*model.User, error)
	SetVerificationToken(ctx context.Context, userID uuid.UUID, tokenValue string, expiresAt time.Time) error
	ActivateUser(ctx context.Context, userID uuid.UUID) error

	InsertRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	ListLiveRefreshTokens(ctx context.Context, userID uuid.UUID) ([]*model.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenID int64) (bool, error)
	RotateRefreshToken(ctx context.Context, oldTokenID int64, userID uuid.UUID, newTokenHash string, newExpiresAt time.Time) error
	RevokeAllRefreshTokens(ctx context.Context, userID uuid.UUID) error
}

// EventPublisher decouples side effects from the request path.
type EventPublisher interface {
	Publish(topic string, payload any)
}

// SessionService orchestrates the credential lifecycle: signup and email
// verification, password signin, refresh rotation and signout. It owns every
// refresh-token state transition.
type SessionService struct {
	store      SessionStore
	issuer     *token.Issuer
	trust      *TrustStore
	bus        EventPublisher
	logger     *slog.Logger
	refreshTTL time.Duration
	verifyTTL  time.Duration
	clientURL  string
}

type SessionOptions struct {
	RefreshTTL time.Duration
	VerifyTTL  time.Duration
	ClientURL  string
}

func NewSessionService(store SessionStore, issuer *token.Issuer, trust *TrustStore, bus EventPublisher, logger *slog.Logger, opts SessionOptions) (*SessionService, error) {
	if opts.RefreshTTL <= 0 {
		return nil, fmt.Errorf("%w: refresh TTL must be positive", ErrMisconfigured)
	}
	if opts.VerifyTTL <= 0 {
		return nil, fmt.Errorf("%w: verification TTL must be positive", ErrMisconfigured)
	}
	return &SessionService{
		store:      store,
		issuer:     issuer,
		trust:      trust,
		bus:        bus,
		logger:     logger,
		refreshTTL: opts.RefreshTTL,
		verifyTTL:  opts.VerifyTTL,
		clientURL:  strings.TrimRight(opts.ClientURL, "/"),
	}, nil
}

// Signup creates the user in PENDING_VERIFICATION and publishes the
// verification event. Delivery happens off the request path.
func (s *SessionService) Signup(ctx context.Context, req model.SignupRequest) error {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)

	if len(name) < minNameLength || !looksLikeEmail(email) {
		return ErrInvalidInput
	}
	if len(req.Password) < minPasswordLength || len(req.Password) > maxPasswordLength {
		return ErrInvalidInput
	}
	if username == "" {
		generated, err := generateUsername(name)
		if err != nil {
			return err
		}
		username = generated
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	verifyToken, err := token.NewVerificationToken()
	if err != nil {
		return err
	}
	verifyExpires := time.Now().Add(s.verifyTTL)

	user, err := s.store.CreateUser(ctx, &model.User{
		ID:                  uuid.New(),
		Name:                name,
		Email:               email,
		Username:            username,
		PasswordHash:        string(hash),
		Status:              model.UserStatusPendingVerification,
		VerificationToken:   &verifyToken,
		VerificationExpires: &verifyExpires,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}

	s.publishVerification(user, verifyToken)
	return nil
}

// ResendVerification regenerates the verification token and republishes the
// event. It succeeds silently for unknown emails and already-active users so
// it cannot be used to probe which addresses exist.
func (s *SessionService) ResendVerification(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !looksLikeEmail(email) {
		return ErrInvalidInput
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if db.IsNoRows(err) {
			return nil
		}
		return err
	}
	if user.Status == model.UserStatusActive {
		return nil
	}

	verifyToken, err := token.NewVerificationToken()
	if err != nil {
		return err
	}
	if err := s.store.SetVerificationToken(ctx, user.ID, verifyToken, time.Now().Add(s.verifyTTL)); err != nil {
		return err
	}

	s.publishVerification(user, verifyToken)
	return nil
}

// VerifyEmail flips the user to ACTIVE. An expired token is reported
// distinctly because its remediation is a resend, not a hard reject.
func (s *SessionService) VerifyEmail(ctx context.Context, tokenValue string) error {
	if strings.TrimSpace(tokenValue) == "" {
		return ErrInvalidToken
	}

	user, err := s.store.GetUserByVerificationToken(ctx, tokenValue)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrInvalidToken
		}
		return err
	}

	if user.VerificationExpires != nil && time.Now().After(*user.VerificationExpires) {
		return ErrTokenExpired
	}

	return s.store.ActivateUser(ctx, user.ID)
}

// Signin authenticates by email or username. Unknown user and wrong password
// are indistinguishable at the boundary.
func (s *SessionService) Signin(ctx context.Context, req model.SigninRequest) (*model.SessionResponse, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" || req.Password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.store.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrUnauthorized
	}

	if user.Status != model.UserStatusActive {
		return nil, ErrNotVerified
	}

	if err := s.enforceDeviceCap(ctx, user.ID); err != nil {
		return nil, err
	}

	accessToken, expiresIn, refreshToken, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	resp := &model.SessionResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	}

	if req.TrustDevice {
		deviceToken, err := s.trust.MarkTrusted(ctx, user.ID)
		if err != nil {
			// Trust is advisory; a failed device token must not fail signin.
			s.logger.Warn("trusted device token issue failed", "user_id", user.ID, "error", err)
		} else {
			resp.TrustedDeviceToken = deviceToken
		}
	}

	return resp, nil
}

// Refresh exchanges a live refresh token for a new access/refresh pair.
// A token that is unknown, revoked, expired or concurrently rotated fails
// with the same ErrUnauthorized: replay detection must not leak whether the
// presented token was ever valid.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*model.SessionResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrUnauthorized
	}

	record, err := s.store.GetRefreshTokenByHash(ctx, token.HashRefreshToken(refreshToken))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !record.Live(time.Now()) {
		return nil, ErrUnauthorized
	}

	user, err := s.store.GetUserByID(ctx, record.UserID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	newToken, newHash, err := token.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	if err := s.store.RotateRefreshToken(ctx, record.ID, record.UserID, newHash, time.Now().Add(s.refreshTTL)); err != nil {
		if db.IsNoRows(err) {
			// Lost the race against a concurrent rotation of the same token.
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	accessToken, expiresIn, err := s.issuer.AccessToken(user)
	if err != nil {
		return nil, err
	}

	return &model.SessionResponse{
		AccessToken:  accessToken,
		RefreshToken: newToken,
		ExpiresIn:    expiresIn,
	}, nil
}

// Signout revokes the refresh token and, when present, the trusted-device
// token. The two revocations are independent: a failure in one never blocks
// the other.
func (s *SessionService) Signout(ctx context.Context, refreshToken, trustedDeviceToken string) error {
	if trustedDeviceToken != "" {
		if err := s.trust.Revoke(ctx, trustedDeviceToken); err != nil {
			s.logger.Warn("trusted device revoke failed", "error", err)
		}
	}

	if strings.TrimSpace(refreshToken) == "" {
		return ErrUnauthorized
	}

	record, err := s.store.GetRefreshTokenByHash(ctx, token.HashRefreshToken(refreshToken))
	if err != nil {
		if db.IsNoRows(err) {
			return ErrUnauthorized
		}
		return err
	}

	revoked, err := s.store.RevokeRefreshToken(ctx, record.ID)
	if err != nil {
		return err
	}
	if !revoked {
		return ErrUnauthorized
	}
	return nil
}

// SignoutAllDevices revokes every live refresh token for the user and purges
// all of their trusted-device entries.
func (s *SessionService) SignoutAllDevices(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.RevokeAllRefreshTokens(ctx, userID); err != nil {
		return err
	}
	s.trust.RevokeAll(ctx, userID)
	return nil
}

func (s *SessionService) Me(ctx context.Context, userID uuid.UUID) (*model.MeResponse, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &model.MeResponse{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Username:     user.Username,
		Status:       user.Status,
		TwoFAEnabled: user.TwoFAEnabled,
		CreatedAt:    user.CreatedAt,
	}, nil
}

func (s *SessionService) issueSession(ctx context.Context, user *model.User) (string, int64, string, error) {
	accessToken, expiresIn, err := s.issuer.AccessToken(user)
	if err != nil {
		return "", 0, "", err
	}

	refreshToken, refreshHash, err := token.NewRefreshToken()
	if err != nil {
		return "", 0, "", err
	}

	if err := s.store.InsertRefreshToken(ctx, user.ID, refreshHash, time.Now().Add(s.refreshTTL)); err != nil {
		return "", 0, "", err
	}

	return accessToken, expiresIn, refreshToken, nil
}

// enforceDeviceCap revokes the oldest live refresh tokens so the new signin
// stays within the cap. Ties break on insertion order.
func (s *SessionService) enforceDeviceCap(ctx context.Context, userID uuid.UUID) error {
	live, err := s.store.ListLiveRefreshTokens(ctx, userID)
	if err != nil {
		return err
	}
	excess := len(live) - deviceCap + 1
	for i := 0; i < excess && i < len(live); i++ {
		if _, err := s.store.RevokeRefreshToken(ctx, live[i].ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SessionService) publishVerification(user *model.User, verifyToken string) {
	s.bus.Publish(events.TopicVerificationRequested, events.VerificationRequested{
		UserID:           user.ID.String(),
		Email:            user.Email,
		Name:             user.Name,
		VerificationLink: fmt.Sprintf("%s/verify-email?token=%s", s.clientURL, verifyToken),
	})
}

func looksLikeEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return strings.Contains(email[at+1:], ".")
}

func generateUsername(name string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	return b.String() + hex.EncodeToString(suffix), nil
}
