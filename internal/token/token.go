package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/authgrid/backend/internal/model"
)

var (
	ErrExpired       = errors.New("token expired")
	ErrInvalid       = errors.New("token invalid")
	ErrMisconfigured = errors.New("token issuer config invalid")
)

// serviceTokenType tags machine tokens so a user access token can never be
// accepted where a service token is required.
const serviceTokenType = "service"

// Issuer signs and verifies the three JWT kinds (access, service, device),
// each with its own secret and TTL, and generates opaque refresh tokens.
// Refresh tokens are deliberately not JWTs: they are validated only by store
// lookup so revocation and rotation stay authoritative server-side.
type Issuer struct {
	accessSecret  []byte
	serviceSecret []byte
	deviceSecret  []byte
	accessTTL     time.Duration
	serviceTTL    time.Duration
	deviceTTL     time.Duration
}

type Options struct {
	AccessSecret  string
	ServiceSecret string
	DeviceSecret  string
	AccessTTL     time.Duration
	ServiceTTL    time.Duration
	DeviceTTL     time.Duration
}

func NewIssuer(opts Options) (*Issuer, error) {
	if opts.AccessSecret == "" || opts.ServiceSecret == "" || opts.DeviceSecret == "" {
		return nil, fmt.Errorf("%w: all signing secrets are required", ErrMisconfigured)
	}
	if opts.AccessTTL <= 0 || opts.ServiceTTL <= 0 || opts.DeviceTTL <= 0 {
		return nil, fmt.Errorf("%w: TTLs must be positive", ErrMisconfigured)
	}
	return &Issuer{
		accessSecret:  []byte(opts.AccessSecret),
		serviceSecret: []byte(opts.ServiceSecret),
		deviceSecret:  []byte(opts.DeviceSecret),
		accessTTL:     opts.AccessTTL,
		serviceTTL:    opts.ServiceTTL,
		deviceTTL:     opts.DeviceTTL,
	}, nil
}

type accessClaims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type serviceClaims struct {
	TokenType string `json:"type"`
	ClientID  string `json:"clientId"`
	Name      string `json:"name"`
	jwt.RegisteredClaims
}

type deviceClaims struct {
	DeviceID string `json:"deviceId"`
	jwt.RegisteredClaims
}

// ServiceIdentity is the verified payload of a service token.
type ServiceIdentity struct {
	ServiceID uuid.UUID
	ClientID  string
	Name      string
}

func (i *Issuer) AccessToken(user *model.User) (string, int64, error) {
	now := time.Now()
	claims := accessClaims{
		Email:    user.Email,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(i.accessTTL.Seconds()), nil
}

func (i *Issuer) ParseAccessToken(tokenStr string) (*model.AuthUser, error) {
	claims := &accessClaims{}
	if err := i.parse(tokenStr, claims, i.accessSecret); err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalid
	}
	return &model.AuthUser{
		ID:       userID,
		Email:    claims.Email,
		Username: claims.Username,
	}, nil
}

func (i *Issuer) ServiceToken(client *model.ServiceClient) (string, int64, error) {
	now := time.Now()
	claims := serviceClaims{
		TokenType: serviceTokenType,
		ClientID:  client.ClientID,
		Name:      client.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   client.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.serviceTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.serviceSecret)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(i.serviceTTL.Seconds()), nil
}

func (i *Issuer) ParseServiceToken(tokenStr string) (*ServiceIdentity, error) {
	claims := &serviceClaims{}
	if err := i.parse(tokenStr, claims, i.serviceSecret); err != nil {
		return nil, err
	}
	if claims.TokenType != serviceTokenType {
		return nil, ErrInvalid
	}
	serviceID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalid
	}
	return &ServiceIdentity{
		ServiceID: serviceID,
		ClientID:  claims.ClientID,
		Name:      claims.Name,
	}, nil
}

// DeviceToken mints a trusted-device token embedding the user id and a fresh
// random device id, signed with the long device TTL.
func (i *Issuer) DeviceToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := deviceClaims{
		DeviceID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.deviceTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.deviceSecret)
}

func (i *Issuer) ParseDeviceToken(tokenStr string) (uuid.UUID, error) {
	claims := &deviceClaims{}
	if err := i.parse(tokenStr, claims, i.deviceSecret); err != nil {
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalid
	}
	return userID, nil
}

func (i *Issuer) DeviceTTL() time.Duration { return i.deviceTTL }

// parse verifies signature and expiry, mapping jwt errors onto the package's
// two sentinel errors so callers can tell "retry with refresh" apart from
// "hard reject".
func (i *Issuer) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return ErrInvalid
	}
	if !parsed.Valid {
		return ErrInvalid
	}
	return nil
}

// NewRefreshToken returns a high-entropy opaque token and its sha256 hash.
// Only the hash is ever persisted.
func NewRefreshToken() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	tok := base64.RawURLEncoding.EncodeToString(raw)
	return tok, HashRefreshToken(tok), nil
}

func HashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewVerificationToken returns 32 random bytes hex-encoded (64 characters),
// used for email verification links.
func NewVerificationToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
