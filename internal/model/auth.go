package model

import (
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserStatusPendingVerification UserStatus = "PENDING_VERIFICATION"
	UserStatusActive              UserStatus = "ACTIVE"
	UserStatusSuspended           UserStatus = "SUSPENDED"
)

type User struct {
	ID                  uuid.UUID
	Name                string
	Email               string
	Username            string
	PasswordHash        string
	Status              UserStatus
	VerificationToken   *string
	VerificationExpires *time.Time
	TwoFAEnabled        bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type RefreshToken struct {
	ID        int64
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Live reports whether the token can still be exchanged.
func (t *RefreshToken) Live(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

type ServiceClient struct {
	ID               uuid.UUID
	ClientID         string
	ClientSecretHash string
	Name             string
	Description      *string
	IsActive         bool
	CreatedAt        time.Time
}

// AuthUser is the identity attached to a request after access-token
// verification.
type AuthUser struct {
	ID       uuid.UUID
	Email    string
	Username string
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
}

type SigninRequest struct {
	Identifier  string `json:"identifier"`
	Password    string `json:"password"`
	TrustDevice bool   `json:"trustDevice,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type SignoutRequest struct {
	RefreshToken       string `json:"refreshToken"`
	TrustedDeviceToken string `json:"trustedDeviceToken,omitempty"`
}

type ResendVerificationRequest struct {
	Email string `json:"email"`
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

type SessionResponse struct {
	AccessToken        string `json:"accessToken"`
	RefreshToken       string `json:"refreshToken,omitempty"`
	TrustedDeviceToken string `json:"trustedDeviceToken,omitempty"`
	ExpiresIn          int64  `json:"expiresIn"`
}

type RegisterServiceRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type RegisterServiceResponse struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	Name         string `json:"name"`
}

type ServiceTokenRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	GrantType    string `json:"grantType"`
}

type ServiceTokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type MeResponse struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	Status       UserStatus `json:"status"`
	TwoFAEnabled bool       `json:"twoFaEnabled"`
	CreatedAt    time.Time  `json:"createdAt"`
}
