package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/authgrid/backend/internal/token"
)

// Cache is the best-effort tiered cache contract the trust store depends on.
// None of the methods report errors: a failed cache is treated as empty.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context, prefix string)
}

const trustedDeviceMarker = "1"

// TrustStore owns the trusted-device entry lifecycle. Trust is advisory:
// it loosens secondary checks on a remembered device but never replaces
// password or refresh-token verification.
type TrustStore struct {
	issuer *token.Issuer
	cache  Cache
}

func NewTrustStore(issuer *token.Issuer, cache Cache) *TrustStore {
	return &TrustStore{issuer: issuer, cache: cache}
}

func trustedDeviceKey(userID uuid.UUID, deviceToken string) string {
	return fmt.Sprintf("trusted_device:%s:%s", userID, deviceToken)
}

func trustedDevicePrefix(userID uuid.UUID) string {
	return fmt.Sprintf("trusted_device:%s:", userID)
}

// MarkTrusted mints a device token for the user and records it in the cache
// for the device TTL.
func (s *TrustStore) MarkTrusted(ctx context.Context, userID uuid.UUID) (string, error) {
	deviceToken, err := s.issuer.DeviceToken(userID)
	if err != nil {
		return "", err
	}
	s.cache.Set(ctx, trustedDeviceKey(userID, deviceToken), trustedDeviceMarker, s.issuer.DeviceTTL())
	return deviceToken, nil
}

// IsTrusted never raises: a bad signature, an expired token or a missing
// cache entry all mean "not trusted".
func (s *TrustStore) IsTrusted(ctx context.Context, deviceToken string) bool {
	userID, err := s.issuer.ParseDeviceToken(deviceToken)
	if err != nil {
		return false
	}
	_, ok := s.cache.Get(ctx, trustedDeviceKey(userID, deviceToken))
	return ok
}

func (s *TrustStore) Revoke(ctx context.Context, deviceToken string) error {
	userID, err := s.issuer.ParseDeviceToken(deviceToken)
	if err != nil {
		return ErrInvalidToken
	}
	s.cache.Delete(ctx, trustedDeviceKey(userID, deviceToken))
	return nil
}

// RevokeAll purges every trusted-device entry for the user.
func (s *TrustStore) RevokeAll(ctx context.Context, userID uuid.UUID) {
	s.cache.Clear(ctx, trustedDevicePrefix(userID))
}
