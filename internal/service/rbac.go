package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/authgrid/backend/internal/db"
)

// permissionsCacheTTL bounds how long a revoked grant can keep working.
const permissionsCacheTTL = 5 * time.Minute

// RBACStore is the role/permission slice of the record store.
type RBACStore interface {
	ListUserPermissions(ctx context.Context, userID uuid.UUID) ([]string, error)
	AssignRole(ctx context.Context, userID uuid.UUID, roleName string) error
}

// RBACService answers permission checks for users, caching each user's
// permission set in the tiered cache to keep the check off the hot path's
// database. The durable store stays authoritative: a cache miss or outage
// falls through to it.
type RBACService struct {
	store  RBACStore
	cache  Cache
	logger *slog.Logger
}

func NewRBACService(store RBACStore, cache Cache, logger *slog.Logger) *RBACService {
	return &RBACService{store: store, cache: cache, logger: logger}
}

func permissionsCacheKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_permissions:%s", userID)
}

// HasPermission reports whether the user holds the named permission through
// any of their roles.
func (s *RBACService) HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	perms, err := s.permissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

// AssignRole grants the role and drops the user's cached permission set so
// the grant takes effect on the next check.
func (s *RBACService) AssignRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	if err := s.store.AssignRole(ctx, userID, roleName); err != nil {
		// Unknown role or unknown user.
		if db.IsNoRows(err) || db.IsForeignKeyViolation(err) {
			return ErrNotFound
		}
		return err
	}
	s.cache.Delete(ctx, permissionsCacheKey(userID))
	return nil
}

func (s *RBACService) permissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	key := permissionsCacheKey(userID)

	if cached, ok := s.cache.Get(ctx, key); ok {
		var perms []string
		if err := json.Unmarshal([]byte(cached), &perms); err == nil {
			return perms, nil
		}
		// Unreadable entry: fall through to the store and overwrite it.
		s.logger.Warn("dropping malformed cached permission set", "user_id", userID)
	}

	perms, err := s.store.ListUserPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(perms); err == nil {
		s.cache.Set(ctx, key, string(encoded), permissionsCacheTTL)
	}
	return perms, nil
}
