package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func newRBACFixture() (*RBACService, *memStore, *fakeCache) {
	store := newMemStore()
	store.rolePerms["moderator"] = []string{"user.read", "content.update"}
	store.rolePerms["user"] = []string{"content.read"}
	cache := newFakeCache()
	return NewRBACService(store, cache, testLogger()), store, cache
}

func TestHasPermission_ThroughAssignedRole(t *testing.T) {
	svc, _, _ := newRBACFixture()
	ctx := context.Background()
	userID := uuid.New()

	if err := svc.AssignRole(ctx, userID, "moderator"); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	ok, err := svc.HasPermission(ctx, userID, "content.update")
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if !ok {
		t.Fatal("moderator should hold content.update")
	}

	ok, err = svc.HasPermission(ctx, userID, "system.settings")
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if ok {
		t.Fatal("moderator must not hold system.settings")
	}
}

func TestHasPermission_UserWithoutRolesHasNone(t *testing.T) {
	svc, _, _ := newRBACFixture()

	ok, err := svc.HasPermission(context.Background(), uuid.New(), "content.read")
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if ok {
		t.Fatal("user with no roles must hold no permissions")
	}
}

func TestHasPermission_SecondCheckServedFromCache(t *testing.T) {
	svc, store, _ := newRBACFixture()
	ctx := context.Background()
	userID := uuid.New()

	if err := svc.AssignRole(ctx, userID, "user"); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	if _, err := svc.HasPermission(ctx, userID, "content.read"); err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	calls := store.listPermissionCalls()

	if _, err := svc.HasPermission(ctx, userID, "content.read"); err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if store.listPermissionCalls() != calls {
		t.Fatal("second check must be served from the cache, not the store")
	}
}

func TestHasPermission_CacheOutageFallsThroughToStore(t *testing.T) {
	svc, _, cache := newRBACFixture()
	ctx := context.Background()
	userID := uuid.New()

	if err := svc.AssignRole(ctx, userID, "user"); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	cache.unavailable = true

	ok, err := svc.HasPermission(ctx, userID, "content.read")
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if !ok {
		t.Fatal("the store stays authoritative when the cache is down")
	}
}

func TestAssignRole_UnknownRole(t *testing.T) {
	svc, _, _ := newRBACFixture()

	if err := svc.AssignRole(context.Background(), uuid.New(), "warlord"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAssignRole_InvalidatesCachedPermissions(t *testing.T) {
	svc, _, _ := newRBACFixture()
	ctx := context.Background()
	userID := uuid.New()

	// Prime the cache with the empty permission set.
	ok, err := svc.HasPermission(ctx, userID, "content.update")
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if ok {
		t.Fatal("permission held before any role was assigned")
	}

	if err := svc.AssignRole(ctx, userID, "moderator"); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	ok, err = svc.HasPermission(ctx, userID, "content.update")
	if err != nil {
		t.Fatalf("HasPermission: %v", err)
	}
	if !ok {
		t.Fatal("grant must take effect on the next check after assignment")
	}
}
