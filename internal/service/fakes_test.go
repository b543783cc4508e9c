package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/authgrid/backend/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505"}
}

// memStore is an in-memory SessionStore + ServiceClientStore with the same
// conditional semantics as the postgres implementation.
type memStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*model.User
	tokens      map[int64]*model.RefreshToken
	nextTokenID int64
	clients     map[string]*model.ServiceClient

	rolePerms     map[string][]string
	userRoles     map[uuid.UUID][]string
	permListCalls int
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[uuid.UUID]*model.User{},
		tokens:    map[int64]*model.RefreshToken{},
		clients:   map[string]*model.ServiceClient{},
		rolePerms: map[string][]string{},
		userRoles: map[uuid.UUID][]string{},
	}
}

func (m *memStore) CreateUser(_ context.Context, user *model.User) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email || u.Username == user.Username {
			return nil, uniqueViolation()
		}
	}
	stored := *user
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.users[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (m *memStore) GetUserByIdentifier(_ context.Context, identifier string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Exact match on either column, as in the pg store's
	// `WHERE email = $1 OR username = $1`.
	for _, u := range m.users {
		if u.Email == identifier || u.Username == identifier {
			out := *u
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) GetUserByID(_ context.Context, userID uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *u
	return &out, nil
}

func (m *memStore) GetUserByVerificationToken(_ context.Context, tokenValue string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.VerificationToken != nil && *u.VerificationToken == tokenValue {
			out := *u
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) SetVerificationToken(_ context.Context, userID uuid.UUID, tokenValue string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	u.VerificationToken = &tokenValue
	u.VerificationExpires = &expiresAt
	return nil
}

func (m *memStore) ActivateUser(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Status = model.UserStatusActive
	u.VerificationToken = nil
	u.VerificationExpires = nil
	return nil
}

func (m *memStore) InsertRefreshToken(_ context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertTokenLocked(userID, tokenHash, expiresAt)
	return nil
}

func (m *memStore) insertTokenLocked(userID uuid.UUID, tokenHash string, expiresAt time.Time) {
	m.nextTokenID++
	m.tokens[m.nextTokenID] = &model.RefreshToken{
		ID:        m.nextTokenID,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
}

func (m *memStore) GetRefreshTokenByHash(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tok := range m.tokens {
		if tok.TokenHash == tokenHash {
			out := *tok
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) ListLiveRefreshTokens(_ context.Context, userID uuid.UUID) ([]*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var live []*model.RefreshToken
	// Map iteration order is random; insertion ids give creation order.
	for id := int64(1); id <= m.nextTokenID; id++ {
		tok, ok := m.tokens[id]
		if ok && tok.UserID == userID && tok.Live(now) {
			out := *tok
			live = append(live, &out)
		}
	}
	return live, nil
}

func (m *memStore) RevokeRefreshToken(_ context.Context, tokenID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[tokenID]
	if !ok || !tok.Live(time.Now()) {
		return false, nil
	}
	now := time.Now()
	tok.RevokedAt = &now
	return true, nil
}

func (m *memStore) RotateRefreshToken(_ context.Context, oldTokenID int64, userID uuid.UUID, newTokenHash string, newExpiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[oldTokenID]
	if !ok || !tok.Live(time.Now()) {
		return pgx.ErrNoRows
	}
	now := time.Now()
	tok.RevokedAt = &now
	m.insertTokenLocked(userID, newTokenHash, newExpiresAt)
	return nil
}

func (m *memStore) RevokeAllRefreshTokens(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, tok := range m.tokens {
		if tok.UserID == userID && tok.RevokedAt == nil {
			revokedAt := now
			tok.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *memStore) CreateServiceClient(_ context.Context, client *model.ServiceClient) (*model.ServiceClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[client.ClientID]; ok {
		return nil, uniqueViolation()
	}
	stored := *client
	stored.CreatedAt = time.Now()
	m.clients[stored.ClientID] = &stored
	out := stored
	return &out, nil
}

func (m *memStore) GetServiceClientByClientID(_ context.Context, clientID string) (*model.ServiceClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.clients[clientID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *client
	return &out, nil
}

func (m *memStore) ListUserPermissions(_ context.Context, userID uuid.UUID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permListCalls++
	seen := map[string]struct{}{}
	var names []string
	for _, role := range m.userRoles[userID] {
		for _, p := range m.rolePerms[role] {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			names = append(names, p)
		}
	}
	return names, nil
}

func (m *memStore) AssignRole(_ context.Context, userID uuid.UUID, roleName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rolePerms[roleName]; !ok {
		return pgx.ErrNoRows
	}
	for _, r := range m.userRoles[userID] {
		if r == roleName {
			return nil
		}
	}
	m.userRoles[userID] = append(m.userRoles[userID], roleName)
	return nil
}

func (m *memStore) listPermissionCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permListCalls
}

// fakeCache is an always-available Cache with observable contents.
type fakeCache struct {
	mu          sync.Mutex
	data        map[string]string
	unavailable bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return "", false
	}
	val, ok := f.data[key]
	return val, ok
}

func (f *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return
	}
	f.data[key] = value
}

func (f *fakeCache) Delete(_ context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
}

func (f *fakeCache) Clear(_ context.Context, prefix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
		}
	}
}

func (f *fakeCache) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

// fakeBus records published events synchronously.
type fakeBus struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (f *fakeBus) Publish(topic string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	f.events = append(f.events, payload)
}

func (f *fakeBus) published() ([]string, []any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.topics...), append([]any(nil), f.events...)
}
