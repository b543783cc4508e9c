package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/authgrid/backend/internal/model"
)

func newServiceAuthFixture(t *testing.T) (*ServiceAuthService, *memStore) {
	t.Helper()
	store := newMemStore()
	return NewServiceAuthService(store, newTestIssuer(t)), store
}

func TestRegisterService(t *testing.T) {
	svc, store := newServiceAuthFixture(t)
	ctx := context.Background()

	resp, err := svc.RegisterService(ctx, "billing", "internal billing jobs")
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}
	if !strings.HasPrefix(resp.ClientID, "svc_") {
		t.Fatalf("clientID = %q, want svc_ prefix", resp.ClientID)
	}
	if len(resp.ClientSecret) != 64 {
		t.Fatalf("secret length = %d, want 64 hex chars", len(resp.ClientSecret))
	}

	stored, err := store.GetServiceClientByClientID(ctx, resp.ClientID)
	if err != nil {
		t.Fatalf("client not persisted: %v", err)
	}
	if stored.ClientSecretHash == resp.ClientSecret {
		t.Fatal("raw secret persisted instead of its hash")
	}
	if !stored.IsActive {
		t.Fatal("new client should be active")
	}
}

func TestRegisterService_EmptyNameRejected(t *testing.T) {
	svc, _ := newServiceAuthFixture(t)
	if _, err := svc.RegisterService(context.Background(), "  ", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestGetToken_Success(t *testing.T) {
	svc, _ := newServiceAuthFixture(t)
	ctx := context.Background()

	reg, err := svc.RegisterService(ctx, "billing", "")
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}

	resp, err := svc.GetToken(ctx, model.ServiceTokenRequest{
		ClientID:     reg.ClientID,
		ClientSecret: reg.ClientSecret,
		GrantType:    GrantTypeClientCredentials,
	})
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if resp.AccessToken == "" || resp.TokenType != "Bearer" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.ExpiresIn != 900 {
		t.Fatalf("expiresIn = %d, want 900", resp.ExpiresIn)
	}
}

func TestGetToken_UnsupportedGrant(t *testing.T) {
	svc, _ := newServiceAuthFixture(t)

	_, err := svc.GetToken(context.Background(), model.ServiceTokenRequest{
		ClientID:     "svc_x",
		ClientSecret: "secret",
		GrantType:    "authorization_code",
	})
	if !errors.Is(err, ErrUnsupportedGrant) {
		t.Fatalf("err = %v, want ErrUnsupportedGrant", err)
	}
}

func TestGetToken_BadCredentialsIndistinguishable(t *testing.T) {
	svc, store := newServiceAuthFixture(t)
	ctx := context.Background()

	reg, err := svc.RegisterService(ctx, "billing", "")
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}

	// Secret differing in a single character, same length.
	wrongSecret := flipHexChar(reg.ClientSecret, 0)

	cases := []model.ServiceTokenRequest{
		{ClientID: "svc_unknown", ClientSecret: reg.ClientSecret, GrantType: GrantTypeClientCredentials},
		{ClientID: reg.ClientID, ClientSecret: wrongSecret, GrantType: GrantTypeClientCredentials},
	}
	for _, req := range cases {
		if _, err := svc.GetToken(ctx, req); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("GetToken(%+v) err = %v, want ErrUnauthorized", req, err)
		}
	}

	// Deactivated client fails identically.
	store.mu.Lock()
	store.clients[reg.ClientID].IsActive = false
	store.mu.Unlock()

	_, err = svc.GetToken(ctx, model.ServiceTokenRequest{
		ClientID:     reg.ClientID,
		ClientSecret: reg.ClientSecret,
		GrantType:    GrantTypeClientCredentials,
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("inactive client err = %v, want ErrUnauthorized", err)
	}
}

// flipHexChar returns a copy of s with the hex digit at index i replaced by
// a different one, keeping length and alphabet intact.
func flipHexChar(s string, i int) string {
	b := []byte(s)
	if b[i] == 'a' {
		b[i] = 'b'
	} else {
		b[i] = 'a'
	}
	return string(b)
}

// Rejection time must not depend on where the presented secret diverges from
// the stored one. Means are compared coarsely: an early-exit byte comparison
// would differ by orders of magnitude over a 64-char secret, while jitter
// stays well inside the tolerance.
func TestGetToken_RejectionTimeIndependentOfMismatchPosition(t *testing.T) {
	svc, _ := newServiceAuthFixture(t)
	ctx := context.Background()

	reg, err := svc.RegisterService(ctx, "billing", "")
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}

	const rounds = 5000
	measure := func(secret string) time.Duration {
		req := model.ServiceTokenRequest{
			ClientID:     reg.ClientID,
			ClientSecret: secret,
			GrantType:    GrantTypeClientCredentials,
		}
		start := time.Now()
		for i := 0; i < rounds; i++ {
			if _, err := svc.GetToken(ctx, req); !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("GetToken err = %v, want ErrUnauthorized", err)
			}
		}
		return time.Since(start) / rounds
	}

	firstCharWrong := flipHexChar(reg.ClientSecret, 0)
	lastCharWrong := flipHexChar(reg.ClientSecret, len(reg.ClientSecret)-1)

	// Warm caches and the scheduler before the measured runs.
	measure(firstCharWrong)

	early := measure(firstCharWrong)
	late := measure(lastCharWrong)

	ratio := float64(late) / float64(early)
	if ratio < 1 {
		ratio = 1 / ratio
	}
	if ratio > 3 {
		t.Fatalf("mismatch position leaks into timing: first-char %v vs last-char %v per call", early, late)
	}
}

func TestGetToken_IssuesServiceTypedToken(t *testing.T) {
	store := newMemStore()
	issuer := newTestIssuer(t)
	svc := NewServiceAuthService(store, issuer)
	ctx := context.Background()

	reg, err := svc.RegisterService(ctx, "billing", "")
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}
	resp, err := svc.GetToken(ctx, model.ServiceTokenRequest{
		ClientID:     reg.ClientID,
		ClientSecret: reg.ClientSecret,
		GrantType:    GrantTypeClientCredentials,
	})
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}

	ident, err := issuer.ParseServiceToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("ParseServiceToken: %v", err)
	}
	if ident.ClientID != reg.ClientID {
		t.Fatalf("clientID = %q, want %q", ident.ClientID, reg.ClientID)
	}
}
