package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	"github.com/authgrid/backend/internal/db"
	"github.com/authgrid/backend/internal/model"
	"github.com/authgrid/backend/internal/token"
)

const GrantTypeClientCredentials = "client_credentials"

// ServiceClientStore is the record store for machine identities.
type ServiceClientStore interface {
	CreateServiceClient(ctx context.Context, client *model.ServiceClient) (*model.ServiceClient, error)
	GetServiceClientByClientID(ctx context.Context, clientID string) (*model.ServiceClient, error)
}

// ServiceAuthService implements the client-credentials grant for machine
// clients.
type ServiceAuthService struct {
	store  ServiceClientStore
	issuer *token.Issuer
}

func NewServiceAuthService(store ServiceClientStore, issuer *token.Issuer) *ServiceAuthService {
	return &ServiceAuthService{store: store, issuer: issuer}
}

// RegisterService creates a machine client. The raw secret is returned
// exactly once; only its hash is persisted, so it can never be recovered.
func (s *ServiceAuthService) RegisterService(ctx context.Context, name, description string) (*model.RegisterServiceResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}

	idBytes := make([]byte, 8)
	if _, err := rand.Read(idBytes); err != nil {
		return nil, err
	}
	clientID := "svc_" + hex.EncodeToString(idBytes)

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, err
	}
	clientSecret := hex.EncodeToString(secretBytes)

	var desc *string
	if d := strings.TrimSpace(description); d != "" {
		desc = &d
	}

	created, err := s.store.CreateServiceClient(ctx, &model.ServiceClient{
		ID:               uuid.New(),
		ClientID:         clientID,
		ClientSecretHash: hashClientSecret(clientSecret),
		Name:             name,
		Description:      desc,
		IsActive:         true,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}

	return &model.RegisterServiceResponse{
		ClientID:     created.ClientID,
		ClientSecret: clientSecret,
		Name:         created.Name,
	}, nil
}

// GetToken exchanges client credentials for a short-lived service token.
// Unknown client, inactive client and wrong secret are indistinguishable,
// and the secret comparison is constant-time.
func (s *ServiceAuthService) GetToken(ctx context.Context, req model.ServiceTokenRequest) (*model.ServiceTokenResponse, error) {
	if req.GrantType != GrantTypeClientCredentials {
		return nil, ErrUnsupportedGrant
	}
	if req.ClientID == "" || req.ClientSecret == "" {
		return nil, ErrUnauthorized
	}

	client, err := s.store.GetServiceClientByClientID(ctx, req.ClientID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !client.IsActive {
		return nil, ErrUnauthorized
	}

	incoming := hashClientSecret(req.ClientSecret)
	if subtle.ConstantTimeCompare([]byte(incoming), []byte(client.ClientSecretHash)) != 1 {
		return nil, ErrUnauthorized
	}

	accessToken, expiresIn, err := s.issuer.ServiceToken(client)
	if err != nil {
		return nil, err
	}

	return &model.ServiceTokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
	}, nil
}

func hashClientSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
