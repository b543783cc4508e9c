package db

import (
	"context"

	"github.com/authgrid/backend/internal/model"
)

func (db *Postgres) CreateServiceClient(ctx context.Context, client *model.ServiceClient) (*model.ServiceClient, error) {
	query := `
		INSERT INTO service_clients (id, client_id, client_secret_hash, name, description, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, client_id, client_secret_hash, name, description, is_active, created_at
	`
	var created model.ServiceClient
	err := db.Pool.QueryRow(ctx, query,
		client.ID,
		client.ClientID,
		client.ClientSecretHash,
		client.Name,
		client.Description,
		client.IsActive,
	).Scan(
		&created.ID,
		&created.ClientID,
		&created.ClientSecretHash,
		&created.Name,
		&created.Description,
		&created.IsActive,
		&created.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (db *Postgres) GetServiceClientByClientID(ctx context.Context, clientID string) (*model.ServiceClient, error) {
	query := `
		SELECT id, client_id, client_secret_hash, name, description, is_active, created_at
		FROM service_clients
		WHERE client_id = $1
	`
	var client model.ServiceClient
	err := db.Pool.QueryRow(ctx, query, clientID).Scan(
		&client.ID,
		&client.ClientID,
		&client.ClientSecretHash,
		&client.Name,
		&client.Description,
		&client.IsActive,
		&client.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &client, nil
}
