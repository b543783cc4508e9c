package db

import "context"

func (db *Postgres) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING_VERIFICATION',
			verification_token TEXT,
			verification_expires TIMESTAMPTZ,
			two_fa_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS users_verification_token_idx ON users(verification_token)`,
		`
		CREATE TABLE IF NOT EXISTS refresh_tokens (
			id BIGSERIAL PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token_hash TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMPTZ NOT NULL,
			revoked_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS refresh_tokens_user_id_idx ON refresh_tokens(user_id)`,
		`
		CREATE TABLE IF NOT EXISTS service_clients (
			id UUID PRIMARY KEY,
			client_id TEXT NOT NULL UNIQUE,
			client_secret_hash TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS roles (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS permissions (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS role_permissions (
			role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
			permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
			PRIMARY KEY (role_id, permission_id)
		)
		`,
		`
		CREATE TABLE IF NOT EXISTS user_roles (
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, role_id)
		)
		`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return db.seedRBAC(ctx)
}

// Baseline roles and their permission grants. Seeding is idempotent so it
// runs on every startup.
var defaultPermissions = []struct {
	Name        string
	Description string
}{
	{"user.create", "Create new users"},
	{"user.read", "View users"},
	{"user.update", "Update users"},
	{"user.delete", "Delete users"},
	{"role.create", "Create new roles"},
	{"role.read", "View roles"},
	{"role.update", "Update roles"},
	{"role.delete", "Delete roles"},
	{"permission.read", "View permissions"},
	{"system.settings", "Manage system settings"},
	{"system.monitor", "Monitor system health"},
	{"content.create", "Create content"},
	{"content.read", "View content"},
	{"content.update", "Update content"},
	{"content.delete", "Delete content"},
}

var defaultRoles = []struct {
	Name        string
	Description string
	Permissions []string
}{
	{
		Name:        "super_admin",
		Description: "Full access",
		Permissions: []string{
			"user.create", "user.read", "user.update", "user.delete",
			"role.create", "role.read", "role.update", "role.delete",
			"permission.read", "system.settings", "system.monitor",
			"content.create", "content.read", "content.update", "content.delete",
		},
	},
	{
		Name:        "moderator",
		Description: "Content moderation",
		Permissions: []string{
			"user.read", "content.create", "content.read", "content.update", "content.delete",
		},
	},
	{
		Name:        "user",
		Description: "Regular user",
		Permissions: []string{"content.read"},
	},
}

func (db *Postgres) seedRBAC(ctx context.Context) error {
	for _, p := range defaultPermissions {
		if _, err := db.Pool.Exec(ctx, `
			INSERT INTO permissions (name, description)
			VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING
		`, p.Name, p.Description); err != nil {
			return err
		}
	}

	for _, r := range defaultRoles {
		if _, err := db.Pool.Exec(ctx, `
			INSERT INTO roles (name, description)
			VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING
		`, r.Name, r.Description); err != nil {
			return err
		}
		for _, perm := range r.Permissions {
			if _, err := db.Pool.Exec(ctx, `
				INSERT INTO role_permissions (role_id, permission_id)
				SELECT r.id, p.id FROM roles r, permissions p
				WHERE r.name = $1 AND p.name = $2
				ON CONFLICT DO NOTHING
			`, r.Name, perm); err != nil {
				return err
			}
		}
	}
	return nil
}
