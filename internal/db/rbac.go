package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListUserPermissions returns the union of permission names over every role
// assigned to the user. An empty slice means no grants, not an error.
func (db *Postgres) ListUserPermissions(ctx context.Context, userID uuid.UUID) ([]string, error) {
	query := `
		SELECT DISTINCT p.name
		FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1
		ORDER BY p.name
	`
	rows, err := db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AssignRole grants the named role to the user. Assigning an already-held
// role is a no-op; an unknown role name is pgx.ErrNoRows.
func (db *Postgres) AssignRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, r.id FROM roles r WHERE r.name = $2
		ON CONFLICT DO NOTHING
	`, userID, roleName)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish "role does not exist" from "already assigned".
		var exists bool
		err := db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)`, roleName).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
	}
	return nil
}
