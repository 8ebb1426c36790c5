package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/krisefikser/internal/model"
)

// RoleRepo reads the `roles` reference table.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// FindByName returns the role row for name or ErrRoleNotFound.
func (r *RoleRepo) FindByName(ctx context.Context, name model.RoleName) (model.Role, error) {
	var role model.Role
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT id, name FROM roles WHERE name=? LIMIT 1", string(name)).
		Scan(&role.ID, &role.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Role{}, ErrRoleNotFound
	}
	return role, err
}

// Seed inserts every known role that is not present yet.
func (r *RoleRepo) Seed(ctx context.Context) error {
	for _, name := range model.AllRoles {
		if _, err := conn(ctx, r.DB).ExecContext(ctx,
			"INSERT IGNORE INTO roles (name) VALUES (?)", string(name)); err != nil {
			return err
		}
	}
	return nil
}
