package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/krisefikser/internal/model"
)

// UserRepo persists users and their role memberships.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// NormalizeEmail lower-cases and trims an e-mail address.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create inserts u and its role memberships.  Role names must already exist
// in `roles`.  Call it inside RunInTx so a failed role insert does not leave
// a user without roles.
func (r *UserRepo) Create(ctx context.Context, u model.User) error {
	db := conn(ctx, r.DB)
	_, err := db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, first_name, last_name) VALUES (?,?,?,?,?)",
		u.ID, NormalizeEmail(u.Email), u.PasswordHash, u.FirstName, u.LastName)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	for _, role := range u.Roles {
		res, err := db.ExecContext(ctx,
			"INSERT INTO user_roles (user_id, role_id) SELECT ?, id FROM roles WHERE name=?",
			u.ID, string(role))
		if err != nil {
			return fmt.Errorf("insert user role %s: %w", role, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrRoleNotFound
		}
	}
	return nil
}

// ExistsByEmail reports whether a user with email exists.
func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := conn(ctx, r.DB).QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE email=?)", NormalizeEmail(email)).Scan(&exists)
	return exists, err
}

// FindByEmail fetches a user and its current role set, or ErrNotFound.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (model.User, error) {
	db := conn(ctx, r.DB)
	var u model.User
	err := db.QueryRowContext(ctx,
		"SELECT id,email,password_hash,first_name,last_name,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		NormalizeEmail(email)).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}

	rows, err := db.QueryContext(ctx,
		"SELECT r.name FROM user_roles ur JOIN roles r ON r.id = ur.role_id WHERE ur.user_id=? ORDER BY r.name",
		u.ID)
	if err != nil {
		return model.User{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return model.User{}, err
		}
		role, ok := model.ParseRoleName(name)
		if !ok {
			return model.User{}, fmt.Errorf("user %s has unknown role %q", u.ID, name)
		}
		u.Roles = append(u.Roles, role)
	}
	return u, rows.Err()
}

// UpdatePassword stores a new password hash for the user, or returns
// ErrNotFound when no such user exists.
func (r *UserRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	res, err := conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=?", passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
