package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/krisefikser/internal/model"
	"github.com/iliyamo/krisefikser/internal/repository"
)

// EnsureSuperAdmin creates the bootstrap SUPER_ADMIN account unless a user
// with that e-mail already exists.  No session is opened.  It reports
// whether an account was created.
func (s *SessionService) EnsureSuperAdmin(ctx context.Context, email, password string) (bool, error) {
	in := RegisterInput{
		Email:     repository.NormalizeEmail(email),
		Password:  password,
		FirstName: "Super",
		LastName:  "Admin",
	}
	if err := validateRegistration(in); err != nil {
		return false, err
	}

	created := false
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		exists, err := s.users.ExistsByEmail(ctx, in.Email)
		if err != nil || exists {
			return err
		}
		if _, err := s.roles.FindByName(ctx, model.RoleSuperAdmin); err != nil {
			return fmt.Errorf("role %s: %w", model.RoleSuperAdmin, err)
		}
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		u := model.User{
			ID:           uuid.New(),
			Email:        in.Email,
			PasswordHash: hash,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Roles:        []model.RoleName{model.RoleSuperAdmin},
		}
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		s.log.Info("super admin account created", "email", in.Email)
	}
	return created, nil
}
