package services

import (
	"context"
	"errors"
	"fmt"

	"academy/internal/amqp"
	"academy/internal/auth"
	"academy/internal/backup"
	"academy/internal/core"
	"academy/internal/store"
)

const (
	seedCenterName = "Center 1"
	seedUsername   = "admin"
	seedPassword   = "admin"
	maxUsernameLen = 50
)

var errCurrentPassword = core.Invalid("current_password", "Current password is incorrect")

type AccountService struct {
	manager
}

func NewAccountService(d Deps) *AccountService {
	return &AccountService{manager: newManager(d)}
}

// EnsureSeed creates the first center and the admin account on an empty
// database. It is safe to call on every start.
func (s *AccountService) EnsureSeed(ctx context.Context) error {
	return s.store.WithTx(ctx, func(q store.Queries) error {
		n, err := q.CountCenters(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			if _, err := q.CreateCenter(ctx, seedCenterName); err != nil {
				return err
			}
			s.logger.InfoContext(ctx, "Seeded default center", "name", seedCenterName)
		}

		n, err = q.CountUsers(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		hash, err := auth.HashPassword(seedPassword)
		if err != nil {
			return err
		}
		if _, err := q.InsertUser(ctx, core.User{Username: seedUsername, PasswordHash: hash}); err != nil {
			return err
		}
		s.logger.WarnContext(ctx, "Seeded default admin account, change its password", "username", seedUsername)
		return nil
	})
}

func (s *AccountService) User(ctx context.Context, id int64) (core.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *AccountService) verify(ctx context.Context, userID int64, password string) (core.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return core.User{}, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return core.User{}, errCurrentPassword
	}
	return u, nil
}

// ChangeUsername renames the user after checking the current password.
func (s *AccountService) ChangeUsername(ctx context.Context, userID int64, username, currentPassword string) (string, error) {
	username = core.SanitizeInput(username, maxUsernameLen)
	if username == "" || currentPassword == "" {
		return "", core.NewValidationError(errors.New("Please fill in all fields"))
	}
	if _, err := s.verify(ctx, userID, currentPassword); err != nil {
		return "", err
	}
	if other, err := s.store.GetUserByUsername(ctx, username); err == nil && other.ID != userID {
		return "", core.Invalid("new_username", "Username already taken")
	} else if err != nil && !errors.Is(err, core.ErrNotFound) {
		return "", err
	}

	err := s.mutate(ctx, backup.ReasonSettings, func(q store.Queries) error {
		return q.UpdateUsername(ctx, userID, username)
	})
	if errors.Is(err, core.ErrConflict) {
		return "", core.Invalid("new_username", "Username already taken")
	}
	if err != nil {
		return "", err
	}
	s.changed(ctx, backup.ReasonSettings, amqp.NewRecordsChangedMessage(amqp.EntityAccount, "update", 0, 0, 0), userID)
	return username, nil
}

// ChangePassword replaces the user's password after checking the current one.
func (s *AccountService) ChangePassword(ctx context.Context, userID int64, current, next, confirm string) error {
	switch {
	case current == "" || next == "" || confirm == "":
		return core.NewValidationError(errors.New("Please fill in all password fields"))
	case next != confirm:
		return core.Invalid("confirm_password", "New passwords do not match")
	case len(next) < auth.MinPasswordLength:
		return core.Invalid("new_password", "Password must be at least %d characters", auth.MinPasswordLength)
	}
	if _, err := s.verify(ctx, userID, current); err != nil {
		return err
	}
	return s.setPassword(ctx, userID, next)
}

// ResetPassword sets a new password without the current one. It is meant
// for the admin CLI.
func (s *AccountService) ResetPassword(ctx context.Context, username, password string) error {
	if len(password) < auth.MinPasswordLength {
		return core.Invalid("password", "Password must be at least %d characters", auth.MinPasswordLength)
	}
	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("user %q: %w", username, err)
	}
	return s.setPassword(ctx, u.ID, password)
}

func (s *AccountService) setPassword(ctx context.Context, userID int64, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = s.mutate(ctx, backup.ReasonSettings, func(q store.Queries) error {
		return q.UpdatePassword(ctx, userID, hash)
	})
	if err != nil {
		return err
	}
	s.changed(ctx, backup.ReasonSettings, amqp.NewRecordsChangedMessage(amqp.EntityAccount, "update", 0, 0, 0), userID)
	return nil
}
