package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pocketledger/pocketledger/internal/shared"
)

// RegisterUser validates and stores a new user, then provisions the default
// categories in the same unit of work.
func (s *Service) RegisterUser(ctx context.Context, in NewUserInput) (User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return User{}, fmt.Errorf("%w: name is required", ErrInvalidUser)
	}
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	if in.PasswordHash == "" {
		return User{}, fmt.Errorf("%w: credential hash is required", ErrInvalidUser)
	}
	now := s.timestamp()
	user := User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	var provisioned []Category
	err = s.mutate(ctx, "user.register", "", func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetUserByEmail(ctx, email); err == nil {
			return ErrDuplicateEmail
		} else if !errors.Is(err, ErrUserNotFound) {
			return err
		}
		if err := tx.InsertUser(ctx, user); err != nil {
			return err
		}
		created, err := s.provisionDefaults(ctx, tx, user.ID)
		provisioned = created
		return err
	})
	if err != nil {
		return User{}, err
	}
	s.committed(ctx, user.ID, shared.AuditLog{
		Action:   "user.register",
		Entity:   "user",
		EntityID: user.ID,
		Meta:     map[string]any{"default_categories": len(provisioned)},
	})
	return user, nil
}

// GetUser returns the user with id.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	var user User
	err := s.read(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		user, err = tx.GetUser(ctx, id)
		return err
	})
	return user, err
}

// FindUserByEmail looks a user up by normalized email.
func (s *Service) FindUserByEmail(ctx context.Context, email string) (User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	var user User
	err = s.read(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		user, err = tx.GetUserByEmail(ctx, normalized)
		return err
	})
	return user, err
}

// DeleteUser removes the user with everything the user owns.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	err := s.mutate(ctx, "user.delete", "", func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		return tx.DeleteUser(ctx, userID)
	})
	if err != nil {
		return err
	}
	s.committed(ctx, userID, shared.AuditLog{Action: "user.delete", Entity: "user", EntityID: userID})
	return nil
}
