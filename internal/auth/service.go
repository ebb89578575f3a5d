package auth

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/pocketledger/pocketledger/internal/ledger"
	"github.com/pocketledger/pocketledger/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	users    Directory
	sessions Sessions
	cost     int
}

// NewService constructs a new Service.
func NewService(users Directory, sessions Sessions) *Service {
	return &Service{users: users, sessions: sessions, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost, mostly for tests.
func (s *Service) WithCost(cost int) {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		s.cost = cost
	}
}

// Register hashes the password and creates the user with default categories.
func (s *Service) Register(ctx context.Context, name, email, password string) (Profile, error) {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return Profile{}, fmt.Errorf("%w: need at least %d characters", ErrWeakPassword, MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Profile{}, err
	}
	user, err := s.users.RegisterUser(ctx, ledger.NewUserInput{Name: name, Email: email, PasswordHash: string(hash)})
	if err != nil {
		return Profile{}, err
	}
	return profileOf(user), nil
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (ledger.User, error) {
	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			return ledger.User{}, shared.ErrInvalidCredentials
		}
		return ledger.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return ledger.User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and opens a session.
func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return Token{}, err
	}
	sess, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: sess.Token, TokenType: "Bearer", ExpiresAt: sess.ExpiresAt, User: profileOf(user)}, nil
}

// Logout revokes a single token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

// Resolve maps a bearer token to its user id.
func (s *Service) Resolve(ctx context.Context, token string) (string, error) {
	sess, err := s.sessions.Load(ctx, token)
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}

// Me returns the profile of userID.
func (s *Service) Me(ctx context.Context, userID string) (Profile, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return profileOf(user), nil
}

// DeleteAccount removes the user with all owned data and revokes every session.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return err
	}
	return s.sessions.DestroyUser(ctx, userID)
}
