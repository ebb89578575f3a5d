package auth

import (
	"context"

	"github.com/pocketledger/pocketledger/internal/ledger"
	"github.com/pocketledger/pocketledger/internal/shared"
)

// Directory is the user store auth delegates to. *ledger.Service satisfies it.
type Directory interface {
	RegisterUser(ctx context.Context, in ledger.NewUserInput) (ledger.User, error)
	GetUser(ctx context.Context, id string) (ledger.User, error)
	FindUserByEmail(ctx context.Context, email string) (ledger.User, error)
	DeleteUser(ctx context.Context, userID string) error
}

// Sessions issues and resolves bearer tokens. *shared.SessionManager satisfies it.
type Sessions interface {
	Create(ctx context.Context, userID string) (shared.Session, error)
	Load(ctx context.Context, token string) (shared.Session, error)
	Destroy(ctx context.Context, token string) error
	DestroyUser(ctx context.Context, userID string) error
}

var (
	_ Directory = (*ledger.Service)(nil)
	_ Sessions  = (*shared.SessionManager)(nil)
)
