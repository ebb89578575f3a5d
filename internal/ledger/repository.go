package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TxRepository exposes the storage operations available inside one unit of
// work. Writes are visible to later reads in the same unit of work.
//
// Not-found lookups return the matching Err*NotFound sentinel. Unique
// violations return ErrDuplicateEmail or ErrDuplicateCategory.
type TxRepository interface {
	InsertUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	// DeleteUser removes the user's transactions, accounts and categories,
	// then the user.
	DeleteUser(ctx context.Context, id string) error

	InsertCategory(ctx context.Context, category Category) error
	UpdateCategory(ctx context.Context, category Category) error
	GetCategory(ctx context.Context, id string) (Category, error)
	FindCategoryByKey(ctx context.Context, userID, nameKey string) (Category, error)
	ListCategories(ctx context.Context, userID string) ([]Category, error)
	CategoryInUse(ctx context.Context, id string) (bool, error)
	DeleteCategory(ctx context.Context, id string) error

	InsertAccount(ctx context.Context, account Account) error
	GetAccount(ctx context.Context, id string) (Account, error)
	// GetAccountForUpdate loads the account and holds it against concurrent
	// writers until the unit of work ends.
	GetAccountForUpdate(ctx context.Context, id string) (Account, error)
	ListAccounts(ctx context.Context, userID string) ([]Account, error)
	ListAllAccounts(ctx context.Context) ([]Account, error)
	UpdateAccount(ctx context.Context, account Account) error
	// DeleteAccount removes the account together with its transactions.
	DeleteAccount(ctx context.Context, id string) error

	// InsertTransaction stores t and returns it with its sequence assigned.
	InsertTransaction(ctx context.Context, t Transaction) (Transaction, error)
	GetTransaction(ctx context.Context, id string) (Transaction, error)
	UpdateTransaction(ctx context.Context, t Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	// ListTransactions returns the account's transactions in insertion order.
	ListTransactions(ctx context.Context, accountID string) ([]Transaction, error)
	ListUserTransactions(ctx context.Context, userID string) ([]Transaction, error)
	// SumByKind totals amounts of the user's transactions of kind dated in
	// [from, to). Zero bounds are open. No rows yields zero.
	SumByKind(ctx context.Context, userID string, kind Kind, from, to time.Time) (decimal.Decimal, error)
}
