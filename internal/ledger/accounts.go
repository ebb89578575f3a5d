package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/shared"
)

// CreateAccount opens an account for the user. Negative initial balances
// are allowed.
func (s *Service) CreateAccount(ctx context.Context, userID, name string, initialBalance decimal.Decimal) (Account, error) {
	clean, err := validateAccountName(name)
	if err != nil {
		return Account{}, err
	}
	now := s.timestamp()
	account := Account{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           clean,
		InitialBalance: initialBalance,
		Balance:        initialBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.mutate(ctx, "account.create", "", func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		return tx.InsertAccount(ctx, account)
	})
	if err != nil {
		return Account{}, err
	}
	s.committed(ctx, userID, shared.AuditLog{
		Action:   "account.create",
		Entity:   "account",
		EntityID: account.ID,
		Meta:     map[string]any{"name": account.Name, "initial_balance": initialBalance.String()},
	})
	return account, nil
}

// RenameAccount changes the name of an account the user owns.
func (s *Service) RenameAccount(ctx context.Context, userID, accountID, newName string) (Account, error) {
	clean, err := validateAccountName(newName)
	if err != nil {
		return Account{}, err
	}
	var account Account
	err = s.mutate(ctx, "account.rename", accountID, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if current.UserID != userID {
			return ErrInvalidAccount
		}
		current.Name = clean
		current.UpdatedAt = s.timestamp()
		if err := tx.UpdateAccount(ctx, current); err != nil {
			return err
		}
		account = current
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.committed(ctx, userID, shared.AuditLog{
		Action:   "account.rename",
		Entity:   "account",
		EntityID: accountID,
		Meta:     map[string]any{"name": clean},
	})
	return account, nil
}

// DeleteAccount removes an account the user owns along with its transactions.
func (s *Service) DeleteAccount(ctx context.Context, userID, accountID string) error {
	err := s.mutate(ctx, "account.delete", accountID, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if current.UserID != userID {
			return ErrInvalidAccount
		}
		return tx.DeleteAccount(ctx, accountID)
	})
	if err != nil {
		return err
	}
	s.committed(ctx, userID, shared.AuditLog{Action: "account.delete", Entity: "account", EntityID: accountID})
	return nil
}

// GetAccount returns an account the user owns.
func (s *Service) GetAccount(ctx context.Context, userID, accountID string) (Account, error) {
	var account Account
	err := s.read(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = ownedAccount(ctx, tx, userID, accountID)
		return err
	})
	return account, err
}

// ListAccounts returns the user's accounts.
func (s *Service) ListAccounts(ctx context.Context, userID string) ([]Account, error) {
	var accounts []Account
	err := s.read(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		var err error
		accounts, err = tx.ListAccounts(ctx, userID)
		return err
	})
	return accounts, err
}

func ownedAccount(ctx context.Context, tx TxRepository, userID, accountID string) (Account, error) {
	account, err := tx.GetAccount(ctx, accountID)
	if err != nil {
		return Account{}, err
	}
	if account.UserID != userID {
		return Account{}, ErrInvalidAccount
	}
	return account, nil
}
