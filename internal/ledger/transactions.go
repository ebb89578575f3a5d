package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/pocketledger/pocketledger/internal/shared"
)

// RegisterIncome posts an income against an account.
func (s *Service) RegisterIncome(ctx context.Context, in RegisterInput) (Transaction, error) {
	return s.Register(ctx, KindIncome, in)
}

// RegisterExpense posts an expense against an account. The funds check runs
// before the category is resolved.
func (s *Service) RegisterExpense(ctx context.Context, in RegisterInput) (Transaction, error) {
	return s.Register(ctx, KindExpense, in)
}

// Register posts a transaction of the given kind.
func (s *Service) Register(ctx context.Context, kind Kind, in RegisterInput) (Transaction, error) {
	if !kind.Valid() {
		return Transaction{}, fmt.Errorf("%w: kind must be INCOME or EXPENSE", ErrInvalidTransaction)
	}
	if in.AccountID == "" {
		return Transaction{}, fmt.Errorf("%w: account id is required", ErrInvalidTransaction)
	}
	op := "transaction.register_" + strings.ToLower(string(kind))
	var created Transaction
	err := s.mutate(ctx, op, in.AccountID, func(ctx context.Context, tx TxRepository) error {
		account, err := ledgerAccount(ctx, tx, in.UserID, in.AccountID)
		if err != nil {
			return err
		}
		if kind == KindExpense {
			if err := checkFunds(account.Balance, in.Amount); err != nil {
				return err
			}
		}
		category, err := ledgerCategory(ctx, tx, in.CategoryID)
		if err != nil {
			return err
		}
		now := s.timestamp()
		record := Transaction{
			ID:           uuid.NewString(),
			AccountID:    account.ID,
			CategoryID:   category.ID,
			CategoryName: category.Name,
			Kind:         kind,
			Amount:       in.Amount,
			Description:  strings.TrimSpace(in.Description),
			Date:         in.Date,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := validateTransaction(record, category, account); err != nil {
			return err
		}
		account.Balance = account.Balance.Add(record.SignedAmount())
		account.UpdatedAt = now
		inserted, err := tx.InsertTransaction(ctx, record)
		if err != nil {
			return err
		}
		if err := tx.UpdateAccount(ctx, account); err != nil {
			return err
		}
		inserted.CategoryName = category.Name
		created = inserted
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.committed(ctx, in.UserID, shared.AuditLog{
		Action:   op,
		Entity:   "transaction",
		EntityID: created.ID,
		Meta: map[string]any{
			"account_id":  created.AccountID,
			"category_id": created.CategoryID,
			"amount":      created.Amount.String(),
		},
	})
	return created, nil
}

// EditTransaction replaces amount, description, date and category of a
// transaction. The original effect is reverted first; an expense must fit
// in the reverted balance. Nothing changes on failure.
func (s *Service) EditTransaction(ctx context.Context, in EditInput) (Transaction, error) {
	if in.AccountID == "" || in.TransactionID == "" {
		return Transaction{}, fmt.Errorf("%w: account and transaction ids are required", ErrInvalidTransaction)
	}
	var updated Transaction
	var before Transaction
	err := s.mutate(ctx, "transaction.edit", in.AccountID, func(ctx context.Context, tx TxRepository) error {
		account, err := ledgerAccount(ctx, tx, in.UserID, in.AccountID)
		if err != nil {
			return err
		}
		current, err := ledgerTransaction(ctx, tx, in.TransactionID)
		if err != nil {
			return err
		}
		if current.AccountID != account.ID {
			return fmt.Errorf("%w: transaction %q is not posted to account %q", ErrInvalidTransaction, current.ID, account.ID)
		}
		category, err := ledgerCategory(ctx, tx, in.CategoryID)
		if err != nil {
			return err
		}

		next := current
		next.Amount = in.Amount
		next.Description = strings.TrimSpace(in.Description)
		next.Date = in.Date
		next.CategoryID = category.ID
		next.CategoryName = category.Name
		if err := validateTransaction(next, category, account); err != nil {
			return err
		}

		reverted := account.Balance.Sub(current.SignedAmount())
		if current.Kind == KindExpense {
			if err := checkFunds(reverted, next.Amount); err != nil {
				return err
			}
		}
		now := s.timestamp()
		next.UpdatedAt = now
		account.Balance = reverted.Add(next.SignedAmount())
		account.UpdatedAt = now
		if err := tx.UpdateTransaction(ctx, next); err != nil {
			return err
		}
		if err := tx.UpdateAccount(ctx, account); err != nil {
			return err
		}
		before = current
		updated = next
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	s.committed(ctx, in.UserID, shared.AuditLog{
		Action:   "transaction.edit",
		Entity:   "transaction",
		EntityID: updated.ID,
		Meta: map[string]any{
			"account_id":  updated.AccountID,
			"old_amount":  before.Amount.String(),
			"new_amount":  updated.Amount.String(),
			"category_id": updated.CategoryID,
		},
	})
	return updated, nil
}

// DeleteTransaction detaches a transaction from its account, reverting its
// effect on the balance.
func (s *Service) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	if transactionID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidTransaction)
	}
	var accountID string
	err := s.read(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := ledgerTransaction(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		accountID = current.AccountID
		return nil
	})
	if err != nil {
		return err
	}
	var removed Transaction
	err = s.mutate(ctx, "transaction.delete", accountID, func(ctx context.Context, tx TxRepository) error {
		current, err := ledgerTransaction(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		account, err := tx.GetAccountForUpdate(ctx, current.AccountID)
		if err != nil {
			if errors.Is(err, ErrAccountNotFound) {
				return missingReference(ErrAccountNotFound, "account", current.AccountID)
			}
			return err
		}
		if account.UserID != userID {
			return ErrNotAuthorized
		}
		account.Balance = account.Balance.Sub(current.SignedAmount())
		account.UpdatedAt = s.timestamp()
		if err := tx.UpdateAccount(ctx, account); err != nil {
			return err
		}
		if err := tx.DeleteTransaction(ctx, current.ID); err != nil {
			return err
		}
		removed = current
		return nil
	})
	if err != nil {
		return err
	}
	s.committed(ctx, userID, shared.AuditLog{
		Action:   "transaction.delete",
		Entity:   "transaction",
		EntityID: removed.ID,
		Meta:     map[string]any{"account_id": removed.AccountID, "amount": removed.Amount.String()},
	})
	return nil
}

// ListTransactions returns the transactions of an account the user owns.
func (s *Service) ListTransactions(ctx context.Context, userID, accountID string, order Order) ([]Transaction, error) {
	var txs []Transaction
	err := s.read(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := ownedAccount(ctx, tx, userID, accountID); err != nil {
			return err
		}
		var err error
		txs, err = tx.ListTransactions(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	SortTransactions(txs, order)
	return txs, nil
}

// SortTransactions orders txs in place. Ties on date keep insertion order.
func SortTransactions(txs []Transaction, order Order) {
	switch order {
	case OrderDateAsc:
		sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })
	case OrderDateDesc:
		sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date) })
	default:
		sort.SliceStable(txs, func(i, j int) bool { return txs[i].Seq < txs[j].Seq })
	}
}

func ledgerAccount(ctx context.Context, tx TxRepository, userID, accountID string) (Account, error) {
	account, err := tx.GetAccountForUpdate(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Account{}, missingReference(ErrAccountNotFound, "account", accountID)
		}
		return Account{}, err
	}
	if account.UserID != userID {
		return Account{}, ErrInvalidAccount
	}
	return account, nil
}

func ledgerCategory(ctx context.Context, tx TxRepository, categoryID string) (Category, error) {
	if categoryID == "" {
		return Category{}, fmt.Errorf("%w: category is required", ErrInvalidTransaction)
	}
	category, err := tx.GetCategory(ctx, categoryID)
	if err != nil {
		if errors.Is(err, ErrCategoryNotFound) {
			return Category{}, missingReference(ErrCategoryNotFound, "category", categoryID)
		}
		return Category{}, err
	}
	return category, nil
}

func ledgerTransaction(ctx context.Context, tx TxRepository, transactionID string) (Transaction, error) {
	t, err := tx.GetTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return Transaction{}, missingReference(ErrTransactionNotFound, "transaction", transactionID)
		}
		return Transaction{}, err
	}
	return t, nil
}
