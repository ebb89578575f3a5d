package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TotalOf sums the running balances of accounts.
func TotalOf(accounts []Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// SignedTotal sums the signed amounts of the transactions keep accepts.
func SignedTotal(txs []Transaction, keep func(Transaction) bool) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if keep == nil || keep(t) {
			total = total.Add(t.SignedAmount())
		}
	}
	return total
}

// ExpectedBalance recomputes a balance from the initial value and transactions.
func ExpectedBalance(initial decimal.Decimal, txs []Transaction) decimal.Decimal {
	return initial.Add(SignedTotal(txs, nil))
}

// AccountBalance returns the stored running balance of an account the user owns.
func (s *Service) AccountBalance(ctx context.Context, userID, accountID string) (decimal.Decimal, error) {
	account, err := s.GetAccount(ctx, userID, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// TotalBalance sums the balances of all the user's accounts.
func (s *Service) TotalBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	accounts, err := s.ListAccounts(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return TotalOf(accounts), nil
}

// CategoryBalance sums the signed amounts of the user's transactions whose
// category name matches, ignoring case, across all accounts.
func (s *Service) CategoryBalance(ctx context.Context, userID, categoryName string) (decimal.Decimal, error) {
	key := NameKey(categoryName)
	var total decimal.Decimal
	err := s.read(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		txs, err := tx.ListUserTransactions(ctx, userID)
		if err != nil {
			return err
		}
		total = SignedTotal(txs, func(t Transaction) bool { return NameKey(t.CategoryName) == key })
		return nil
	})
	return total, err
}

// CategoryBalanceByID sums the signed amounts posted to one category.
func (s *Service) CategoryBalanceByID(ctx context.Context, userID, categoryID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.read(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := ownedCategory(ctx, tx, userID, categoryID); err != nil {
			return err
		}
		txs, err := tx.ListUserTransactions(ctx, userID)
		if err != nil {
			return err
		}
		total = SignedTotal(txs, func(t Transaction) bool { return t.CategoryID == categoryID })
		return nil
	})
	return total, err
}

// TotalIncome sums all income amounts of the user. No rows yields zero.
func (s *Service) TotalIncome(ctx context.Context, userID string) (decimal.Decimal, error) {
	return s.sumKind(ctx, userID, KindIncome, time.Time{}, time.Time{})
}

// TotalExpense sums all expense amounts of the user. No rows yields zero.
func (s *Service) TotalExpense(ctx context.Context, userID string) (decimal.Decimal, error) {
	return s.sumKind(ctx, userID, KindExpense, time.Time{}, time.Time{})
}

func (s *Service) sumKind(ctx context.Context, userID string, kind Kind, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.read(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		total, err = tx.SumByKind(ctx, userID, kind, from, to)
		return err
	})
	return total, err
}

// Balance reports income, expense, net and the total account balance.
func (s *Service) Balance(ctx context.Context, userID string) (BalanceSummary, error) {
	var summary BalanceSummary
	err := s.read(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		income, err := tx.SumByKind(ctx, userID, KindIncome, time.Time{}, time.Time{})
		if err != nil {
			return err
		}
		expense, err := tx.SumByKind(ctx, userID, KindExpense, time.Time{}, time.Time{})
		if err != nil {
			return err
		}
		accounts, err := tx.ListAccounts(ctx, userID)
		if err != nil {
			return err
		}
		summary = BalanceSummary{
			Income:  income,
			Expense: expense,
			Net:     income.Sub(expense),
			Total:   TotalOf(accounts),
		}
		return nil
	})
	return summary, err
}

// MonthlySummary reports income and expense dated in the given UTC month.
func (s *Service) MonthlySummary(ctx context.Context, userID string, year int, month time.Month) (MonthlySummary, error) {
	if err := validatePeriod(year, month); err != nil {
		return MonthlySummary{}, err
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	summary := MonthlySummary{Year: year, Month: month}
	err := s.read(ctx, func(ctx context.Context, tx TxRepository) error {
		income, err := tx.SumByKind(ctx, userID, KindIncome, from, to)
		if err != nil {
			return err
		}
		expense, err := tx.SumByKind(ctx, userID, KindExpense, from, to)
		if err != nil {
			return err
		}
		summary.Income = income
		summary.Expense = expense
		summary.Net = income.Sub(expense)
		return nil
	})
	return summary, err
}
