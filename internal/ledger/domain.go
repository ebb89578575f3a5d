package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates income from expense for both categories and transactions.
type Kind string

const (
	KindIncome  Kind = "INCOME"
	KindExpense Kind = "EXPENSE"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Signed returns amount with the sign the kind applies to a balance.
func (k Kind) Signed(amount decimal.Decimal) decimal.Decimal {
	if k == KindExpense {
		return amount.Neg()
	}
	return amount
}

// ParseKind accepts INCOME or EXPENSE in any case.
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(raw)))
	if !k.Valid() {
		return "", fmt.Errorf("ledger: unknown kind %q", raw)
	}
	return k, nil
}

// Order selects how transactions of an account are listed.
type Order int

const (
	// OrderInsertion lists transactions in the order they were registered.
	OrderInsertion Order = iota
	OrderDateAsc
	OrderDateDesc
)

// ParseOrder maps "", "asc" and "desc" to an Order.
func ParseOrder(raw string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "insertion":
		return OrderInsertion, nil
	case "asc":
		return OrderDateAsc, nil
	case "desc":
		return OrderDateDesc, nil
	default:
		return OrderInsertion, fmt.Errorf("ledger: unknown order %q", raw)
	}
}

// User owns accounts and categories.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Category is a user scoped label with a fixed kind.
type Category struct {
	ID        string
	UserID    string
	Name      string
	NameKey   string
	Kind      Kind
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Account carries a running balance. Balance always equals InitialBalance
// plus the signed amounts of the account's transactions.
type Account struct {
	ID             string
	UserID         string
	Name           string
	InitialBalance decimal.Decimal
	Balance        decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Transaction is an income or expense posted against one account.
type Transaction struct {
	ID           string
	AccountID    string
	CategoryID   string
	CategoryName string
	Kind         Kind
	Amount       decimal.Decimal
	Description  string
	Date         time.Time
	Seq          int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SignedAmount is the transaction's effect on its account balance.
func (t Transaction) SignedAmount() decimal.Decimal {
	return t.Kind.Signed(t.Amount)
}

// NewUserInput carries the fields required to register a user.
type NewUserInput struct {
	Name         string
	Email        string
	PasswordHash string
}

// RegisterInput describes a new income or expense.
type RegisterInput struct {
	UserID      string
	AccountID   string
	CategoryID  string
	Amount      decimal.Decimal
	Description string
	Date        time.Time
}

// EditInput replaces the mutable fields of a transaction. Kind never changes.
type EditInput struct {
	UserID        string
	AccountID     string
	TransactionID string
	CategoryID    string
	Amount        decimal.Decimal
	Description   string
	Date          time.Time
}

// BalanceSummary aggregates a user's income and expense.
type BalanceSummary struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Net     decimal.Decimal
	Total   decimal.Decimal
}

// MonthlySummary aggregates income and expense dated within one month.
type MonthlySummary struct {
	Year    int
	Month   time.Month
	Income  decimal.Decimal
	Expense decimal.Decimal
	Net     decimal.Decimal
}

// BalanceDrift describes an account whose stored balance disagrees with its
// transactions.
type BalanceDrift struct {
	AccountID string
	UserID    string
	Stored    decimal.Decimal
	Expected  decimal.Decimal
}

// IntegrityReport is the outcome of VerifyIntegrity.
type IntegrityReport struct {
	Checked int
	Drifts  []BalanceDrift
}
