package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAccount indicates a bad account name or an account the actor does not own.
	ErrInvalidAccount = errors.New("ledger: invalid account")
	// ErrInvalidTransaction covers amount, description, date, category and reference failures.
	ErrInvalidTransaction = errors.New("ledger: invalid transaction")
	// ErrInsufficientFunds is matched by *InsufficientFundsError.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrInvalidCategory indicates a bad category name or kind.
	ErrInvalidCategory = errors.New("ledger: invalid category")
	// ErrDuplicateCategory indicates the user already has a category with that name.
	ErrDuplicateCategory = errors.New("ledger: duplicate category")
	// ErrCategoryInUse blocks deleting a category that transactions still reference.
	ErrCategoryInUse = errors.New("ledger: category in use")
	// ErrInvalidUser indicates a bad name or email.
	ErrInvalidUser = errors.New("ledger: invalid user")
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("ledger: email already registered")
	// ErrNotAuthorized indicates the actor does not own the resource.
	ErrNotAuthorized = errors.New("ledger: not authorized")
	// ErrInvalidPeriod indicates a bad year/month pair.
	ErrInvalidPeriod = errors.New("ledger: invalid period")

	ErrUserNotFound        = errors.New("ledger: user not found")
	ErrAccountNotFound     = errors.New("ledger: account not found")
	ErrCategoryNotFound    = errors.New("ledger: category not found")
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
)

// InsufficientFundsError reports the balance available to an expense and the
// amount it required.
type InsufficientFundsError struct {
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("ledger: insufficient funds: available %s, required %s", e.Available.String(), e.Required.String())
}

// Is lets errors.Is(err, ErrInsufficientFunds) match.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

func checkFunds(available, required decimal.Decimal) error {
	if available.LessThan(required) {
		return &InsufficientFundsError{Available: available, Required: required}
	}
	return nil
}

// missingReference marks a dangling id inside a ledger operation as both an
// invalid transaction and the specific not-found error.
func missingReference(notFound error, what, id string) error {
	return fmt.Errorf("%w: %s %q: %w", ErrInvalidTransaction, what, id, notFound)
}

// ErrorClass buckets err for metrics labels.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrNotAuthorized):
		return "forbidden"
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrCategoryNotFound), errors.Is(err, ErrTransactionNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateCategory), errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrCategoryInUse):
		return "conflict"
	case errors.Is(err, ErrInvalidAccount), errors.Is(err, ErrInvalidTransaction),
		errors.Is(err, ErrInvalidCategory), errors.Is(err, ErrInvalidUser), errors.Is(err, ErrInvalidPeriod):
		return "invalid"
	default:
		return "error"
	}
}
