package ledger

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// MaxNameLength bounds account and category names, in characters.
const MaxNameLength = 50

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// NameKey is the case-folded form used to compare category names. Casers
// are stateful, so each call gets its own.
func NameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

func cleanName(raw string, kind error, what string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: %s name is required", kind, what)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", fmt.Errorf("%w: %s name must be at most %d characters", kind, what, MaxNameLength)
	}
	return name, nil
}

func validateAccountName(raw string) (string, error) {
	return cleanName(raw, ErrInvalidAccount, "account")
}

func validateCategoryName(raw string) (string, error) {
	return cleanName(raw, ErrInvalidCategory, "category")
}

// NormalizeEmail trims, lowercases and checks the address shape.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidUser)
	}
	if !emailPattern.MatchString(email) {
		return "", fmt.Errorf("%w: email %q is not a valid address", ErrInvalidUser, raw)
	}
	return email, nil
}

// validateTransaction checks the fields shared by register and edit and the
// category compatibility rules.
func validateTransaction(t Transaction, category Category, account Account) error {
	if !t.Amount.GreaterThan(decimal.Zero) {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidTransaction)
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidTransaction)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidTransaction)
	}
	if category.UserID != account.UserID {
		return fmt.Errorf("%w: category %q belongs to another user", ErrInvalidTransaction, category.ID)
	}
	if category.Kind != t.Kind {
		return fmt.Errorf("%w: category %q is %s, transaction is %s", ErrInvalidTransaction, category.Name, category.Kind, t.Kind)
	}
	return nil
}

func validatePeriod(year int, month time.Month) error {
	if year < 1 || year > 9999 {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidPeriod, year)
	}
	if month < time.January || month > time.December {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidPeriod, int(month))
	}
	return nil
}
