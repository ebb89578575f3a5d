package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pocketledger/pocketledger/internal/ledger"
)

const dateLayout = "2006-01-02"

type accountRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	InitialBalance string `json:"initial_balance" validate:"omitempty,numeric"`
}

type renameRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type transactionRequest struct {
	Kind        string `json:"kind" validate:"required"`
	CategoryID  string `json:"category_id" validate:"required"`
	Amount      string `json:"amount" validate:"required,numeric"`
	Description string `json:"description" validate:"required,max=500"`
	Date        string `json:"date" validate:"required"`
}

type editTransactionRequest struct {
	CategoryID  string `json:"category_id" validate:"required"`
	Amount      string `json:"amount" validate:"required,numeric"`
	Description string `json:"description" validate:"required,max=500"`
	Date        string `json:"date" validate:"required"`
}

type categoryRequest struct {
	Name string `json:"name" validate:"required,max=200"`
	Kind string `json:"kind" validate:"required"`
}

type accountResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Balance        decimal.Decimal `json:"balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toAccountResponse(a ledger.Account) accountResponse {
	return accountResponse{
		ID:             a.ID,
		Name:           a.Name,
		InitialBalance: a.InitialBalance,
		Balance:        a.Balance,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type transactionResponse struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Kind         ledger.Kind     `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	Date         time.Time       `json:"date"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func toTransactionResponse(t ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:           t.ID,
		AccountID:    t.AccountID,
		CategoryID:   t.CategoryID,
		CategoryName: t.CategoryName,
		Kind:         t.Kind,
		Amount:       t.Amount,
		Description:  t.Description,
		Date:         t.Date,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

type categoryResponse struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Kind ledger.Kind `json:"kind"`
}

func toCategoryResponses(categories []ledger.Category) []categoryResponse {
	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryResponse{ID: c.ID, Name: c.Name, Kind: c.Kind})
	}
	return out
}

type amountResponse struct {
	Amount decimal.Decimal `json:"amount"`
}

type summaryResponse struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
	Total   decimal.Decimal `json:"total"`
}

type monthlyResponse struct {
	Year    int             `json:"year"`
	Month   int             `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// parseDate accepts a calendar date or a full RFC3339 timestamp.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC3339")
	}
	return t.UTC(), nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(raw))
}
