package auth

import (
	"errors"
	"time"

	"github.com/pocketledger/pocketledger/internal/ledger"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// ErrWeakPassword rejects passwords shorter than MinPasswordLength.
var ErrWeakPassword = errors.New("auth: password too short")

// Profile is the public view of a registered user.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func profileOf(u ledger.User) Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt}
}

// Token is returned by a successful login.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        Profile   `json:"user"`
}
