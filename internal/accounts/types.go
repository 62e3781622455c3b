package accounts

import (
	"context"
	"errors"
	"time"

	"claimdesk.org/internal/auth"
)

var (
	ErrNotFound        = errors.New("account not found")
	ErrConflict        = errors.New("account name already taken")
	ErrMissingFields   = errors.New("missing required fields")
	ErrInvalidUserType = errors.New("invalid user type")
)

// Account is a credentialed identity with exactly one role.
type Account struct {
	ID           int64     `json:"id"`
	Name         string    `json:"user_name"`
	PasswordHash string    `json:"-"`
	Role         auth.Role `json:"user_type"`
	CreatedAt    time.Time `json:"date_created"`
}

// Identity is the token-facing view of the account.
func (a Account) Identity() auth.Identity {
	return auth.Identity{ID: a.ID, Name: a.Name, Role: a.Role}
}

// NewAccount is the insert payload handed to a Store.
type NewAccount struct {
	Name         string
	PasswordHash string
	Role         auth.Role
}

// Update carries optional column changes; nil fields are left untouched.
type Update struct {
	Name         *string
	PasswordHash *string
	Role         *auth.Role
}

func (u Update) empty() bool {
	return u.Name == nil && u.PasswordHash == nil && u.Role == nil
}

// Stats counts accounts per role.
type Stats struct {
	Total  int `json:"total_users"`
	IT     int `json:"total_it"`
	Admin  int `json:"total_admin"`
	Client int `json:"total_client"`
}

// Store persists accounts. Create must force RoleIT when the store holds no
// account yet, and must do so atomically with the insert.
type Store interface {
	CreateAccount(ctx context.Context, acc NewAccount) (Account, error)
	FindAccount(ctx context.Context, id int64) (Account, error)
	FindAccountByName(ctx context.Context, name string) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	UpdateAccount(ctx context.Context, id int64, upd Update) (Account, error)
	DeleteAccount(ctx context.Context, id int64) error
	AccountStats(ctx context.Context) (Stats, error)
}
