package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"claimdesk.org/internal/auth"
)

// RegisterInput is the raw registration request.
type RegisterInput struct {
	Name     string
	Password string
	Role     string
}

// UpdateInput is the raw account edit request; nil fields stay unchanged.
type UpdateInput struct {
	Name     *string
	Password *string
	Role     *string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ID        int64     `json:"id"`
	Name      string    `json:"user_name"`
	Role      auth.Role `json:"user_type"`
}

// Service implements registration, login and account administration.
type Service struct {
	store  Store
	tokens *auth.TokenManager
}

func NewService(store Store, tokens *auth.TokenManager) (*Service, error) {
	if store == nil {
		return nil, errors.New("account store is required")
	}
	if tokens == nil {
		return nil, errors.New("token manager is required")
	}
	return &Service{store: store, tokens: tokens}, nil
}

// Register creates an account. The very first account is always IT,
// whatever role was requested.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Account, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.Password == "" || strings.TrimSpace(in.Role) == "" {
		return Account{}, ErrMissingFields
	}
	role, ok := auth.ParseRole(in.Role)
	if !ok {
		return Account{}, fmt.Errorf("%w: %q", ErrInvalidUserType, in.Role)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return Account{}, err
	}
	return s.store.CreateAccount(ctx, NewAccount{Name: name, PasswordHash: hash, Role: role})
}

// Login verifies credentials and issues a token.
func (s *Service) Login(ctx context.Context, name, password string) (LoginResult, error) {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return LoginResult{}, ErrMissingFields
	}
	acc, err := s.store.FindAccountByName(ctx, name)
	if err != nil {
		return LoginResult{}, err
	}
	if err := auth.VerifyPassword(acc.PasswordHash, password); err != nil {
		return LoginResult{}, err
	}
	token, expiresAt, err := s.tokens.Issue(acc.Identity())
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		ID:        acc.ID,
		Name:      acc.Name,
		Role:      acc.Role,
	}, nil
}

// Bootstrapped reports whether at least one account exists.
func (s *Service) Bootstrapped(ctx context.Context) (bool, error) {
	st, err := s.store.AccountStats(ctx)
	if err != nil {
		return false, err
	}
	return st.Total > 0, nil
}

func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.store.ListAccounts(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.store.FindAccount(ctx, id)
}

// Update applies the requested changes. A new password is re-hashed.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Account, error) {
	var upd Update
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Account{}, ErrMissingFields
		}
		upd.Name = &name
	}
	if in.Password != nil {
		if *in.Password == "" {
			return Account{}, ErrMissingFields
		}
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return Account{}, err
		}
		upd.PasswordHash = &hash
	}
	if in.Role != nil {
		role, ok := auth.ParseRole(*in.Role)
		if !ok {
			return Account{}, fmt.Errorf("%w: %q", ErrInvalidUserType, *in.Role)
		}
		upd.Role = &role
	}
	if upd.empty() {
		return Account{}, ErrMissingFields
	}
	return s.store.UpdateAccount(ctx, id, upd)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteAccount(ctx, id)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.AccountStats(ctx)
}
