package accounts

import (
	"context"
	"sort"
	"sync"
	"time"

	"claimdesk.org/internal/auth"
)

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*Account
}

// NewInMemory creates an empty account store.
func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[int64]*Account)}
}

var _ Store = (*InMemory)(nil)

func (s *InMemory) CreateAccount(ctx context.Context, in NewAccount) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(in.Name, 0) {
		return Account{}, ErrConflict
	}
	role := in.Role
	if len(s.byID) == 0 {
		role = auth.RoleIT
	}
	s.nextID++
	acc := &Account{
		ID:           s.nextID,
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	s.byID[acc.ID] = acc
	return *acc, nil
}

func (s *InMemory) FindAccount(ctx context.Context, id int64) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return *acc, nil
}

func (s *InMemory) FindAccountByName(ctx context.Context, name string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, acc := range s.byID {
		if acc.Name == name {
			return *acc, nil
		}
	}
	return Account{}, ErrNotFound
}

func (s *InMemory) ListAccounts(ctx context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.byID))
	for _, acc := range s.byID {
		out = append(out, *acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) UpdateAccount(ctx context.Context, id int64, upd Update) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byID[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	if upd.Name != nil && s.nameTaken(*upd.Name, id) {
		return Account{}, ErrConflict
	}
	if upd.Name != nil {
		acc.Name = *upd.Name
	}
	if upd.PasswordHash != nil {
		acc.PasswordHash = *upd.PasswordHash
	}
	if upd.Role != nil {
		acc.Role = *upd.Role
	}
	return *acc, nil
}

func (s *InMemory) DeleteAccount(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *InMemory) AccountStats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, acc := range s.byID {
		st.Total++
		switch acc.Role {
		case auth.RoleIT:
			st.IT++
		case auth.RoleAdmin:
			st.Admin++
		case auth.RoleClient:
			st.Client++
		}
	}
	return st, nil
}

// nameTaken must be called with s.mu held.
func (s *InMemory) nameTaken(name string, except int64) bool {
	for id, acc := range s.byID {
		if id != except && acc.Name == name {
			return true
		}
	}
	return false
}

// OwnerName returns the display name of account id.
func (s *InMemory) OwnerName(ctx context.Context, id int64) (string, bool) {
	acc, err := s.FindAccount(ctx, id)
	if err != nil {
		return "", false
	}
	return acc.Name, true
}
