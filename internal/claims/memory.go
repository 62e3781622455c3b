package claims

import (
	"context"
	"sort"
	"sync"
	"time"
)

// OwnerNames resolves account display names for ListClaims.
type OwnerNames interface {
	OwnerName(ctx context.Context, id int64) (string, bool)
}

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu     sync.RWMutex
	nextID int64
	claims map[int64]*Claim
	names  OwnerNames
}

// NewInMemory creates an empty claim store. names may be nil.
func NewInMemory(names OwnerNames) *InMemory {
	return &InMemory{claims: make(map[int64]*Claim), names: names}
}

var _ Store = (*InMemory)(nil)

func (s *InMemory) CreateClaim(ctx context.Context, f Fields, owner int64) (Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c := &Claim{
		ID:           s.nextID,
		Code:         f.Code,
		Amount:       f.Amount,
		HospitalName: f.HospitalName,
		PatientName:  f.PatientName,
		DateOfClaim:  f.DateOfClaim,
		SubmittedBy:  owner,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	s.claims[c.ID] = c
	return copyClaim(c), nil
}

func (s *InMemory) FindClaim(ctx context.Context, id int64) (Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[id]
	if !ok {
		return Claim{}, ErrClaimNotFound
	}
	return copyClaim(c), nil
}

func (s *InMemory) ListClaims(ctx context.Context) ([]Claim, error) {
	s.mu.RLock()
	out := make([]Claim, 0, len(s.claims))
	for _, c := range s.claims {
		out = append(out, copyClaim(c))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if s.names != nil {
		for i := range out {
			if name, ok := s.names.OwnerName(ctx, out[i].SubmittedBy); ok {
				out[i].SubmitterName = name
			}
		}
	}
	return out, nil
}

func (s *InMemory) ListClaimsByOwner(ctx context.Context, owner int64) ([]Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Claim, 0)
	for _, c := range s.claims {
		if c.SubmittedBy == owner {
			out = append(out, copyClaim(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) SetClaimStatus(ctx context.Context, id int64, to, expected Status, at time.Time) (Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[id]
	if !ok {
		return Claim{}, ErrClaimNotFound
	}
	if expected != "" && c.Status != expected {
		return Claim{}, ErrStatusConflict
	}
	if c.UpdatedAt != nil && at.Before(*c.UpdatedAt) {
		at = *c.UpdatedAt
	}
	c.Status = to
	c.UpdatedAt = &at
	return copyClaim(c), nil
}

func (s *InMemory) ClaimStats(ctx context.Context, scope Scope) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, c := range s.claims {
		if !scope.Global() && c.SubmittedBy != scope.Owner {
			continue
		}
		st.Add(c.Status, 1)
	}
	return st, nil
}

func copyClaim(c *Claim) Claim {
	out := *c
	if c.UpdatedAt != nil {
		t := *c.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}
