package claims

import (
	"context"
	"errors"
	"time"
)

// EventType names what happened to a claim.
type EventType string

const (
	EventSubmitted    EventType = "claim.submitted"
	EventTransitioned EventType = "claim.transitioned"
)

// Event is published after a claim is created or changes status.
type Event struct {
	Type      EventType `json:"type"`
	ClaimID   int64     `json:"claim_id"`
	Owner     int64     `json:"submitted_by"`
	From      Status    `json:"from,omitempty"`
	Status    Status    `json:"claim_status"`
	Action    Action    `json:"action,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher receives claim events. Publish must not block.
type Publisher interface {
	Publish(Event)
}

// TransitionOptions tunes a single transition.
type TransitionOptions struct {
	// Expected, when set, makes the update conditional on the claim still
	// being in this status.
	Expected Status
}

// Service is the claim registry.
type Service struct {
	store     Store
	workflow  Workflow
	publisher Publisher
	now       func() time.Time
}

// Option configures Service.
type Option func(*Service)

// WithWorkflow replaces the default flat workflow.
func WithWorkflow(w Workflow) Option {
	return func(s *Service) {
		if w.edges != nil {
			s.workflow = w
		}
	}
}

// WithPublisher sets the sink for claim events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("claim store is required")
	}
	s := &Service{
		store:    store,
		workflow: FlatWorkflow(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Workflow() Workflow { return s.workflow }

// Create stores a new Pending claim owned by owner.
func (s *Service) Create(ctx context.Context, f Fields, owner int64) (Claim, error) {
	if owner <= 0 || f.empty() {
		return Claim{}, ErrMissingFields
	}
	c, err := s.store.CreateClaim(ctx, f, owner)
	if err != nil {
		return Claim{}, err
	}
	s.publish(Event{
		Type:      EventSubmitted,
		ClaimID:   c.ID,
		Owner:     c.SubmittedBy,
		Status:    c.Status,
		Timestamp: c.CreatedAt,
	})
	return c, nil
}

func (s *Service) ListAll(ctx context.Context) ([]Claim, error) {
	return s.store.ListClaims(ctx)
}

func (s *Service) ListByOwner(ctx context.Context, owner int64) ([]Claim, error) {
	return s.store.ListClaimsByOwner(ctx, owner)
}

// Transition applies action to the claim. Under the flat workflow without an
// expected status this is a single unconditional write (last writer wins).
func (s *Service) Transition(ctx context.Context, id int64, action Action, opts TransitionOptions) (Claim, error) {
	target := action.Target()
	if target == "" {
		return Claim{}, ErrInvalidAction
	}

	expected := opts.Expected
	from := expected
	if !s.workflow.unconditional() {
		cur, err := s.store.FindClaim(ctx, id)
		if err != nil {
			return Claim{}, err
		}
		if expected != "" && cur.Status != expected {
			return Claim{}, ErrStatusConflict
		}
		if !s.workflow.Allows(cur.Status, target) {
			return Claim{}, ErrTransitionNotAllowed
		}
		expected = cur.Status
		from = cur.Status
	}

	c, err := s.store.SetClaimStatus(ctx, id, target, expected, s.now().UTC())
	if err != nil {
		return Claim{}, err
	}
	s.publish(Event{
		Type:      EventTransitioned,
		ClaimID:   c.ID,
		Owner:     c.SubmittedBy,
		From:      from,
		Status:    c.Status,
		Action:    action,
		Timestamp: s.now().UTC(),
	})
	return c, nil
}

// Stats counts claims per status within scope.
func (s *Service) Stats(ctx context.Context, scope Scope) (Stats, error) {
	return s.store.ClaimStats(ctx, scope)
}

func (s *Service) publish(evt Event) {
	if s.publisher != nil {
		s.publisher.Publish(evt)
	}
}
