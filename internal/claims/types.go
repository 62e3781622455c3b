package claims

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrClaimNotFound        = errors.New("claim not found")
	ErrInvalidAction        = errors.New("invalid claim action")
	ErrTransitionNotAllowed = errors.New("claim transition not allowed")
	ErrStatusConflict       = errors.New("claim status changed concurrently")
	ErrMissingFields        = errors.New("missing claim fields")
)

// Status is the lifecycle state of a claim.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusDenied   Status = "Denied"
	StatusResubmit Status = "Resubmit"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusApproved, StatusDenied, StatusResubmit}

// ParseStatus matches a status name case-insensitively.
func ParseStatus(raw string) (Status, bool) {
	raw = strings.TrimSpace(raw)
	for _, s := range Statuses {
		if strings.EqualFold(raw, string(s)) {
			return s, true
		}
	}
	return "", false
}

// Action is an operator decision applied to a claim.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionDeny     Action = "deny"
	ActionResubmit Action = "resubmit"
)

var actionTargets = map[Action]Status{
	ActionApprove:  StatusApproved,
	ActionDeny:     StatusDenied,
	ActionResubmit: StatusResubmit,
}

// ParseAction maps a path segment to an Action.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := actionTargets[a]; !ok {
		return "", ErrInvalidAction
	}
	return a, nil
}

// Target is the status an action moves a claim to.
func (a Action) Target() Status { return actionTargets[a] }

// Claim is a submitted reimbursement record. UpdatedAt stays nil until the
// first status transition.
type Claim struct {
	ID            int64      `json:"claim_id"`
	Code          string     `json:"claim_code"`
	Amount        string     `json:"claim_amount"`
	HospitalName  string     `json:"hospital_name"`
	PatientName   string     `json:"patient_name"`
	DateOfClaim   string     `json:"date_of_claim"`
	SubmittedBy   int64      `json:"submitted_by"`
	SubmitterName string     `json:"submitter_name,omitempty"`
	Status        Status     `json:"claim_status"`
	CreatedAt     time.Time  `json:"claim_date_created"`
	UpdatedAt     *time.Time `json:"claim_date_updated"`
}

// Fields are the caller-supplied columns of a new claim. Values are stored
// verbatim; the storage layer is the only shape check.
type Fields struct {
	Code         string `json:"claim_code"`
	Amount       string `json:"claim_amount"`
	HospitalName string `json:"hospital_name"`
	PatientName  string `json:"patient_name"`
	DateOfClaim  string `json:"date_of_claim"`
}

func (f Fields) empty() bool {
	return f.Code == "" && f.Amount == "" && f.HospitalName == "" && f.PatientName == "" && f.DateOfClaim == ""
}

// Stats counts claims per status.
type Stats struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Denied   int `json:"denied"`
	Resubmit int `json:"resubmit"`
	Total    int `json:"total"`
}

// Add increments the counter for status by n.
func (s *Stats) Add(status Status, n int) {
	switch status {
	case StatusPending:
		s.Pending += n
	case StatusApproved:
		s.Approved += n
	case StatusDenied:
		s.Denied += n
	case StatusResubmit:
		s.Resubmit += n
	default:
		return
	}
	s.Total += n
}

// Scope restricts stats to one owner; the zero Scope is global.
type Scope struct {
	Owner int64
}

func OwnerScope(owner int64) Scope { return Scope{Owner: owner} }

func (s Scope) Global() bool { return s.Owner == 0 }

// Store persists claims.
type Store interface {
	CreateClaim(ctx context.Context, f Fields, owner int64) (Claim, error)
	FindClaim(ctx context.Context, id int64) (Claim, error)
	// ListClaims returns every claim newest id first, with SubmitterName set.
	ListClaims(ctx context.Context) ([]Claim, error)
	// ListClaimsByOwner returns the owner's claims newest creation first.
	ListClaimsByOwner(ctx context.Context, owner int64) ([]Claim, error)
	// SetClaimStatus updates status and updated_at in one conditional write.
	// An empty expected matches any current status; a mismatch yields
	// ErrStatusConflict, a missing row ErrClaimNotFound.
	SetClaimStatus(ctx context.Context, id int64, to, expected Status, at time.Time) (Claim, error)
	ClaimStats(ctx context.Context, scope Scope) (Stats, error)
}
