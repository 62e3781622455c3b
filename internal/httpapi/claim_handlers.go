package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"claimdesk.org/internal/audit"
	"claimdesk.org/internal/auth"
	"claimdesk.org/internal/claims"
	"claimdesk.org/internal/claimview"
	"claimdesk.org/internal/obs"
	"claimdesk.org/internal/store"
)

// looseString accepts a JSON string or number; forms post amounts either way.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("expected string or number")
	}
	*s = looseString(n.String())
	return nil
}

type submitClaimRequest struct {
	Code         looseString `json:"claim_code"`
	Amount       looseString `json:"claim_amount"`
	HospitalName looseString `json:"hospital_name"`
	PatientName  looseString `json:"patient_name"`
	DateOfClaim  looseString `json:"date_of_claim"`
	// Ignored: the owner is always the authenticated caller.
	SubmittedBy json.RawMessage `json:"submitted_by,omitempty"`
}

type transitionRequest struct {
	Expected string `json:"expected_status"`
}

func (a *API) submitClaim(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())

	var req submitClaimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, kindInvalidInput, err.Error())
		return
	}
	c, err := a.claims.Create(r.Context(), claims.Fields{
		Code:         string(req.Code),
		Amount:       string(req.Amount),
		HospitalName: string(req.HospitalName),
		PatientName:  string(req.PatientName),
		DateOfClaim:  string(req.DateOfClaim),
	}, id.ID)
	if err != nil {
		handleClaimError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.ClaimSubmitted, map[string]any{
		"claim_id":   c.ID,
		"claim_code": c.Code,
	})
	writeOK(w, http.StatusCreated, map[string]any{
		"message": "Claim submitted successfully",
		"claim":   c,
	})
}

func (a *API) myClaims(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	list, err := a.claims.ListByOwner(r.Context(), id.ID)
	if err != nil {
		handleClaimError(w, r, err)
		return
	}
	a.writeClaims(w, r, list)
}

func (a *API) listClaims(w http.ResponseWriter, r *http.Request) {
	list, err := a.claims.ListAll(r.Context())
	if err != nil {
		handleClaimError(w, r, err)
		return
	}
	a.writeClaims(w, r, list)
}

func (a *API) writeClaims(w http.ResponseWriter, r *http.Request, list []claims.Claim) {
	view := claimview.ProjectClaims(list, claimview.ParseQuery(r.URL.Query()))
	if view == nil {
		view = []claims.Claim{}
	}
	writeOK(w, http.StatusOK, map[string]any{
		"claims": view,
		"count":  len(view),
	})
}

func (a *API) clientStats(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	a.writeClaimStats(w, r, claims.OwnerScope(id.ID))
}

func (a *API) claimStats(w http.ResponseWriter, r *http.Request) {
	a.writeClaimStats(w, r, claims.Scope{})
}

func (a *API) writeClaimStats(w http.ResponseWriter, r *http.Request, scope claims.Scope) {
	st, err := a.claims.Stats(r.Context(), scope)
	if err != nil {
		handleClaimError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"pending":  st.Pending,
		"approved": st.Approved,
		"denied":   st.Denied,
		"resubmit": st.Resubmit,
		"total":    st.Total,
	})
}

// transitionClaim applies PUT /admin2/claims/{id}/{action}. An optional
// expected_status (query or JSON body) makes the write conditional.
func (a *API) transitionClaim(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, kindInvalidInput, "claim id must be a positive integer")
		return
	}
	action, err := claims.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		obs.RecordClaimTransition("unknown", "invalid_action")
		handleClaimError(w, r, err)
		return
	}

	rawExpected := r.URL.Query().Get("expected_status")
	if rawExpected == "" && hasBody(r) {
		var req transitionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, kindInvalidInput, err.Error())
			return
		}
		rawExpected = req.Expected
	}
	var opts claims.TransitionOptions
	if rawExpected != "" {
		st, ok := claims.ParseStatus(rawExpected)
		if !ok {
			writeError(w, r, http.StatusBadRequest, kindInvalidInput, "unknown expected_status")
			return
		}
		opts.Expected = st
	}

	c, err := a.claims.Transition(r.Context(), id, action, opts)
	if err != nil {
		obs.RecordClaimTransition(string(action), transitionResult(err))
		handleClaimError(w, r, err)
		return
	}
	obs.RecordClaimTransition(string(action), "ok")
	_ = audit.LogEvent(r.Context(), audit.ClaimTransitioned, map[string]any{
		"claim_id":     c.ID,
		"action":       string(action),
		"claim_status": string(c.Status),
	})
	writeOK(w, http.StatusOK, map[string]any{
		"message": "Claim " + string(c.Status) + " successfully",
		"claim":   c,
	})
}

func transitionResult(err error) string {
	switch {
	case errors.Is(err, claims.ErrClaimNotFound):
		return "not_found"
	case errors.Is(err, claims.ErrStatusConflict), errors.Is(err, claims.ErrTransitionNotAllowed):
		return "conflict"
	default:
		return "error"
	}
}

func handleClaimError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, claims.ErrMissingFields):
		writeError(w, r, http.StatusBadRequest, kindMissingFields, "Missing required fields")
	case errors.Is(err, claims.ErrInvalidAction):
		writeError(w, r, http.StatusBadRequest, kindInvalidInput, "Invalid action")
	case errors.Is(err, claims.ErrClaimNotFound):
		writeError(w, r, http.StatusNotFound, kindNotFound, "Claim not found")
	case errors.Is(err, claims.ErrStatusConflict):
		writeError(w, r, http.StatusConflict, kindConflict, "Claim status changed; reload and retry")
	case errors.Is(err, claims.ErrTransitionNotAllowed):
		writeError(w, r, http.StatusConflict, kindConflict, "Transition not allowed from current status")
	case errors.Is(err, store.ErrInvalidData):
		writeError(w, r, http.StatusBadRequest, kindInvalidInput, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, kindStorage, "Server error")
	}
}
