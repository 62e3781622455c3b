package httpapi

import (
	"errors"
	"net/http"
	"time"

	"claimdesk.org/internal/accounts"
	"claimdesk.org/internal/audit"
	"claimdesk.org/internal/auth"
	"claimdesk.org/internal/obs"
)

type loginRequest struct {
	Name     string `json:"user_name"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"user_name"`
	Password string `json:"password"`
	Role     string `json:"user_type"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, kindInvalidInput, err.Error())
		return
	}

	res, err := a.accounts.Login(r.Context(), req.Name, req.Password)
	if err != nil {
		result := "error"
		switch {
		case errors.Is(err, accounts.ErrNotFound):
			result = "not_found"
		case errors.Is(err, auth.ErrWrongSecret):
			result = "wrong_secret"
		case errors.Is(err, accounts.ErrMissingFields):
			result = "invalid"
		}
		obs.RecordLogin(result)
		_ = audit.LogEvent(r.Context(), audit.LoginFailed, map[string]any{
			"user_name": req.Name,
			"reason":    result,
		})
		handleAccountError(w, r, err)
		return
	}

	obs.RecordLogin("ok")
	ctx := auth.ContextWithIdentity(r.Context(), auth.Identity{ID: res.ID, Name: res.Name, Role: res.Role})
	_ = audit.LogEvent(ctx, audit.LoginSucceeded, map[string]any{
		"expires_at": res.ExpiresAt.Format(time.RFC3339),
	})
	writeOK(w, http.StatusOK, map[string]any{
		"message":    "Login successful",
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
		"id":         res.ID,
		"user_name":  res.Name,
		"user_type":  res.Role,
	})
}

// register is open until the first account exists; afterwards only IT may
// create accounts.
func (a *API) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bootstrapped, err := a.accounts.Bootstrapped(ctx)
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	if bootstrapped {
		id, err := a.guard.Authenticate(r.Header.Get(authHeader))
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		if err := a.guard.Authorize(id, auth.ITOnly); err != nil {
			handleAuthError(w, r, err)
			return
		}
		ctx = auth.ContextWithIdentity(ctx, id)
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, kindInvalidInput, err.Error())
		return
	}
	acc, err := a.accounts.Register(ctx, accounts.RegisterInput{
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	_ = audit.LogEvent(ctx, audit.AccountRegistered, map[string]any{
		"account_id": acc.ID,
		"user_name":  acc.Name,
		"user_type":  string(acc.Role),
		"bootstrap":  !bootstrapped,
	})
	writeOK(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    acc,
	})
}
