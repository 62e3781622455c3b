package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"claimdesk.org/internal/accounts"
	"claimdesk.org/internal/audit"
	"claimdesk.org/internal/auth"
	"claimdesk.org/internal/store"
)

type updateUserRequest struct {
	Name     *string `json:"user_name"`
	Password *string `json:"password"`
	Role     *string `json:"user_type"`
}

func (a *API) accountStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.accounts.Stats(r.Context())
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"total_users":  st.Total,
		"total_it":     st.IT,
		"total_admin":  st.Admin,
		"total_client": st.Client,
	})
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := a.accounts.List(r.Context())
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"users": list})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	acc, err := a.accounts.Get(r.Context(), id)
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"user": acc})
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, kindInvalidInput, err.Error())
		return
	}
	acc, err := a.accounts.Update(r.Context(), id, accounts.UpdateInput{
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.AccountUpdated, map[string]any{
		"account_id":       acc.ID,
		"password_changed": req.Password != nil,
		"user_type":        string(acc.Role),
	})
	writeOK(w, http.StatusOK, map[string]any{
		"message": "User updated successfully",
		"user":    acc,
	})
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if caller, ok := auth.IdentityFromContext(r.Context()); ok && caller.ID == id {
		writeError(w, r, http.StatusConflict, kindConflict, "cannot delete your own account")
		return
	}
	if err := a.accounts.Delete(r.Context(), id); err != nil {
		handleAccountError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.AccountDeleted, map[string]any{"account_id": id})
	writeOK(w, http.StatusOK, map[string]any{"message": "User deleted successfully"})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, kindInvalidInput, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func handleAccountError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, accounts.ErrMissingFields):
		writeError(w, r, http.StatusBadRequest, kindMissingFields, "Missing required fields")
	case errors.Is(err, accounts.ErrInvalidUserType):
		writeError(w, r, http.StatusBadRequest, kindInvalidUserType, "Invalid user type")
	case errors.Is(err, accounts.ErrNotFound):
		writeError(w, r, http.StatusNotFound, kindNotFound, "User not found")
	case errors.Is(err, accounts.ErrConflict):
		writeError(w, r, http.StatusConflict, kindConflict, "User name already taken")
	case errors.Is(err, auth.ErrWrongSecret):
		writeError(w, r, http.StatusUnauthorized, kindWrongSecret, "Incorrect password")
	case errors.Is(err, store.ErrInvalidData):
		writeError(w, r, http.StatusBadRequest, kindInvalidInput, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, kindStorage, "Server error")
	}
}
