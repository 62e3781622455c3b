package httpapi

import (
	"errors"
	"net/http"

	"claimdesk.org/internal/auth"
)

const authHeader = "Authorization"

func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.serveAuthenticated(w, r, r.Header.Get(authHeader), next)
	})
}

// authenticateQuery also accepts ?access_token= when no header is present.
func (a *API) authenticateQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(authHeader)
		if header == "" {
			if tok := r.URL.Query().Get("access_token"); tok != "" {
				header = "Bearer " + tok
			}
		}
		a.serveAuthenticated(w, r, header, next)
	})
}

func (a *API) serveAuthenticated(w http.ResponseWriter, r *http.Request, header string, next http.Handler) {
	id, err := a.guard.Authenticate(header)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
}

// requireRoles is the authorization stage; it expects authenticate upstream.
func (a *API) requireRoles(allowed auth.RoleSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				handleAuthError(w, r, auth.ErrMissingToken)
				return
			}
			if err := a.guard.Authorize(id, allowed); err != nil {
				handleAuthError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		writeError(w, r, http.StatusUnauthorized, kindMissingToken, "Missing token")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, kindInvalidToken, "Invalid or expired token")
	case errors.Is(err, auth.ErrForbiddenRole):
		writeError(w, r, http.StatusForbidden, kindForbiddenRole, "Access denied for this role")
	case errors.Is(err, auth.ErrWrongSecret):
		writeError(w, r, http.StatusUnauthorized, kindWrongSecret, "Incorrect password")
	default:
		writeError(w, r, http.StatusInternalServerError, kindStorage, "authentication error")
	}
}
