package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

const defaultMaxBody = 1 << 20

// statusClientClosed is the nginx convention for a request the client
// abandoned before a response was ready.
const statusClientClosed = 499

// Error kinds reported in the "error" field of failure bodies.
const (
	kindMissingToken    = "missing_token"
	kindInvalidToken    = "invalid_token"
	kindForbiddenRole   = "forbidden_role"
	kindWrongSecret     = "wrong_secret"
	kindNotFound        = "not_found"
	kindConflict        = "conflict"
	kindMissingFields   = "missing_fields"
	kindInvalidUserType = "invalid_user_type"
	kindInvalidInput    = "invalid_input"
	kindStorage         = "storage_error"
	kindRateLimited     = "rate_limited"
	kindUpstream        = "upstream_error"
	kindUnavailable     = "unavailable"
	kindMethod          = "method_not_allowed"
	kindCanceled        = "client_closed_request"
)

type errorBody struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOK merges payload into a {"success": true} body.
func writeOK(w http.ResponseWriter, code int, payload map[string]any) {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	writeJSON(w, code, body)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, kind, msg string) {
	writeJSON(w, code, errorBody{
		Success:   false,
		Message:   msg,
		Error:     kind,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, kindNotFound, "resource not found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, kindMethod, "method not allowed")
}

// decodeJSON reads exactly one JSON value. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, defaultMaxBody)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// hasBody reports whether the request carries a non-empty body.
func hasBody(r *http.Request) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return false
	}
	if r.ContentLength > 0 {
		return true
	}
	return r.ContentLength < 0 && strings.Contains(r.Header.Get("Content-Type"), "json")
}
