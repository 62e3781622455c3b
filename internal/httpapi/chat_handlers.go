package httpapi

import (
	"context"
	"errors"
	"net/http"

	"claimdesk.org/internal/chat"
	"claimdesk.org/internal/obs"
)

type chatRequest struct {
	Message string `json:"message"`
}

func (a *API) chatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, kindInvalidInput, err.Error())
		return
	}
	reply, err := a.chat.Complete(r.Context(), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			writeError(w, r, http.StatusBadRequest, kindMissingFields, "message is required")
		case errors.Is(err, chat.ErrNotConfigured):
			writeError(w, r, http.StatusServiceUnavailable, kindUnavailable, "chat is not configured")
		case errors.Is(err, context.Canceled):
			obs.Info("chat_canceled", map[string]any{
				"request_id": RequestIDFromContext(r.Context()),
			})
			writeError(w, r, statusClientClosed, kindCanceled, "client closed request")
		default:
			obs.Error("chat_upstream_failed", map[string]any{
				"request_id": RequestIDFromContext(r.Context()),
				"error":      err.Error(),
			})
			writeError(w, r, http.StatusBadGateway, kindUpstream, "Failed to get AI response")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reply": reply})
}
