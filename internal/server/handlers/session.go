package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// SessionHandler отдает сессию владельца токена
type SessionHandler struct {
	logger *slog.Logger
}

func NewSessionHandler(logger *slog.Logger) *SessionHandler {
	return &SessionHandler{logger: logger}
}

// Current writes the session put into the context by the auth middleware
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(session); err != nil {
		h.logger.Error("failed to encode session response", slog.Any("error", err))
	}
}
