package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/iudanet/dailyuse/internal/ipc"
)

// MaxBodyBytes ограничивает размер аргументов одной операции
const MaxBodyBytes = 1 << 20

// Dispatcher выполняет именованную операцию
type Dispatcher interface {
	Dispatch(ctx context.Context, op string, args json.RawMessage) ipc.Envelope
}

// IPCHandler передает POST /ipc/{op} в dispatcher
type IPCHandler struct {
	logger     *slog.Logger
	dispatcher Dispatcher
}

// NewIPCHandler создает handler для IPC операций
func NewIPCHandler(logger *slog.Logger, dispatcher Dispatcher) *IPCHandler {
	return &IPCHandler{
		logger:     logger,
		dispatcher: dispatcher,
	}
}

// Handle обрабатывает POST /ipc/{op}. Тело запроса - JSON аргументы операции.
// Ответ всегда envelope; HTTP статус отличается от 200 только для ошибок транспорта.
func (h *IPCHandler) Handle(w http.ResponseWriter, r *http.Request) {
	op := r.PathValue("op")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeEnvelope(w, http.StatusRequestEntityTooLarge, ipc.Envelope{Message: "request body too large"})
			return
		}
		h.logger.WarnContext(r.Context(), "failed to read request body", slog.Any("error", err))
		h.writeEnvelope(w, http.StatusBadRequest, ipc.Envelope{Message: ipc.ErrInvalidArgs.Error()})
		return
	}

	if len(body) > 0 && !json.Valid(body) {
		h.writeEnvelope(w, http.StatusBadRequest, ipc.Envelope{Message: ipc.ErrInvalidArgs.Error()})
		return
	}

	env := h.dispatcher.Dispatch(r.Context(), op, body)
	h.writeEnvelope(w, http.StatusOK, env)
}

func (h *IPCHandler) writeEnvelope(w http.ResponseWriter, status int, env ipc.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}
