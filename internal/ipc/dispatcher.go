package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ServerErrorMessage is shown for any failure that is not a known domain error.
const ServerErrorMessage = "server error"

var (
	// ErrUnknownOperation is returned for an operation name without a handler
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrInvalidArgs is returned when arguments cannot be decoded
	ErrInvalidArgs = errors.New("invalid arguments")
)

// Envelope is the result of every operation.
type Envelope struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// Handler выполняет операцию над JSON аргументами
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Middleware оборачивает обработчик операции op
type Middleware func(op string, next Handler) Handler

type operation struct {
	handler Handler
	message string
}

// Dispatcher сопоставляет имена операций обработчикам и упаковывает результат в Envelope
type Dispatcher struct {
	logger     *slog.Logger
	operations map[string]operation
	messages   func(err error) (string, bool)
	middleware []Middleware
	mu         sync.RWMutex
}

// NewDispatcher creates a dispatcher. Middleware is applied in the given order,
// the first one being the outermost.
func NewDispatcher(logger *slog.Logger, middleware ...Middleware) *Dispatcher {
	return &Dispatcher{
		logger:     logger,
		operations: make(map[string]operation),
		messages:   DomainMessage,
		middleware: middleware,
	}
}

// Register регистрирует обработчик; message возвращается клиенту при успехе
func (d *Dispatcher) Register(op, message string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.operations[op]; exists {
		panic(fmt.Sprintf("ipc: operation %q registered twice", op))
	}

	// Оборачиваем в middleware с конца, чтобы первый был внешним
	wrapped := handler
	for i := len(d.middleware) - 1; i >= 0; i-- {
		wrapped = d.middleware[i](op, wrapped)
	}

	d.operations[op] = operation{handler: wrapped, message: message}
}

// Operations returns registered operation names in sorted order
func (d *Dispatcher) Operations() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.operations))
	for name := range d.operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch выполняет операцию и никогда не возвращает ошибку:
// любой сбой превращается в Envelope с Success=false
func (d *Dispatcher) Dispatch(ctx context.Context, op string, args json.RawMessage) Envelope {
	d.mu.RLock()
	operation, ok := d.operations[op]
	d.mu.RUnlock()

	if !ok {
		return Envelope{Message: ErrUnknownOperation.Error()}
	}

	data, err := operation.handler(ctx, args)
	if err != nil {
		message, known := d.messages(err)
		if !known {
			d.logger.ErrorContext(ctx, "operation failed",
				slog.String("op", op),
				slog.Any("error", err),
			)
		}
		return Envelope{Message: message}
	}

	return Envelope{Success: true, Message: operation.message, Data: data}
}
