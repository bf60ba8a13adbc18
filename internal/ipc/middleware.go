package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// ErrRateLimited is returned when too many attempts were made for one username
var ErrRateLimited = errors.New("too many attempts, please try again later")

// Recovery перехватывает panic в обработчике, логирует стек
// и возвращает ошибку, которая превращается в "server error"
func Recovery(logger *slog.Logger) Middleware {
	return func(op string, next Handler) Handler {
		return func(ctx context.Context, args json.RawMessage) (data any, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "panic recovered",
						slog.String("op", op),
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)
					data = nil
					err = fmt.Errorf("panic in %s: %v", op, r)
				}
			}()

			return next(ctx, args)
		}
	}
}

// Logging логирует операцию, длительность и результат.
// Аргументы НЕ логируются: в них пароли.
func Logging(logger *slog.Logger) Middleware {
	return func(op string, next Handler) Handler {
		return func(ctx context.Context, args json.RawMessage) (any, error) {
			start := time.Now()

			data, err := next(ctx, args)

			level := slog.LevelInfo
			if err != nil {
				level = slog.LevelWarn
				if _, known := DomainMessage(err); !known {
					level = slog.LevelError
				}
			}

			logger.Log(ctx, level, "ipc request",
				slog.String("request_id", uuid.NewString()),
				slog.String("op", op),
				slog.Bool("success", err == nil),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			)

			return data, err
		}
	}
}

// RateLimit ограничивает число попыток входа для операций ops по username из аргументов
func RateLimit(limiter *RateLimiter, logger *slog.Logger, ops ...string) Middleware {
	limited := make(map[string]bool, len(ops))
	for _, op := range ops {
		limited[op] = true
	}

	return func(op string, next Handler) Handler {
		if !limited[op] {
			return next
		}

		return func(ctx context.Context, args json.RawMessage) (any, error) {
			key := op + ":" + usernameOf(args)

			if !limiter.Allow(key) {
				logger.WarnContext(ctx, "rate limit exceeded", slog.String("op", op))
				return nil, ErrRateLimited
			}

			return next(ctx, args)
		}
	}
}

// usernameOf достает username из аргументов; некорректные аргументы делят один bucket
func usernameOf(args json.RawMessage) string {
	var named struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(args, &named); err != nil {
		return ""
	}
	return named.Username
}
