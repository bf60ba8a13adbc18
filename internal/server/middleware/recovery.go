package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// panicBody совпадает с форматом ответа IPC: клиент всегда получает envelope
const panicBody = `{"success":false,"message":"server error"}`

// Recovery создает middleware для восстановления после паники.
// Перехватывает panic, логирует стек вызовов и возвращает 500 с envelope "server error".
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					// http.ErrAbortHandler прерывает ответ намеренно
					if err == http.ErrAbortHandler {
						panic(err)
					}

					logger.ErrorContext(r.Context(), "panic recovered",
						slog.Any("error", err),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())),
					)

					// Не раскрываем детали клиенту
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(panicBody))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
