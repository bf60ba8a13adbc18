package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		handler        http.HandlerFunc
		name           string
		expectedBody   string
		expectedStatus int
	}{
		{
			name: "Normal handler without panic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("success"))
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "success",
		},
		{
			name: "Handler with panic (string)",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic("something went wrong")
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   panicBody,
		},
		{
			name: "Handler with panic (custom type)",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic(struct{ msg string }{"critical error"})
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   panicBody,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Recovery(logger)(tt.handler)

			req := httptest.NewRequest(http.MethodPost, "/ipc/user:login", nil)
			w := httptest.NewRecorder()

			assert.NotPanics(t, func() {
				handler.ServeHTTP(w, req)
			})

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestRecovery_LogsStack(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodPost, "/ipc/user:login", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	logs := logBuf.String()
	assert.Contains(t, logs, "panic recovered")
	assert.Contains(t, logs, "boom")
	assert.Contains(t, logs, "stack=")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestRecovery_AbortHandlerIsRepanicked(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	assert.Panics(t, func() {
		handler.ServeHTTP(w, req)
	})
}
