package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogging(t *testing.T) {
	tests := []struct {
		handler        http.HandlerFunc
		name           string
		method         string
		path           string
		expectedLevel  string
		expectedStatus int
	}{
		{
			name:   "POST request with 200 OK",
			method: http.MethodPost,
			path:   "/ipc/user:login",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"success":true}`))
			},
			expectedStatus: http.StatusOK,
			expectedLevel:  "level=INFO",
		},
		{
			name:   "Request with 404 Not Found",
			method: http.MethodGet,
			path:   "/nonexistent",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedLevel:  "level=WARN",
		},
		{
			name:   "Request with 500",
			method: http.MethodPost,
			path:   "/ipc/user:login",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			expectedStatus: http.StatusInternalServerError,
			expectedLevel:  "level=ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logBuf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logBuf, nil))

			handler := Logging(logger)(tt.handler)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			logs := logBuf.String()
			assert.Contains(t, logs, tt.expectedLevel)
			assert.Contains(t, logs, "HTTP request")
			assert.Contains(t, logs, "path="+tt.path)
			assert.Contains(t, logs, "duration_ms=")
		})
	}
}

func TestLogging_DoesNotLogBody(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	body := strings.NewReader(`{"username":"alice","password":"TopSecret"}`)
	req := httptest.NewRequest(http.MethodPost, "/ipc/user:login", body)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotContains(t, logBuf.String(), "TopSecret")
}

func TestLogging_SkipPaths(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	handler := Logging(logger, "/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, logBuf.String())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/ipc/user:login", nil))
	assert.Contains(t, logBuf.String(), "HTTP request")
}
