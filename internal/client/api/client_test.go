package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/dailyuse/internal/ipc"
)

func testDispatcher() *ipc.Dispatcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := ipc.NewDispatcher(logger)
	d.Register("test:echo", "echoed", func(ctx context.Context, args json.RawMessage) (any, error) {
		var v map[string]string
		if err := json.Unmarshal(args, &v); err != nil {
			return nil, ipc.ErrInvalidArgs
		}
		return v, nil
	})
	d.Register("test:fail", "never", func(ctx context.Context, args json.RawMessage) (any, error) {
		return nil, errors.New("disk on fire")
	})
	return d
}

func TestNewClient(t *testing.T) {
	baseURL := "http://127.0.0.1:7420"
	client := NewClient(baseURL)

	assert.NotNil(t, client)
	assert.Equal(t, baseURL, client.baseURL)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}

func TestCall_Local(t *testing.T) {
	caller := NewLocal(testDispatcher())
	ctx := context.Background()

	t.Run("decodes data", func(t *testing.T) {
		var out map[string]string
		err := Call(ctx, caller, "test:echo", map[string]string{"a": "b"}, &out)
		require.NoError(t, err)
		assert.Equal(t, "b", out["a"])
	})

	t.Run("raw arguments", func(t *testing.T) {
		var out map[string]string
		err := Call(ctx, caller, "test:echo", json.RawMessage(`{"x":"y"}`), &out)
		require.NoError(t, err)
		assert.Equal(t, "y", out["x"])
	})

	t.Run("failed operation", func(t *testing.T) {
		err := Call(ctx, caller, "test:fail", nil, nil)

		var opErr *OperationError
		require.ErrorAs(t, err, &opErr)
		assert.Equal(t, "test:fail", opErr.Op)
		assert.Equal(t, ipc.ServerErrorMessage, opErr.Message)
	})

	t.Run("unknown operation", func(t *testing.T) {
		err := Call(ctx, caller, "test:missing", nil, nil)

		var opErr *OperationError
		require.ErrorAs(t, err, &opErr)
		assert.Equal(t, ipc.ErrUnknownOperation.Error(), opErr.Message)
	})

	t.Run("unmarshalable arguments", func(t *testing.T) {
		err := Call(ctx, caller, "test:echo", func() {}, nil)
		assert.Error(t, err)
	})
}

func TestCall_HTTP(t *testing.T) {
	d := testDispatcher()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /ipc/{op}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(d.Dispatch(r.Context(), r.PathValue("op"), body))
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))

	var out map[string]string
	require.NoError(t, Call(ctx, client, "test:echo", map[string]string{"a": "b"}, &out))
	assert.Equal(t, "b", out["a"])

	err := Call(ctx, client, "test:fail", nil, nil)
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, ipc.ServerErrorMessage, opErr.Message)
}

func TestClient_TransportErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		errContains string
	}{
		{
			name:        "envelope with message",
			status:      http.StatusRequestEntityTooLarge,
			body:        `{"success":false,"message":"request body too large"}`,
			errContains: "server error (413): request body too large",
		},
		{
			name:        "plain text body",
			status:      http.StatusMethodNotAllowed,
			body:        "method not allowed",
			errContains: "request failed with status 405",
		},
		{
			name:        "invalid json on success",
			status:      http.StatusOK,
			body:        "not json",
			errContains: "failed to decode response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL)
			_, err := client.Do(context.Background(), "user:login", nil)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestClient_ServerUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(url)
	assert.Error(t, client.Health(context.Background()))
}
