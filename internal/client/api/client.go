// Package api calls DailyUse operations either in-process or through a
// running local server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/dailyuse/internal/ipc"
)

// Response is an operation envelope with undecoded data
type Response struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message"`
	Success bool            `json:"success"`
}

// OperationError is returned by Call when the operation reports failure
type OperationError struct {
	Op      string
	Message string
}

func (e *OperationError) Error() string {
	return e.Message
}

// Caller выполняет одну операцию и возвращает конверт ответа
type Caller interface {
	Do(ctx context.Context, op string, args any) (*Response, error)
}

// Call runs op and decodes the envelope data into result (may be nil).
// A failed operation is returned as *OperationError.
func Call(ctx context.Context, c Caller, op string, args, result any) error {
	resp, err := c.Do(ctx, op, args)
	if err != nil {
		return err
	}

	if !resp.Success {
		return &OperationError{Op: op, Message: resp.Message}
	}

	if result != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, result); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", op, err)
		}
	}

	return nil
}

// Dispatcher выполняет операции в текущем процессе
type Dispatcher interface {
	Dispatch(ctx context.Context, op string, args json.RawMessage) ipc.Envelope
}

// Local calls the dispatcher directly
type Local struct {
	dispatcher Dispatcher
}

// NewLocal creates a caller bound to an in-process dispatcher
func NewLocal(d Dispatcher) *Local {
	return &Local{dispatcher: d}
}

func (l *Local) Do(ctx context.Context, op string, args any) (*Response, error) {
	raw, err := marshalArgs(args)
	if err != nil {
		return nil, err
	}

	env := l.dispatcher.Dispatch(ctx, op, raw)

	// Данные проходят через JSON так же, как через HTTP
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// Client представляет HTTP клиент локального сервера
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Do(ctx context.Context, op string, args any) (*Response, error) {
	raw, err := marshalArgs(args)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		raw = json.RawMessage("{}")
	}

	var resp Response
	if err := c.doRequest(ctx, http.MethodPost, "/ipc/"+url.PathEscape(op), raw, &resp); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	return &resp, nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodGet, "/health", nil, nil)
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	// Неуспешные операции приходят с 200, остальные коды - ошибки транспорта
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp Response
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func marshalArgs(args any) (json.RawMessage, error) {
	if args == nil {
		return nil, nil
	}
	if raw, ok := args.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal arguments: %w", err)
	}
	return raw, nil
}

// IsOperationError reports whether err is a failed operation whose message
// matches target. Domain errors cross the transport as messages only.
func IsOperationError(err error, target error) bool {
	var opErr *OperationError
	return errors.As(err, &opErr) && opErr.Message == target.Error()
}
