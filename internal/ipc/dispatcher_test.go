package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/dailyuse/internal/account"
	"github.com/iudanet/dailyuse/internal/crypto"
	"github.com/iudanet/dailyuse/internal/kvstore"
	"github.com/iudanet/dailyuse/internal/session"
	"github.com/iudanet/dailyuse/internal/storage/sqlite"
	"github.com/iudanet/dailyuse/internal/token"
)

func newTestDispatcher(t *testing.T, rate int) *Dispatcher {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	kv, err := kvstore.New(ctx, filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	issuer, err := token.NewIssuer(token.Config{Secret: []byte("test-secret"), TTL: time.Hour})
	require.NoError(t, err)

	cipher, err := crypto.NewCipherWithKey(bytes.Repeat([]byte{1}, crypto.KeyLen))
	require.NoError(t, err)

	users := account.NewService(logger, store, crypto.NewHasher(bcrypt.MinCost), issuer)
	sessions := session.NewService(logger, store, cipher, users, issuer)

	limiter := NewRateLimiter(rate, time.Minute)
	t.Cleanup(limiter.Stop)

	d := NewDispatcher(logger,
		Recovery(logger),
		Logging(logger),
		RateLimit(limiter, logger, CredentialOps...),
	)
	RegisterUserOps(d, users)
	RegisterSessionOps(d, sessions)
	RegisterStoreOps(d, kv)

	return d
}

func call(t *testing.T, d *Dispatcher, op string, args any) Envelope {
	t.Helper()

	var raw json.RawMessage
	if args != nil {
		data, err := json.Marshal(args)
		require.NoError(t, err)
		raw = data
	}

	return d.Dispatch(context.Background(), op, raw)
}

// dataJSON сериализует Data, как ее увидит клиент
func dataJSON(t *testing.T, env Envelope) string {
	t.Helper()
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	return string(data)
}

func TestDispatcher_Operations(t *testing.T) {
	d := newTestDispatcher(t, 100)

	ops := d.Operations()
	for _, op := range []string{
		OpUserRegister, OpUserLogin, OpUserGetInfo, OpUserUpdateInfo, OpUserDelete,
		OpUserUpgradeToOnline, OpUserGetAll, OpUserVerifyPassword, OpUserChangePassword,
		OpSessionSave, OpSessionQuickLogin, OpSessionCreate, OpSessionUpdate,
		OpSessionGetRememberedUsers, OpSessionValidatePassword, OpSessionGetAutoLoginInfo,
		OpSessionGetCurrent, OpSessionRemove, OpSessionLogout, OpSessionClearAll,
		OpSessionGetLoginHistory, OpSessionVerifyToken,
		OpStoreGet, OpStoreSet, OpStoreDelete, OpStoreKeys, OpStoreImport, OpStoreExport,
	} {
		assert.Contains(t, ops, op)
	}

	assert.Panics(t, func() {
		d.Register(OpUserLogin, "", func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	})
}

func TestDispatcher_UnknownOperation(t *testing.T) {
	d := newTestDispatcher(t, 100)

	env := call(t, d, "user:fly", nil)
	assert.False(t, env.Success)
	assert.Equal(t, ErrUnknownOperation.Error(), env.Message)
}

func TestDispatcher_InvalidArgs(t *testing.T) {
	d := newTestDispatcher(t, 100)

	env := d.Dispatch(context.Background(), OpUserLogin, json.RawMessage(`{"username": 42}`))
	assert.False(t, env.Success)
	assert.Equal(t, ErrInvalidArgs.Error(), env.Message)
}

func TestDispatcher_UserFlow(t *testing.T) {
	d := newTestDispatcher(t, 100)

	tests := []struct {
		args        any
		name        string
		op          string
		wantMessage string
		wantSuccess bool
	}{
		{
			name:        "password mismatch",
			op:          OpUserRegister,
			args:        map[string]string{"username": "alice", "password": "Secret1", "confirmPassword": "Secret2"},
			wantMessage: "passwords do not match",
		},
		{
			name:        "register",
			op:          OpUserRegister,
			args:        map[string]string{"username": "alice", "password": "Secret1", "confirmPassword": "Secret1"},
			wantSuccess: true,
			wantMessage: "registration successful",
		},
		{
			name:        "duplicate",
			op:          OpUserRegister,
			args:        map[string]string{"username": "alice", "password": "Secret1", "confirmPassword": "Secret1"},
			wantMessage: account.ErrUserAlreadyExists.Error(),
		},
		{
			name:        "login",
			op:          OpUserLogin,
			args:        map[string]string{"username": "alice", "password": "Secret1"},
			wantSuccess: true,
			wantMessage: "login successful",
		},
		{
			name:        "wrong password",
			op:          OpUserLogin,
			args:        map[string]string{"username": "alice", "password": "wrong"},
			wantMessage: account.ErrWrongPassword.Error(),
		},
		{
			name:        "unknown user",
			op:          OpUserGetInfo,
			args:        map[string]string{"username": "bob"},
			wantMessage: account.ErrUserNotFound.Error(),
		},
		{
			name:        "upgrade",
			op:          OpUserUpgradeToOnline,
			args:        map[string]string{"username": "alice", "onlineId": "cloud-1"},
			wantSuccess: true,
			wantMessage: "account upgraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := call(t, d, tt.op, tt.args)
			assert.Equal(t, tt.wantSuccess, env.Success)
			assert.Equal(t, tt.wantMessage, env.Message)
		})
	}

	env := call(t, d, OpUserGetAll, nil)
	require.True(t, env.Success)
	body := dataJSON(t, env)
	assert.Contains(t, body, `"username":"alice"`)
	assert.NotContains(t, body, "password")
}

func TestDispatcher_SessionFlow(t *testing.T) {
	d := newTestDispatcher(t, 100)

	require.True(t, call(t, d, OpUserRegister, map[string]string{
		"username": "alice", "password": "Secret1", "confirmPassword": "Secret1",
	}).Success)

	env := call(t, d, OpSessionSave, map[string]any{
		"username":   "alice",
		"password":   "Secret1",
		"rememberMe": true,
		"autoLogin":  true,
	})
	require.True(t, env.Success, env.Message)

	env = call(t, d, OpSessionSave, map[string]string{"username": "alice", "accountType": "online"})
	assert.False(t, env.Success)
	assert.Equal(t, session.ErrAccountTypeMismatch.Error(), env.Message)

	env = call(t, d, OpSessionGetRememberedUsers, nil)
	require.True(t, env.Success)
	body := dataJSON(t, env)
	assert.Contains(t, body, `"username":"alice"`)
	assert.Contains(t, body, `"accountType":"local"`)
	assert.NotContains(t, body, "password")

	env = call(t, d, OpSessionGetAutoLoginInfo, nil)
	require.True(t, env.Success)
	assert.Contains(t, dataJSON(t, env), `"hasPassword":true`)

	env = call(t, d, OpSessionQuickLogin, map[string]string{"username": "alice", "accountType": "local"})
	require.True(t, env.Success, env.Message)
	assert.Contains(t, dataJSON(t, env), `"token"`)

	env = call(t, d, OpSessionValidatePassword, map[string]string{"username": "alice", "password": "nope"})
	assert.False(t, env.Success)
	assert.Equal(t, session.ErrPasswordMismatch.Error(), env.Message)

	// keepRemembered по умолчанию true
	require.True(t, call(t, d, OpSessionLogout, map[string]string{"username": "alice"}).Success)

	env = call(t, d, OpSessionGetCurrent, nil)
	assert.False(t, env.Success)
	assert.Equal(t, session.ErrNoActiveSession.Error(), env.Message)

	env = call(t, d, OpSessionGetLoginHistory, nil)
	require.True(t, env.Success)
	assert.NotContains(t, dataJSON(t, env), "password")
	assert.NotContains(t, dataJSON(t, env), "token")

	env = call(t, d, OpSessionClearAll, nil)
	require.True(t, env.Success)
	assert.JSONEq(t, `{"count":1}`, dataJSON(t, env))

	env = call(t, d, OpSessionGetAutoLoginInfo, nil)
	assert.False(t, env.Success)
	assert.Equal(t, session.ErrAutoLoginNotSet.Error(), env.Message)
}

func TestDispatcher_StoreFlow(t *testing.T) {
	d := newTestDispatcher(t, 100)

	require.True(t, call(t, d, OpStoreSet, map[string]any{"key": "theme", "value": "dark"}).Success)

	env := call(t, d, OpStoreGet, map[string]string{"key": "theme"})
	require.True(t, env.Success)
	assert.JSONEq(t, `"dark"`, dataJSON(t, env))

	env = call(t, d, OpStoreImport, map[string]any{
		"namespace": "ui",
		"values":    map[string]any{"zoom": 1.5, "sidebar": true},
	})
	require.True(t, env.Success, env.Message)

	env = call(t, d, OpStoreKeys, map[string]string{"namespace": "ui"})
	require.True(t, env.Success)
	assert.JSONEq(t, `["sidebar","zoom"]`, dataJSON(t, env))

	env = call(t, d, OpStoreExport, map[string]string{"namespace": "ui"})
	require.True(t, env.Success)
	assert.JSONEq(t, `{"zoom":1.5,"sidebar":true}`, dataJSON(t, env))

	require.True(t, call(t, d, OpStoreDelete, map[string]string{"key": "theme"}).Success)

	env = call(t, d, OpStoreGet, map[string]string{"key": "theme"})
	assert.False(t, env.Success)
	assert.Equal(t, kvstore.ErrKeyNotFound.Error(), env.Message)

	env = call(t, d, OpStoreSet, map[string]any{"key": "empty"})
	assert.False(t, env.Success)
	assert.Equal(t, kvstore.ErrInvalidValue.Error(), env.Message)
}

func TestDispatcher_PanicBecomesServerError(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	d := NewDispatcher(logger, Recovery(logger), Logging(logger))
	d.Register("test:panic", "ok", func(context.Context, json.RawMessage) (any, error) {
		panic("boom")
	})

	env := d.Dispatch(context.Background(), "test:panic", nil)
	assert.False(t, env.Success)
	assert.Equal(t, ServerErrorMessage, env.Message)
	assert.Nil(t, env.Data)

	assert.Contains(t, logBuf.String(), "panic recovered")
	assert.Contains(t, logBuf.String(), "boom")
}

func TestDispatcher_UnexpectedErrorIsHidden(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	d := NewDispatcher(logger)
	d.Register("test:fail", "ok", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("disk I/O error at /secret/path")
	})

	env := d.Dispatch(context.Background(), "test:fail", nil)
	assert.False(t, env.Success)
	assert.Equal(t, ServerErrorMessage, env.Message)
}

func TestDispatcher_LoggingNeverLogsArgs(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	d := NewDispatcher(logger, Logging(logger))
	d.Register("test:echo", "ok", func(context.Context, json.RawMessage) (any, error) {
		return nil, nil
	})

	env := d.Dispatch(context.Background(), "test:echo", json.RawMessage(`{"password":"TopSecret"}`))
	require.True(t, env.Success)

	assert.Contains(t, logBuf.String(), "op=test:echo")
	assert.Contains(t, logBuf.String(), "request_id=")
	assert.NotContains(t, logBuf.String(), "TopSecret")
}

func TestDispatcher_RateLimitsCredentialOps(t *testing.T) {
	d := newTestDispatcher(t, 2)

	require.True(t, call(t, d, OpUserRegister, map[string]string{
		"username": "alice", "password": "Secret1", "confirmPassword": "Secret1",
	}).Success)

	wrong := map[string]string{"username": "alice", "password": "wrong"}
	for i := 0; i < 2; i++ {
		env := call(t, d, OpUserLogin, wrong)
		assert.Equal(t, account.ErrWrongPassword.Error(), env.Message)
	}

	env := call(t, d, OpUserLogin, wrong)
	assert.False(t, env.Success)
	assert.Equal(t, ErrRateLimited.Error(), env.Message)

	// Другой username - свой лимит
	env = call(t, d, OpUserLogin, map[string]string{"username": "bob", "password": "x"})
	assert.Equal(t, account.ErrUserNotFound.Error(), env.Message)

	// Username чувствителен к регистру: Alice - другой аккаунт со своим лимитом
	for i := 0; i < 2; i++ {
		env = call(t, d, OpUserLogin, map[string]string{"username": "Alice", "password": "wrong"})
		assert.Equal(t, account.ErrUserNotFound.Error(), env.Message)
	}

	// Операции без пароля не ограничиваются
	for i := 0; i < 5; i++ {
		assert.True(t, call(t, d, OpUserGetAll, nil).Success)
	}
}
