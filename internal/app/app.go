// Package app wires storage, services and the operation dispatcher from a
// loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/iudanet/dailyuse/internal/account"
	"github.com/iudanet/dailyuse/internal/config"
	"github.com/iudanet/dailyuse/internal/crypto"
	"github.com/iudanet/dailyuse/internal/ipc"
	"github.com/iudanet/dailyuse/internal/kvstore"
	"github.com/iudanet/dailyuse/internal/session"
	"github.com/iudanet/dailyuse/internal/storage/sqlite"
	"github.com/iudanet/dailyuse/internal/token"
)

// TokenSecretName is the preferences-store entry holding the generated token secret
const TokenSecretName = "token_secret"

const tokenSecretSize = 32

// App holds the opened stores and the dispatcher built on top of them.
type App struct {
	Dispatcher *ipc.Dispatcher
	Accounts   *account.Service
	Sessions   *session.Service
	Storage    *sqlite.Storage
	KV         *kvstore.Store

	logger  *slog.Logger
	opener  *sqlite.Opener
	limiter *ipc.RateLimiter
}

// New opens the databases from cfg and builds the services.
// Close must be called to release them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	a := &App{logger: logger}

	a.opener = sqlite.NewOpener(cfg.DBPath())
	store, err := a.opener.Get(ctx)
	if err != nil {
		_ = a.opener.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.Storage = store

	kv, err := kvstore.New(ctx, cfg.KVPath())
	if err != nil {
		_ = a.opener.Close()
		return nil, fmt.Errorf("failed to open preferences store: %w", err)
	}
	a.KV = kv

	if err := a.build(ctx, cfg); err != nil {
		_ = a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config) error {
	secret := []byte(cfg.Token.Secret)
	if len(secret) == 0 {
		// Секрет генерируется один раз и хранится рядом с настройками
		generated, err := a.KV.Secret(ctx, TokenSecretName, tokenSecretSize)
		if err != nil {
			return fmt.Errorf("failed to load token secret: %w", err)
		}
		secret = generated
	}

	issuer, err := token.NewIssuer(token.Config{Secret: secret, TTL: cfg.Token.TTL})
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	cipher, err := crypto.NewCipher(cfg.Remember.Secret, cfg.Remember.Salt)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}

	a.Accounts = account.NewService(a.logger, a.Storage, crypto.NewHasher(cfg.BcryptCost), issuer)
	a.Sessions = session.NewService(a.logger, a.Storage, cipher, a.Accounts, issuer)

	a.limiter = ipc.NewRateLimiter(cfg.RateLimit.Attempts, cfg.RateLimit.Window)

	a.Dispatcher = ipc.NewDispatcher(a.logger,
		ipc.Recovery(a.logger),
		ipc.Logging(a.logger),
		ipc.RateLimit(a.limiter, a.logger, ipc.CredentialOps...),
	)
	ipc.RegisterUserOps(a.Dispatcher, a.Accounts)
	ipc.RegisterSessionOps(a.Dispatcher, a.Sessions)
	ipc.RegisterStoreOps(a.Dispatcher, a.KV)

	return nil
}

// Close stops background work and closes both databases
func (a *App) Close() error {
	if a.limiter != nil {
		a.limiter.Stop()
	}

	var errs []error
	if a.KV != nil {
		if err := a.KV.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close preferences store: %w", err))
		}
	}
	if err := a.opener.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}

	return errors.Join(errs...)
}
