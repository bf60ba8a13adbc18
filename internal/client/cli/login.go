package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/dailyuse/internal/account"
	"github.com/iudanet/dailyuse/internal/client/api"
	"github.com/iudanet/dailyuse/internal/ipc"
	"github.com/iudanet/dailyuse/internal/models"
	"github.com/iudanet/dailyuse/internal/session"
)

// LoginOptions are the flags of the login command
type LoginOptions struct {
	Passwords  Passwords
	Username   string
	RememberMe bool
	AutoLogin  bool
}

func (c *Cli) RunLogin(ctx context.Context, opts LoginOptions) error {
	c.io.Println("=== Login ===")
	c.io.Println()

	username, err := c.askUsername(opts.Username)
	if err != nil {
		return err
	}

	password, err := c.getPassword(opts.Passwords, "Password: ")
	if err != nil {
		return err
	}

	var result models.LoginResult
	creds := account.Credentials{Username: username, Password: password}
	if err := c.call(ctx, ipc.OpUserLogin, creds, &result); err != nil {
		return err
	}

	// Auto-login без сохраненного пароля невозможен
	save := session.SaveRequest{
		Key:        session.Key{Username: result.Username, AccountType: result.AccountType},
		Token:      result.Token,
		RememberMe: opts.RememberMe || opts.AutoLogin,
		AutoLogin:  opts.AutoLogin,
	}
	if save.RememberMe {
		save.Password = password
	}

	if err := c.call(ctx, ipc.OpSessionSave, save, nil); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	c.io.Println()
	c.io.Println("✓ Login successful!")
	c.io.Printf("Username: %s\n", result.Username)
	if save.RememberMe {
		c.io.Println("Your password has been remembered on this device.")
	}
	if save.AutoLogin {
		c.io.Println("Auto-login is enabled for this account.")
	}

	return nil
}

// RunQuickLogin signs in with a remembered password. Without a username the
// auto-login account is used.
func (c *Cli) RunQuickLogin(ctx context.Context, key session.Key) error {
	if key.Username == "" {
		var info models.AutoLoginInfo
		err := c.call(ctx, ipc.OpSessionGetAutoLoginInfo, nil, &info)
		if api.IsOperationError(err, session.ErrAutoLoginNotSet) {
			return fmt.Errorf("no account selected and auto-login is not set")
		}
		if err != nil {
			return err
		}
		key = session.Key{Username: info.Username, AccountType: info.AccountType}
	}

	var result models.LoginResult
	err := c.call(ctx, ipc.OpSessionQuickLogin, key, &result)
	if api.IsOperationError(err, session.ErrSavedLoginInvalid) {
		c.io.Println("Saved login is no longer valid and has been removed.")
		c.io.Println("Run 'dailyuse login' to sign in with your password.")
		return err
	}
	if err != nil {
		return err
	}

	c.io.Printf("✓ Signed in as %s\n", accountLabel(result.Username, result.AccountType))
	return nil
}
