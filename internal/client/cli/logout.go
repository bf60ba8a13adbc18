package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/dailyuse/internal/client/api"
	"github.com/iudanet/dailyuse/internal/ipc"
	"github.com/iudanet/dailyuse/internal/models"
	"github.com/iudanet/dailyuse/internal/session"
)

// RunLogout ends the session. Without a username the active session is used.
// forget also removes the remembered password.
func (c *Cli) RunLogout(ctx context.Context, key session.Key, forget bool) error {
	c.io.Println("=== Logout ===")

	if key.Username == "" {
		var current models.CurrentSession
		err := c.call(ctx, ipc.OpSessionGetCurrent, nil, &current)
		if api.IsOperationError(err, session.ErrNoActiveSession) {
			c.io.Println("Nobody is signed in.")
			return nil
		}
		if err != nil {
			return err
		}
		key = session.Key{Username: current.Username, AccountType: current.AccountType}
	}

	keep := !forget
	args := struct {
		KeepRemembered *bool `json:"keepRemembered"`
		session.Key
	}{KeepRemembered: &keep, Key: key}

	if err := c.call(ctx, ipc.OpSessionLogout, args, nil); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	c.io.Println("✓ Logout successful!")
	if forget {
		c.io.Println("The saved login has been deleted.")
	}

	return nil
}

// RunClearSessions deletes every saved session
func (c *Cli) RunClearSessions(ctx context.Context) error {
	var result struct {
		Count int `json:"count"`
	}
	if err := c.call(ctx, ipc.OpSessionClearAll, nil, &result); err != nil {
		return err
	}

	c.io.Printf("✓ Removed %d session(s)\n", result.Count)
	return nil
}
