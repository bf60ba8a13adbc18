package cli

import (
	"context"

	"github.com/iudanet/dailyuse/internal/client/api"
	"github.com/iudanet/dailyuse/internal/ipc"
	"github.com/iudanet/dailyuse/internal/models"
	"github.com/iudanet/dailyuse/internal/session"
)

func (c *Cli) RunStatus(ctx context.Context) error {
	c.io.Println("=== Session Status ===")
	c.io.Println()

	var current models.CurrentSession
	err := c.call(ctx, ipc.OpSessionGetCurrent, nil, &current)
	switch {
	case api.IsOperationError(err, session.ErrNoActiveSession):
		c.io.Println("Status: Not signed in")
	case err != nil:
		return err
	default:
		c.io.Println("Status: Signed in")
		c.io.Printf("Account: %s\n", accountLabel(current.Username, current.AccountType))
		c.io.Printf("Last login: %s\n", formatMillis(current.LastLoginTime))
		c.io.Printf("Remember me: %s\n", yesNo(current.RememberMe))
	}

	var info models.AutoLoginInfo
	err = c.call(ctx, ipc.OpSessionGetAutoLoginInfo, nil, &info)
	switch {
	case api.IsOperationError(err, session.ErrAutoLoginNotSet):
		c.io.Println("Auto-login: not set")
	case err != nil:
		return err
	default:
		c.io.Printf("Auto-login: %s\n", accountLabel(info.Username, info.AccountType))
	}

	return nil
}
