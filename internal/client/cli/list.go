package cli

import (
	"context"

	"github.com/iudanet/dailyuse/internal/ipc"
	"github.com/iudanet/dailyuse/internal/models"
)

func (c *Cli) RunUsers(ctx context.Context) error {
	var users []models.UserView
	if err := c.call(ctx, ipc.OpUserGetAll, nil, &users); err != nil {
		return err
	}

	if len(users) == 0 {
		c.io.Println("No users found.")
		c.io.Println()
		c.io.Println("Use 'dailyuse register' to create the first account.")
		return nil
	}

	c.io.Printf("Found %d user(s):\n", len(users))
	c.io.Println()
	for _, u := range users {
		c.io.Printf("  %s  created %s\n", accountLabel(u.Username, u.AccountType), formatMillis(u.CreatedAt))
	}

	return nil
}

func (c *Cli) RunRemembered(ctx context.Context) error {
	var users []models.RememberedUser
	if err := c.call(ctx, ipc.OpSessionGetRememberedUsers, nil, &users); err != nil {
		return err
	}

	if len(users) == 0 {
		c.io.Println("No remembered accounts.")
		return nil
	}

	for _, u := range users {
		line := accountLabel(u.Username, u.AccountType) + "  last login " + formatMillis(u.LastLoginTime)
		if u.AutoLogin {
			line += "  [auto-login]"
		}
		c.io.Println("  " + line)
	}

	return nil
}

func (c *Cli) RunHistory(ctx context.Context) error {
	var history []models.LoginHistoryEntry
	if err := c.call(ctx, ipc.OpSessionGetLoginHistory, nil, &history); err != nil {
		return err
	}

	if len(history) == 0 {
		c.io.Println("Login history is empty.")
		return nil
	}

	for _, h := range history {
		c.io.Printf("  %-30s last login %s  active=%s remember=%s auto=%s\n",
			accountLabel(h.Username, h.AccountType),
			formatMillis(h.LastLoginTime),
			yesNo(h.IsActive), yesNo(h.RememberMe), yesNo(h.AutoLogin))
	}

	return nil
}
