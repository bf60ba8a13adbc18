package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/dailyuse/internal/account"
	"github.com/iudanet/dailyuse/internal/ipc"
	"github.com/iudanet/dailyuse/internal/models"
)

// RegisterOptions are the flags of the register command
type RegisterOptions struct {
	Passwords Passwords
	Username  string
	Email     string
	Phone     string
}

func (c *Cli) RunRegister(ctx context.Context, opts RegisterOptions) error {
	c.io.Println("=== Registration ===")
	c.io.Println()

	username, err := c.askUsername(opts.Username)
	if err != nil {
		return err
	}

	password, err := c.getPassword(opts.Passwords, "Password: ")
	if err != nil {
		return err
	}

	// Подтверждение нужно только при интерактивном вводе
	confirm := password
	if c.interactivePassword(opts.Passwords) {
		confirm, err = c.io.ReadPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
	}

	form := account.RegisterForm{
		Username:        username,
		Password:        password,
		ConfirmPassword: confirm,
	}
	if opts.Email != "" {
		form.Email = &opts.Email
	}
	if opts.Phone != "" {
		form.Phone = &opts.Phone
	}

	var user models.UserView
	if err := c.call(ctx, ipc.OpUserRegister, form, &user); err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Registration successful!")
	c.io.Printf("Username: %s\n", user.Username)
	c.io.Printf("Account type: %s\n", user.AccountType)
	c.io.Println()
	c.io.Println("Run 'dailyuse login' to sign in.")

	return nil
}

func (c *Cli) interactivePassword(p Passwords) bool {
	return c.getenv(PasswordEnv) == "" && p.FromFile == "" && p.FromArgs == ""
}
