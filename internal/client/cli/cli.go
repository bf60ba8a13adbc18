// Package cli implements the interactive dailyuse commands on top of an
// operation caller.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/iudanet/dailyuse/internal/client/api"
	"github.com/iudanet/dailyuse/internal/iocli"
	"github.com/iudanet/dailyuse/internal/models"
)

// PasswordEnv is the environment variable checked first for a password
const PasswordEnv = "DAILYUSE_PASSWORD"

// ErrEmptyPassword returned when no password source produced a value
var ErrEmptyPassword = errors.New("password cannot be empty")

// Passwords lists non-interactive password sources
type Passwords struct {
	FromFile string
	FromArgs string
}

// Cli runs commands against local operations or a running server.
type Cli struct {
	io     iocli.IO
	caller api.Caller
	getenv func(string) string
}

func New(io iocli.IO, caller api.Caller) *Cli {
	return &Cli{
		io:     io,
		caller: caller,
		getenv: os.Getenv,
	}
}

func (c *Cli) call(ctx context.Context, op string, args, result any) error {
	return api.Call(ctx, c.caller, op, args, result)
}

// getPassword retrieves a password from various sources with priority:
// 1. Environment variable DAILYUSE_PASSWORD
// 2. File specified in Passwords.FromFile
// 3. Command-line parameter
// 4. Interactive prompt (fallback)
func (c *Cli) getPassword(passwords Passwords, prompt string) (string, error) {
	// Priority 1: Environment variable
	if envPassword := c.getenv(PasswordEnv); envPassword != "" {
		return envPassword, nil
	}

	// Priority 2: File
	if passwords.FromFile != "" {
		content, err := os.ReadFile(passwords.FromFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		// Убираем trailing newline/whitespace
		password := strings.TrimSpace(string(content))
		if password == "" {
			return "", fmt.Errorf("password file is empty")
		}
		return password, nil
	}

	// Priority 3: CLI parameter
	if passwords.FromArgs != "" {
		return passwords.FromArgs, nil
	}

	// Priority 4: Interactive prompt
	password, err := c.io.ReadPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return "", ErrEmptyPassword
	}

	return password, nil
}

// askUsername возвращает username из аргумента или спрашивает его
func (c *Cli) askUsername(username string) (string, error) {
	if username != "" {
		return username, nil
	}
	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return "", fmt.Errorf("failed to read username: %w", err)
	}
	return username, nil
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "never"
	}
	return time.UnixMilli(ms).Local().Format(time.DateTime)
}

func accountLabel(username string, accountType models.AccountType) string {
	return fmt.Sprintf("%s (%s)", username, accountType)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
