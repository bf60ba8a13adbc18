package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iudanet/dailyuse/internal/app"
	"github.com/iudanet/dailyuse/internal/client/api"
	"github.com/iudanet/dailyuse/internal/client/cli"
	"github.com/iudanet/dailyuse/internal/config"
	"github.com/iudanet/dailyuse/internal/iocli"
	"github.com/iudanet/dailyuse/internal/models"
	"github.com/iudanet/dailyuse/internal/server"
	"github.com/iudanet/dailyuse/internal/session"
)

// loadConfig читает конфиг и применяет глобальные флаги поверх него
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("listen") {
		cfg.ListenAddr = listenAddr
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withCli runs fn with a Cli bound either to the local databases or to --server
func withCli(cmd *cobra.Command, fn func(ctx context.Context, c *cli.Cli) error) error {
	ctx := cmd.Context()
	stdio := iocli.NewStdio()

	if serverURL != "" {
		return fn(ctx, cli.New(stdio, api.NewClient(serverURL)))
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// Команды CLI пишут в лог только предупреждения, если уровень не задан явно
	if !cmd.Flags().Changed("log-level") {
		cfg.Log.Level = "warn"
	}

	a, err := app.New(ctx, cfg, cfg.NewLogger(os.Stderr))
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}()

	return fn(ctx, cli.New(stdio, api.NewLocal(a.Dispatcher)))
}

func addPasswordFlags(cmd *cobra.Command, p *cli.Passwords) {
	cmd.Flags().StringVar(&p.FromArgs, "password", "", "password (not recommended, use DAILYUSE_PASSWORD or --password-file)")
	cmd.Flags().StringVar(&p.FromFile, "password-file", "", "path to a file containing the password")
}

func sessionKey(args []string, accountType string) session.Key {
	key := session.Key{AccountType: models.AccountType(accountType)}
	if len(args) > 0 {
		key.Username = args[0]
	}
	return key
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the local IPC server",
		Long:  `Serve DailyUse operations over HTTP on a loopback address (POST /ipc/{op}).`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := cfg.NewLogger(os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Error("failed to close application", "error", err)
				}
			}()

			srv, err := server.New(server.Config{Addr: cfg.ListenAddr, Version: Version}, logger, a.Dispatcher, a.Storage.DB(), a.Sessions)
			if err != nil {
				return err
			}

			return srv.Run(ctx)
		},
	}
}

func newRegisterCmd() *cobra.Command {
	var opts cli.RegisterOptions

	cmd := &cobra.Command{
		Use:   "register [username]",
		Short: "Create a local account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.Username = args[0]
			}
			return withCli(cmd, func(ctx context.Context, c *cli.Cli) error {
				return c.RunRegister(ctx, opts)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone number")
	addPasswordFlags(cmd, &opts.Passwords)

	return cmd
}

func newLoginCmd() *cobra.Command {
	var opts cli.LoginOptions

	cmd := &cobra.Command{
		Use:   "login [username]",
		Short: "Sign in with a password",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.Username = args[0]
			}
			return withCli(cmd, func(ctx context.Context, c *cli.Cli) error {
				return c.RunLogin(ctx, opts)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.RememberMe, "remember", false, "remember the password on this device")
	cmd.Flags().BoolVar(&opts.AutoLogin, "auto-login", false, "sign in automatically (implies --remember)")
	addPasswordFlags(cmd, &opts.Passwords)

	return cmd
}

func newQuickLoginCmd() *cobra.Command {
	var accountType string

	cmd := &cobra.Command{
		Use:   "quick-login [username]",
		Short: "Sign in with a remembered password",
		Long:  `Sign in with a remembered password. Without a username the auto-login account is used.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, func(ctx context.Context, c *cli.Cli) error {
				return c.RunQuickLogin(ctx, sessionKey(args, accountType))
			})
		},
	}
	cmd.Flags().StringVar(&accountType, "type", "", "account type: local or online (default local)")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	var (
		accountType string
		forget      bool
	)

	cmd := &cobra.Command{
		Use:   "logout [username]",
		Short: "Sign out",
		Long:  `Sign out. Without a username the active session is used.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, func(ctx context.Context, c *cli.Cli) error {
				return c.RunLogout(ctx, sessionKey(args, accountType), forget)
			})
		},
	}
	cmd.Flags().StringVar(&accountType, "type", "", "account type: local or online (default local)")
	cmd.Flags().BoolVar(&forget, "forget", false, "also delete the remembered password")

	return cmd
}

// simpleCmd создает команду без аргументов
func simpleCmd(use, short string, run func(c *cli.Cli, ctx context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, func(ctx context.Context, c *cli.Cli) error {
				return run(c, ctx)
			})
		},
	}
}

func newStatusCmd() *cobra.Command {
	return simpleCmd("status", "Show the active session and auto-login account", (*cli.Cli).RunStatus)
}

func newUsersCmd() *cobra.Command {
	return simpleCmd("users", "List local accounts", (*cli.Cli).RunUsers)
}

func newRememberedCmd() *cobra.Command {
	return simpleCmd("remembered", "List accounts with a remembered password", (*cli.Cli).RunRemembered)
}

func newHistoryCmd() *cobra.Command {
	return simpleCmd("history", "Show login history", (*cli.Cli).RunHistory)
}

func newClearSessionsCmd() *cobra.Command {
	return simpleCmd("clear-sessions", "Delete every saved session", (*cli.Cli).RunClearSessions)
}

func newStoreCmd() *cobra.Command {
	var namespace string

	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Read and write application preferences",
	}
	storeCmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "", "preferences namespace (default \"default\")")

	getCmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, func(ctx context.Context, c *cli.Cli) error {
				return c.RunStoreGet(ctx, namespace, args[0])
			})
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value; non-JSON values are stored as strings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, func(ctx context.Context, c *cli.Cli) error {
				return c.RunStoreSet(ctx, namespace, args[0], args[1])
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, func(ctx context.Context, c *cli.Cli) error {
				return c.RunStoreDelete(ctx, namespace, args[0])
			})
		},
	}

	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "List keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, func(ctx context.Context, c *cli.Cli) error {
				return c.RunStoreKeys(ctx, namespace)
			})
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export all values as a JSON object",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return withCli(cmd, func(ctx context.Context, c *cli.Cli) error {
				return c.RunStoreExport(ctx, namespace, path)
			})
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import values from a JSON object; all or nothing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, func(ctx context.Context, c *cli.Cli) error {
				return c.RunStoreImport(ctx, namespace, args[0])
			})
		},
	}

	storeCmd.AddCommand(getCmd, setCmd, deleteCmd, keysCmd, exportCmd, importCmd)
	return storeCmd
}
