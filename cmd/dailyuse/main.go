package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Глобальные флаги
var (
	configFile string
	dataDir    string
	listenAddr string
	logLevel   string
	serverURL  string
)

var rootCmd = &cobra.Command{
	Use:   "dailyuse",
	Short: "DailyUse local accounts and saved logins",
	Long: `DailyUse keeps local user accounts, remembered logins and application
preferences on this device. Commands run against the local databases, or
against a running 'dailyuse serve' when --server is given.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "config file path (env DAILYUSE_CONFIG)")
	flags.StringVar(&dataDir, "data-dir", "", "directory for database files")
	flags.StringVar(&listenAddr, "listen", "", "loopback address for serve")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&serverURL, "server", "", "send commands to a running server, e.g. http://127.0.0.1:7420")

	rootCmd.AddCommand(
		newServeCmd(),
		newRegisterCmd(),
		newLoginCmd(),
		newQuickLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newUsersCmd(),
		newRememberedCmd(),
		newHistoryCmd(),
		newClearSessionsCmd(),
		newStoreCmd(),
		newVersionCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd)
		},
	}
}

func printVersion(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "DailyUse\n")
	fmt.Fprintf(out, "Version:    %s\n", Version)
	fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
	fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
}
