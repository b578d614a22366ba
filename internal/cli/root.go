// Package cli is the wordrush terminal player.
package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	apiURL  string
	token   string
	verbose bool
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envAPI := os.Getenv("WORDRUSH_API")
	if envAPI == "" {
		envAPI = "http://localhost:8080"
	}

	cmd := &cobra.Command{
		Use:          "wordrush",
		Short:        "Timed vocabulary rounds in the terminal",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&apiURL, "api", envAPI, "API base URL")
	cmd.PersistentFlags().StringVar(&token, "token", os.Getenv("WORDRUSH_TOKEN"), "bearer token for the API")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	cmd.AddCommand(newPlayCmd())
	cmd.AddCommand(newTopCmd())
	cmd.AddCommand(newTokenCmd())
	return cmd
}

func newLogger(cmd *cobra.Command) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
