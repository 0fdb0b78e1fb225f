// Package cli is the authctl command tree. Every command builds the client
// auth stack over a session file, so a sign in survives between invocations.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-bridge/authapp"
	"github.com/jrsteele09/go-auth-bridge/gotrue"
	"github.com/jrsteele09/go-auth-bridge/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	flagProviderURL = "provider-url"
	flagAnonKey     = "anon-key"
	flagSessionDir  = "session-dir"
	flagTimeout     = "timeout"
	flagVerbose     = "verbose"
)

// NewRootCmd creates the authctl command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "authctl",
		Short: "Sign in to the identity provider from the command line",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := zerolog.WarnLevel
			if verbose, _ := cmd.Flags().GetBool(flagVerbose); verbose {
				level = zerolog.DebugLevel
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).Level(level)
		},
	}

	root.PersistentFlags().String(flagProviderURL, config.GetEnv("AUTH_PROVIDER_URL", ""), "Identity provider url")
	root.PersistentFlags().String(flagAnonKey, config.GetEnv("AUTH_PROVIDER_ANON_KEY", "dev-anon-key"), "Provider anon key")
	root.PersistentFlags().String(flagSessionDir, defaultSessionDir(), "Directory the session is kept in")
	root.PersistentFlags().Duration(flagTimeout, 10*time.Second, "Timeout of each provider call")
	root.PersistentFlags().Bool(flagVerbose, false, "Enable debug logging")

	root.AddCommand(
		NewSignInCmd(),
		NewSignUpCmd(),
		NewSignOutCmd(),
		NewWhoAmICmd(),
		NewResetPasswordCmd(),
		NewVerifyCmd(),
		NewUpdatePasswordCmd(),
		NewWatchCmd(),
	)
	return root
}

func defaultSessionDir() string {
	if dir := config.GetEnv("AUTHCTL_SESSION_DIR", ""); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".authctl"
	}
	return filepath.Join(home, ".authctl")
}

// openApp builds the auth stack from the persistent flags.
func openApp(ctx context.Context, cmd *cobra.Command) (*authapp.App, error) {
	providerURL, _ := cmd.Flags().GetString(flagProviderURL)
	anonKey, _ := cmd.Flags().GetString(flagAnonKey)
	sessionDir, _ := cmd.Flags().GetString(flagSessionDir)
	timeout, _ := cmd.Flags().GetDuration(flagTimeout)

	if providerURL == "" {
		return nil, exitError(exitUsage, "--%s or AUTH_PROVIDER_URL is required", flagProviderURL)
	}
	storage, err := gotrue.NewFileStorage(sessionDir)
	if err != nil {
		return nil, fmt.Errorf("opening session dir: %w", err)
	}

	app, err := authapp.New(ctx, providerURL, anonKey,
		authapp.WithStorage(storage),
		authapp.WithTimeout(timeout),
		authapp.WithObserverErrorHandler(func(event gotrue.Event, err error) {
			log.Warn().Err(err).Str("event", string(event)).Msg("session update dropped")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to provider: %w", err)
	}
	return app, nil
}

// readSecret returns the flag value or, when empty, the first line of stdin.
func readSecret(cmd *cobra.Command, flag, prompt string) (string, error) {
	value, _ := cmd.Flags().GetString(flag)
	if value != "" {
		return value, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading %s: %w", flag, err)
	}
	value = strings.TrimRight(line, "\r\n")
	if value == "" {
		return "", exitError(exitUsage, "--%s is required", flag)
	}
	return value, nil
}

func requireString(cmd *cobra.Command, flag string) (string, error) {
	value, _ := cmd.Flags().GetString(flag)
	value = strings.TrimSpace(value)
	if value == "" {
		return "", exitError(exitUsage, "--%s is required", flag)
	}
	return value, nil
}
