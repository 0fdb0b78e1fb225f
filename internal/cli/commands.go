package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrsteele09/go-auth-bridge/auth"
	"github.com/jrsteele09/go-auth-bridge/auth/hook"
	"github.com/spf13/cobra"
)

const (
	flagEmail     = "email"
	flagPassword  = "password"
	flagTokenHash = "token-hash"
	flagType      = "type"
)

// rejected turns an operation failure into the user facing copy for its code.
func rejected(err error) error {
	return exitError(exitRejected, "%s", hook.Message(err))
}

// NewSignInCmd creates the "signin" subcommand.
func NewSignInCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE:  runSignIn,
	}
	cmd.Flags().String(flagEmail, "", "Account email")
	cmd.Flags().String(flagPassword, "", "Password (read from stdin when empty)")
	return cmd
}

func runSignIn(cmd *cobra.Command, _ []string) error {
	email, err := requireString(cmd, flagEmail)
	if err != nil {
		return err
	}
	password, err := readSecret(cmd, flagPassword, "Password: ")
	if err != nil {
		return err
	}
	if err := auth.ValidateCredentials(email, password); err != nil {
		return exitError(exitUsage, "%v", err)
	}

	ctx := cmd.Context()
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Hook.SignIn(ctx, email, password)
	if err != nil {
		return rejected(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", result.User.Email)
	return nil
}

// NewSignUpCmd creates the "signup" subcommand.
func NewSignUpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account, or sign in if it already exists",
		Args:  cobra.NoArgs,
		RunE:  runSignUp,
	}
	cmd.Flags().String(flagEmail, "", "Account email")
	cmd.Flags().String(flagPassword, "", "Password (read from stdin when empty)")
	return cmd
}

func runSignUp(cmd *cobra.Command, _ []string) error {
	email, err := requireString(cmd, flagEmail)
	if err != nil {
		return err
	}
	if err := auth.ValidateEmail(email); err != nil {
		return exitError(exitUsage, "%v", err)
	}
	password, err := readSecret(cmd, flagPassword, "Password: ")
	if err != nil {
		return err
	}
	if err := auth.ValidatePasswordStrength(password); err != nil {
		return exitError(exitUsage, "%v", err)
	}

	ctx := cmd.Context()
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	out := cmd.OutOrStdout()
	_, err = app.Hook.SignUp(ctx, email, password)
	if err == nil {
		fmt.Fprintln(out, "Account created. Check your email for a link to confirm it.")
		return nil
	}
	if auth.CodeOf(err) != auth.CodeUserAlreadyExists {
		return rejected(err)
	}

	// The email is taken: the same credentials may still be the owner's.
	result, err := app.Hook.SignIn(ctx, email, password)
	if err != nil {
		return exitError(exitRejected, "%s", hook.MessageForCode(auth.CodeUserAlreadyExists))
	}
	fmt.Fprintf(out, "Signed in as %s\n", result.User.Email)
	return nil
}

// NewSignOutCmd creates the "signout" subcommand.
func NewSignOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Hook.SignOut(ctx); err != nil {
				return rejected(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

// NewWhoAmICmd creates the "whoami" subcommand.
func NewWhoAmICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		Args:  cobra.NoArgs,
		RunE:  runWhoAmI,
	}
	cmd.Flags().Bool("verify", false, "Confirm the session with the provider")
	cmd.Flags().String("format", "text", "Output format: text | json")
	return cmd
}

func runWhoAmI(cmd *cobra.Command, _ []string) error {
	verify, _ := cmd.Flags().GetBool("verify")
	format, _ := cmd.Flags().GetString("format")

	ctx := cmd.Context()
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	state := app.Hook.State()
	if verify && state.IsAuthenticated() {
		user, err := app.Hook.GetCurrentUser(ctx)
		if err != nil {
			return rejected(err)
		}
		if user == nil {
			state = auth.Unauthenticated()
		}
	}
	if !state.IsAuthenticated() {
		return exitError(exitNotSignedIn, "not signed in")
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		return json.NewEncoder(out).Encode(state)
	}
	fmt.Fprintf(out, "%s (%s)\n", state.User.Email, state.User.ID)
	fmt.Fprintf(out, "session expires %s\n", state.Session.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

// NewResetPasswordCmd creates the "reset-password" subcommand.
func NewResetPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Email a password reset link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, err := requireString(cmd, flagEmail)
			if err != nil {
				return err
			}
			if err := auth.ValidateEmail(email); err != nil {
				return exitError(exitUsage, "%v", err)
			}

			ctx := cmd.Context()
			app, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			app.Hook.RequestPasswordReset(ctx, email)
			fmt.Fprintln(cmd.OutOrStdout(), "If an account exists for that email, a password reset link is on its way.")
			return nil
		},
	}
	cmd.Flags().String(flagEmail, "", "Account email")
	return cmd
}

// NewVerifyCmd creates the "verify" subcommand, which redeems an emailed link.
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Redeem the token of a confirmation or recovery email",
		Args:  cobra.NoArgs,
		RunE:  runVerify,
	}
	cmd.Flags().String(flagTokenHash, "", "token_hash from the emailed link")
	cmd.Flags().String(flagType, "signup", "Link type: signup | recovery")
	return cmd
}

func runVerify(cmd *cobra.Command, _ []string) error {
	tokenHash, err := requireString(cmd, flagTokenHash)
	if err != nil {
		return err
	}
	linkType, _ := cmd.Flags().GetString(flagType)

	ctx := cmd.Context()
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	var session *auth.Session
	switch linkType {
	case "signup", "email":
		session, err = app.Hook.ConfirmSignUp(ctx, tokenHash)
	case "recovery":
		session, err = app.Hook.VerifyRecovery(ctx, tokenHash)
	default:
		return exitError(exitUsage, "unknown link type %q", linkType)
	}
	if err != nil {
		return rejected(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", session.User.Email)
	if linkType == "recovery" {
		fmt.Fprintln(cmd.OutOrStdout(), "Run authctl update-password to choose a new password.")
	}
	return nil
}

// NewUpdatePasswordCmd creates the "update-password" subcommand.
func NewUpdatePasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-password",
		Short: "Set a new password for the signed in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readSecret(cmd, flagPassword, "New password: ")
			if err != nil {
				return err
			}
			if err := auth.ValidatePasswordStrength(password); err != nil {
				return exitError(exitUsage, "%v", err)
			}

			ctx := cmd.Context()
			app, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if !app.Hook.State().IsAuthenticated() {
				return exitError(exitNotSignedIn, "not signed in")
			}
			if err := app.Hook.UpdatePassword(ctx, password); err != nil {
				return rejected(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Your password has been updated.")
			return nil
		},
	}
	cmd.Flags().String(flagPassword, "", "New password (read from stdin when empty)")
	return cmd
}

// NewWatchCmd creates the "watch" subcommand.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print every auth state change until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watch(ctx, cmd)
		},
	}
}

func watch(ctx context.Context, cmd *cobra.Command) error {
	app, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	states := make(chan auth.State, 16)
	unsubscribe := app.Hook.Subscribe(func(s auth.State) {
		select {
		case states <- s:
		default:
		}
	})
	defer unsubscribe()

	enc := json.NewEncoder(cmd.OutOrStdout())
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-states:
			if err := enc.Encode(s); err != nil {
				return fmt.Errorf("writing state: %w", err)
			}
		case <-ticker.C:
			// Refreshes the token when it is close to expiry, which publishes a new state.
			if _, err := app.Hook.GetSession(ctx); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), hook.Message(err))
			}
		}
	}
}
