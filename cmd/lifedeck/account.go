package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mschirtzinger/lifedeck/internal/app"
	"github.com/mschirtzinger/lifedeck/internal/cloudsync"
	"github.com/mschirtzinger/lifedeck/internal/ui"
)

var loginCmd = &cobra.Command{
	Use:     "login",
	GroupID: "sync",
	Short:   "Log in and restore your cloud backup",
	Long: `Log in to the cloud backend.

After logging in, a fresh device restores the cloud backup. When local data
is newer than the backup, local data is kept and pushed on the next change.
Use 'lifedeck pull' to replace local data with the backup regardless.

Without --identity, an interactive form asks for the identity and token.
The token can also come from LIFEDECK_TOKEN.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		identity, _ := cmd.Flags().GetString("identity")
		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			token = os.Getenv("LIFEDECK_TOKEN")
		}

		if identity == "" {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return fmt.Errorf("--identity is required when stdin is not a terminal")
			}
			if err := loginForm(&identity, &token); err != nil {
				return err
			}
		}

		return withApp(cmd, app.SyncAuto, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			res, err := a.Login(ctx, cloudsync.Session{Identity: identity, Token: token})
			if err != nil {
				return err
			}
			if res.Delegated {
				p.Success("logged in as %s; the running daemon will restore and sync", strings.TrimSpace(identity))
				return nil
			}
			p.Success("logged in as %s", strings.TrimSpace(identity))
			p.Hydration(res.HydrateResult)
			return nil
		})
	},
}

func loginForm(identity, token *string) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Identity").
				Description("Email or account id").
				Value(identity).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("identity is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Token").
				EchoMode(huh.EchoModePassword).
				Value(token),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("login cancelled")
		}
		return err
	}
	return nil
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: "sync",
	Short:   "Log out; local data stays on this device",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, app.SyncAuto, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			sess, ok, err := a.Session()
			if err != nil {
				return err
			}
			if !ok {
				p.Warn("not logged in")
				return nil
			}
			if err := a.Logout(); err != nil {
				return err
			}
			p.Success("logged out %s", sess.Identity)
			return nil
		})
	},
}

func init() {
	loginCmd.Flags().String("identity", "", "Account identity (email or id)")
	loginCmd.Flags().String("token", "", "Bearer token")

	rootCmd.AddCommand(loginCmd, logoutCmd)
}
