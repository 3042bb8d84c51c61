package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/lifedeck/internal/app"
	"github.com/mschirtzinger/lifedeck/internal/schema"
	"github.com/mschirtzinger/lifedeck/internal/ui"
)

var settingsCmd = &cobra.Command{
	Use:     "settings",
	GroupID: "data",
	Short:   "Show or change preferences",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, app.SyncOff, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			p.Settings(a.Store.Snapshot().Settings)
			return nil
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change preferences",
	Long: `Change preferences. Preferences sync with the rest of your data.

Examples:
  lifedeck settings set --theme dark
  lifedeck settings set --week-start sun`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		if !f.Changed("theme") && !f.Changed("week-start") {
			return fmt.Errorf("nothing to change: pass --theme or --week-start")
		}
		theme, _ := f.GetString("theme")
		weekStart := -1
		if f.Changed("week-start") {
			s, _ := f.GetString("week-start")
			d, err := parseDay(s, time.Now())
			if err != nil {
				return err
			}
			weekStart = d
		}

		return withApp(cmd, app.SyncAuto, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			s, err := a.Store.UpdateSettings(ctx, func(s *schema.Settings) {
				if f.Changed("theme") {
					s.Theme = theme
				}
				if weekStart >= 0 {
					s.WeekStart = weekStart
				}
			})
			if err != nil {
				return err
			}
			p.Settings(s)
			return nil
		})
	},
}

func init() {
	settingsSetCmd.Flags().String("theme", "", "system, light or dark")
	settingsSetCmd.Flags().String("week-start", "", "First day of the week (sun..sat or 0-6)")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}
