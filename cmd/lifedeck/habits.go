package main

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/lifedeck/internal/app"
	"github.com/mschirtzinger/lifedeck/internal/schema"
	"github.com/mschirtzinger/lifedeck/internal/ui"
)

var habitCmd = &cobra.Command{
	Use:     "habit",
	GroupID: "data",
	Short:   "Track habits",
}

var habitAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a habit",
	Long: `Add a habit.

Examples:
  lifedeck habit add Read
  lifedeck habit add Run --frequency weekly --days mon,wed,fri`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		freq, _ := cmd.Flags().GetString("frequency")
		days, _ := cmd.Flags().GetStringSlice("days")
		desc, _ := cmd.Flags().GetString("desc")

		draft := schema.Habit{Name: strings.Join(args, " "), Frequency: freq, Description: desc}
		for _, d := range days {
			n, err := parseDay(d, time.Now())
			if err != nil {
				return err
			}
			draft.TargetDays = append(draft.TargetDays, n)
		}

		return withApp(cmd, app.SyncAuto, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			h, err := a.Store.AddHabit(ctx, draft)
			if err != nil {
				return err
			}
			p.Success("added habit %s", h.ID)
			return nil
		})
	},
}

var habitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List habits and today's check-ins",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := habitDate(cmd)
		if err != nil {
			return err
		}
		return withApp(cmd, app.SyncOff, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			p.Habits(a.Store.Snapshot(), date)
			return nil
		})
	},
}

var habitCheckCmd = &cobra.Command{
	Use:   "check <id>",
	Short: "Check a habit off for a day",
	Long: `Record a habit as done for today, or for --date. With --undo the
entry is kept but marked not done.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := habitDate(cmd)
		if err != nil {
			return err
		}
		undo, _ := cmd.Flags().GetBool("undo")
		note, _ := cmd.Flags().GetString("note")

		return withApp(cmd, app.SyncAuto, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			id, err := resolveID(a.Store.Snapshot().Habits, func(h *schema.Habit) string { return h.ID }, "habit", args[0])
			if err != nil {
				return err
			}
			entry, err := a.Store.UpsertHabitEntry(ctx, schema.HabitEntry{
				HabitID:   id,
				Date:      date,
				Completed: !undo,
				Value:     1,
				Note:      note,
			})
			if err != nil {
				return err
			}
			if entry.Completed {
				p.Success("checked %s for %s", id, date)
			} else {
				p.Success("unchecked %s for %s", id, date)
			}
			return nil
		})
	},
}

var habitRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a habit and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, app.SyncAuto, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			id, err := resolveID(a.Store.Snapshot().Habits, func(h *schema.Habit) string { return h.ID }, "habit", args[0])
			if err != nil {
				return err
			}
			if err := a.Store.DeleteHabit(ctx, id); err != nil {
				return err
			}
			p.Success("deleted habit %s", id)
			return nil
		})
	},
}

// habitDate returns --date as 2006-01-02, defaulting to today.
func habitDate(cmd *cobra.Command) (string, error) {
	text, _ := cmd.Flags().GetString("date")
	if text == "" {
		return time.Now().Format("2006-01-02"), nil
	}
	date, _, err := parseDue(text, time.Now())
	return date, err
}

func init() {
	habitAddCmd.Flags().String("frequency", schema.FrequencyDaily, "daily or weekly")
	habitAddCmd.Flags().StringSlice("days", nil, "Target weekdays, e.g. mon,wed,fri")
	habitAddCmd.Flags().String("desc", "", "Description")

	for _, c := range []*cobra.Command{habitListCmd, habitCheckCmd} {
		c.Flags().String("date", "", `Day to show or record (default: today), e.g. "yesterday"`)
	}
	habitCheckCmd.Flags().Bool("undo", false, "Mark the day as not done")
	habitCheckCmd.Flags().String("note", "", "Note for the entry")

	habitCmd.AddCommand(habitAddCmd, habitListCmd, habitCheckCmd, habitRmCmd)
	rootCmd.AddCommand(habitCmd)
}
