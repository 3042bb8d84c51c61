package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/lifedeck/internal/app"
	"github.com/mschirtzinger/lifedeck/internal/schema"
	"github.com/mschirtzinger/lifedeck/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "data",
	Short:   "Manage tasks",
	Long: `Manage tasks in the backlog and the weekly planner.

A task sits either in the backlog or in one planner cell, a weekday plus
a period (morning, afternoon, evening). An optional due date is separate
from the planner cell.`,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Long: `Add a task to the backlog, or to a planner cell with --day and --period.

Examples:
  lifedeck task add "Draft report" --priority P2
  lifedeck task add "Gym" --day mon --period morning
  lifedeck task add "Pay rent" --due "next friday" --tag home`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		draft := schema.Task{Title: strings.Join(args, " ")}
		if err := applyTaskFlags(cmd, &draft); err != nil {
			return err
		}
		return withApp(cmd, app.SyncAuto, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			task, err := a.Store.AddTask(ctx, draft)
			if err != nil {
				return err
			}
			p.Success("added task %s", task.ID)
			return nil
		})
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		dayFlag, _ := cmd.Flags().GetString("day")
		backlog, _ := cmd.Flags().GetBool("backlog")
		tag, _ := cmd.Flags().GetString("tag")

		var day *int
		if dayFlag != "" {
			d, err := parseDay(dayFlag, time.Now())
			if err != nil {
				return err
			}
			day = &d
		}

		return withApp(cmd, app.SyncOff, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			var out []schema.Task
			for _, t := range a.Store.Snapshot().Tasks {
				switch {
				case !all && t.Status == schema.StatusDone:
				case backlog && !t.InBacklog():
				case day != nil && (t.Day == nil || *t.Day != *day):
				case tag != "" && !hasTag(t.Tags, tag):
				default:
					out = append(out, t)
				}
			}
			p.Tasks(out)
			return nil
		})
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a task's fields",
	Long: `Change the fields given as flags. The id may be abbreviated to any
unique prefix.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch schema.Task
		if err := applyTaskFlags(cmd, &patch); err != nil {
			return err
		}
		title, _ := cmd.Flags().GetString("title")
		status, _ := cmd.Flags().GetString("status")

		return withApp(cmd, app.SyncAuto, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			id, err := resolveID(a.Store.Snapshot().Tasks, func(t *schema.Task) string { return t.ID }, "task", args[0])
			if err != nil {
				return err
			}
			f := cmd.Flags()
			task, err := a.Store.UpdateTask(ctx, id, func(t *schema.Task) {
				if f.Changed("title") {
					t.Title = title
				}
				if f.Changed("status") {
					t.Status = status
				}
				if f.Changed("priority") {
					t.Priority = patch.Priority
				}
				if f.Changed("desc") {
					t.Description = patch.Description
				}
				if f.Changed("due") {
					t.Date, t.Time = patch.Date, patch.Time
				}
				if f.Changed("tag") {
					t.Tags = patch.Tags
				}
			})
			if err != nil {
				return err
			}
			p.Success("updated task %s", task.ID)
			return nil
		})
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>...",
	Short: "Mark tasks done",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, app.SyncAuto, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			for _, arg := range args {
				id, err := resolveID(a.Store.Snapshot().Tasks, func(t *schema.Task) string { return t.ID }, "task", arg)
				if err != nil {
					return err
				}
				task, err := a.Store.CompleteTask(ctx, id)
				if err != nil {
					return err
				}
				p.Success("done: %s", task.Title)
			}
			return nil
		})
	},
}

var taskMoveCmd = &cobra.Command{
	Use:   "move <id>",
	Short: "Move a task to a planner cell or the backlog",
	Long: `Move a task to the planner cell given by --day and --period, or to
the backlog with --backlog. --index sets its position inside the cell
(default: last).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		toBacklog, _ := cmd.Flags().GetBool("backlog")
		dayFlag, _ := cmd.Flags().GetString("day")
		periodFlag, _ := cmd.Flags().GetString("period")
		index, _ := cmd.Flags().GetInt("index")

		var day *int
		var period *string
		if !toBacklog {
			if dayFlag == "" || periodFlag == "" {
				return fmt.Errorf("either --backlog or both --day and --period are required")
			}
			d, err := parseDay(dayFlag, time.Now())
			if err != nil {
				return err
			}
			day, period = &d, &periodFlag
		}

		return withApp(cmd, app.SyncAuto, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			snap := a.Store.Snapshot()
			id, err := resolveID(snap.Tasks, func(t *schema.Task) string { return t.ID }, "task", args[0])
			if err != nil {
				return err
			}
			if index < 0 {
				index = len(snap.TasksAt(day, period))
			}
			task, err := a.Store.MoveTask(ctx, id, day, period, index)
			if err != nil {
				return err
			}
			p.Success("moved %s", task.Title)
			return nil
		})
	},
}

var taskRmCmd = &cobra.Command{
	Use:     "rm <id>...",
	Aliases: []string{"delete"},
	Short:   "Delete tasks",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, app.SyncAuto, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			for _, arg := range args {
				id, err := resolveID(a.Store.Snapshot().Tasks, func(t *schema.Task) string { return t.ID }, "task", arg)
				if err != nil {
					return err
				}
				if err := a.Store.DeleteTask(ctx, id); err != nil {
					return err
				}
				p.Success("deleted task %s", id)
			}
			return nil
		})
	},
}

// applyTaskFlags copies the shared add/update flags into t.
func applyTaskFlags(cmd *cobra.Command, t *schema.Task) error {
	f := cmd.Flags()
	t.Priority, _ = f.GetString("priority")
	t.Priority = strings.ToUpper(t.Priority)
	t.Description, _ = f.GetString("desc")
	t.Tags, _ = f.GetStringSlice("tag")

	if due, _ := f.GetString("due"); due != "" {
		date, clock, err := parseDue(due, time.Now())
		if err != nil {
			return err
		}
		t.Date, t.Time = date, clock
	}

	if f.Lookup("day") != nil && f.Lookup("period") != nil {
		dayFlag, _ := f.GetString("day")
		periodFlag, _ := f.GetString("period")
		if dayFlag != "" || periodFlag != "" {
			if dayFlag == "" || periodFlag == "" {
				return fmt.Errorf("--day and --period must be given together")
			}
			d, err := parseDay(dayFlag, time.Now())
			if err != nil {
				return err
			}
			t.Day, t.Period = &d, &periodFlag
		}
	}
	return nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func init() {
	for _, c := range []*cobra.Command{taskAddCmd, taskUpdateCmd} {
		c.Flags().StringP("priority", "p", "", "Priority P1 (urgent) .. P4")
		c.Flags().String("desc", "", "Description")
		c.Flags().String("due", "", `Due date, e.g. 2026-10-31 or "tomorrow 5pm"`)
		c.Flags().StringSlice("tag", nil, "Tag (repeatable)")
	}
	taskAddCmd.Flags().String("day", "", "Planner weekday (mon..sun, 0-6, today)")
	taskAddCmd.Flags().String("period", "", "Planner period: morning, afternoon, evening")
	taskUpdateCmd.Flags().String("title", "", "New title")
	taskUpdateCmd.Flags().String("status", "", "Status: todo, in_progress, done")

	taskListCmd.Flags().BoolP("all", "a", false, "Include done tasks")
	taskListCmd.Flags().String("day", "", "Only tasks planned on this weekday")
	taskListCmd.Flags().Bool("backlog", false, "Only backlog tasks")
	taskListCmd.Flags().String("tag", "", "Only tasks with this tag")

	taskMoveCmd.Flags().String("day", "", "Target weekday")
	taskMoveCmd.Flags().String("period", "", "Target period")
	taskMoveCmd.Flags().Bool("backlog", false, "Move to the backlog")
	taskMoveCmd.Flags().Int("index", -1, "Position inside the target cell (default: last)")

	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskUpdateCmd, taskDoneCmd, taskMoveCmd, taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}
