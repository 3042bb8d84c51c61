// Command lifedeck is a local-first planner, notebook and habit tracker
// with optional cloud backup.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/lifedeck/internal/ui"
)

// Version is set at build time.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "lifedeck",
	Short: "Local-first planner, notes and habits with cloud backup",
	Long: `lifedeck keeps tasks, notes, habits and the rest of your personal data
in a local SQLite database. Every change is saved locally first; when you
are logged in, changes are pushed to the cloud after a short quiet period.

Data lives in ~/.lifedeck by default. Settings come from
~/.lifedeck/config.yaml (or .toml/.json), LIFEDECK_* environment
variables and the flags below.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Data:"},
		&cobra.Group{ID: "sync", Title: "Cloud sync:"},
		&cobra.Group{ID: "advanced", Title: "Advanced:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: <data-dir>/config.{yaml,toml,json})")
	pf.String("data-dir", "", "Data directory (default: ~/.lifedeck)")
	pf.String("db", "", "Database path (default: <data-dir>/lifedeck.db)")
	pf.String("remote", "", "Cloud backend URL")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-file", "", "Write logs to a rotated file instead of stderr")
	pf.Duration("debounce", 0, "Quiet period before local changes are pushed")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		ui.NewPrinter(os.Stderr).Error(err)
		os.Exit(1)
	}
}
