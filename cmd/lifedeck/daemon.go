package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/lifedeck/internal/app"
	"github.com/mschirtzinger/lifedeck/internal/config"
	"github.com/mschirtzinger/lifedeck/internal/daemon"
	"github.com/mschirtzinger/lifedeck/internal/dashboard"
	"github.com/mschirtzinger/lifedeck/internal/logging"
	"github.com/mschirtzinger/lifedeck/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "advanced",
	Short:   "Run the background sync owner",
	Long: `Run lifedeck in the background as the owner of cloud sync.

While the daemon runs, other lifedeck commands save locally and the daemon
picks their changes up from the database and pushes them. It also follows
'lifedeck login' and 'lifedeck logout'.

The daemon serves a WebSocket status feed for local tools:
  ws://127.0.0.1:7420/ws    stats, sync_state and sync_report messages
  http://127.0.0.1:7420/health

Edits to the config file apply sync.debounce and log.level without a
restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		noDashboard, _ := cmd.Flags().GetBool("no-dashboard")

		cfg, loader, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		p := ui.NewPrinter(cmd.OutOrStdout())

		a, err := app.Open(ctx, cfg, app.Options{Sync: app.SyncWait, Stderr: cmd.ErrOrStderr()})
		if err != nil {
			return fmt.Errorf("waiting for sync lock: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Daemon.ShutdownTimeout)
			defer cancel()
			if err := a.Close(closeCtx); err != nil {
				a.Log.Error("final sync failed", "error", err)
			}
		}()
		if a.LoadErr != nil {
			return a.LoadErr
		}
		if a.Engine == nil {
			p.Warn("no remote configured; keeping the dashboard current without syncing")
		}

		var sessions daemon.Sessions
		sessionPath := ""
		if a.Engine != nil {
			sessions, sessionPath = a.Sessions, a.Sessions.Path()
		}
		d, err := daemon.NewWithConfig(a.Store, a.Engine, sessions, cfg.DBPath, sessionPath, &daemon.Config{
			DebounceInterval: cfg.Daemon.ReloadDebounce,
			PollInterval:     time.Minute,
			Logger:           a.Log.Logger,
		})
		if err != nil {
			return err
		}

		if cfg.Dashboard.Enabled && !noDashboard {
			server := dashboard.NewServer(&dashboard.Config{Addr: cfg.Dashboard.Addr, Logger: a.Log.Logger})
			detach := dashboard.NewHandler(server, a.Log.Component("dashboard")).Attach(a.Store, a.Engine)
			if err := server.Start(); err != nil {
				return err
			}
			defer server.Stop()
			defer detach()
			p.Success("status feed on ws://%s/ws", server.Addr())
		}

		loader.Watch(func(next *config.Config) {
			if a.Engine != nil && next.Sync.Debounce != cfg.Sync.Debounce {
				a.Engine.SetDebounce(next.Sync.Debounce)
				a.Log.Info("sync debounce changed", "debounce", next.Sync.Debounce)
			}
			if err := logging.SetLevel(a.Log.Level, next.Log.Level); err == nil {
				a.Log.Debug("log level applied", "level", next.Log.Level)
			}
			cfg.Sync.Debounce = next.Sync.Debounce
		}, func(err error) {
			a.Log.Warn("ignoring invalid config change", "error", err)
		})

		p.Success("daemon running for %s (Ctrl+C to stop)", cfg.DataDir)
		return d.Start(ctx)
	},
}

func init() {
	daemonCmd.Flags().String("dashboard", "", "Status feed listen address (default 127.0.0.1:7420)")
	daemonCmd.Flags().Bool("no-dashboard", false, "Do not serve the status feed")
	rootCmd.AddCommand(daemonCmd)
}
