package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/lifedeck/internal/app"
	"github.com/mschirtzinger/lifedeck/internal/cloudsync"
	"github.com/mschirtzinger/lifedeck/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Push local data to the cloud now",
	Long: `Run a sync cycle immediately instead of waiting for the quiet period.

A cycle uploads the full backup and then replaces each cloud collection
with the local records. Not available while the daemon is running; the
daemon syncs on its own.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, app.SyncRequired, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			rep, err := a.SyncNow(ctx)
			if errors.Is(err, cloudsync.ErrNotLoggedIn) {
				return errors.New("not logged in; run 'lifedeck login' first")
			}
			p.Report(rep)
			return err
		})
	},
}

var pullCmd = &cobra.Command{
	Use:     "pull",
	GroupID: "sync",
	Short:   "Replace local data with the cloud backup",
	Long: `Download the cloud backup and replace all local data with it, even
when local data is newer. Unsynced local changes are discarded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, app.SyncRequired, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			res, err := a.Pull(ctx)
			if errors.Is(err, cloudsync.ErrNotLoggedIn) {
				return errors.New("not logged in; run 'lifedeck login' first")
			}
			if err != nil {
				return err
			}
			p.Hydration(res)
			return res.Err
		})
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show sync state and local data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, app.SyncAuto, func(ctx context.Context, a *app.App, p *ui.Printer) error {
			snap := a.Store.Snapshot()
			stats := snap.Stats()
			p.Status(a.Status(), stats, a.Config.Remote.URL)
			p.Counts(stats.Counts)

			if a.Backend != nil && !a.OwnsSync() {
				p.Warn("sync is handled by the running daemon")
			}
			if a.Client != nil {
				pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				defer cancel()
				rtt, err := a.Client.Ping(pingCtx)
				if err != nil {
					p.Warn("remote unreachable: %v", err)
				} else {
					p.Success("remote reachable (%s)", rtt.Round(time.Millisecond))
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(syncCmd, pullCmd, statusCmd)
}
