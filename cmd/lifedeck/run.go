package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/lifedeck/internal/app"
	"github.com/mschirtzinger/lifedeck/internal/config"
	"github.com/mschirtzinger/lifedeck/internal/ui"
)

// loadConfig resolves configuration for cmd, flags included.
func loadConfig(cmd *cobra.Command) (*config.Config, *config.Loader, error) {
	loader := config.NewLoader(cfgFile)
	if err := loader.BindFlags(cmd.Flags()); err != nil {
		return nil, nil, err
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

// withApp opens the data directory, runs fn and closes it again, pushing
// pending changes first when this process owns syncing.
func withApp(cmd *cobra.Command, mode app.SyncMode, fn func(ctx context.Context, a *app.App, p *ui.Printer) error) error {
	ctx := cmd.Context()
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := app.Open(ctx, cfg, app.Options{Sync: mode, Stderr: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	if a.LoadErr != nil {
		p.Warn("could not load local data; changes in this session will not be saved: %v", a.LoadErr)
	}

	runErr := fn(ctx, a, p)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Daemon.ShutdownTimeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		p.Warn("changes are saved locally but were not synced: %v", err)
	}
	return runErr
}

// resolveID finds the single item whose id starts with prefix.
func resolveID[T any](items []T, id func(*T) string, kind, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("%s id is required", kind)
	}
	var matches []string
	for i := range items {
		v := id(&items[i])
		if v == prefix {
			return v, nil
		}
		if strings.HasPrefix(v, prefix) {
			matches = append(matches, v)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no %s matches %q", kind, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q is ambiguous: matches %d %ss", prefix, len(matches), kind)
	}
}
