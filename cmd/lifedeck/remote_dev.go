package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/lifedeck/internal/remote"
	"github.com/mschirtzinger/lifedeck/internal/ui"
)

var remoteDevCmd = &cobra.Command{
	Use:     "remote-dev",
	GroupID: "advanced",
	Short:   "Serve an in-memory cloud backend for development",
	Long: `Serve the cloud backend API from memory. Data is lost on exit.

Point a client at it with:
  lifedeck --remote http://127.0.0.1:7421 login --identity me@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		addr, _ := cmd.Flags().GetString("addr")
		token, _ := cmd.Flags().GetString("token")

		mem := remote.NewMemory()
		logger := slog.Default().With("component", "remote-dev")
		opts := []remote.HandlerOption{remote.WithHandlerLogger(logger)}
		if token != "" {
			opts = append(opts, remote.WithTokenCheck(func(got string) bool { return got == token }))
		}

		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		srv := &http.Server{
			Handler:           remote.NewHandler(mem, mem, opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Serve(ln) }()
		ui.NewPrinter(cmd.OutOrStdout()).Success("in-memory backend on http://%s", ln.Addr())

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	remoteDevCmd.Flags().String("addr", "127.0.0.1:7421", "Listen address")
	remoteDevCmd.Flags().String("token", "", "Require this bearer token")
	rootCmd.AddCommand(remoteDevCmd)
}
