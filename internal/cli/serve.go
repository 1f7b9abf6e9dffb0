package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentfabric/govcore/internal/admin"
	"github.com/agentfabric/govcore/internal/overrides"
)

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Admin listen address (overrides config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin HTTP server",
	Long: "Boots the verified governance core and serves the operator surface:\n" +
		"gate status, ledger inspection, and override toggles. Override file\n" +
		"edits made outside the process are picked up by a file watcher.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	sys, err := bootSystem()
	if err != nil {
		return err
	}
	defer sys.Close()

	addr := sys.Config.Admin.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := &admin.Server{
		Gate:   sys.Gate,
		Ledger: sys.Ledger,
		APIKey: sys.Config.Admin.APIKey,
		Log:    slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Watch the override document for out-of-band edits.
	watcher, err := overrides.NewWatcher(sys.Overrides, sys.Config.Paths.Overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: override hot-reload disabled: %v\n", err)
	} else {
		go watcher.Run(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down admin server...")
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		httpSrv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(os.Stderr, "govcore admin server listening on %s\n", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}
