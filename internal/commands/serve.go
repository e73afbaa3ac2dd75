package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cedarwud/stagegate/internal/archiver"
	pgstore "github.com/cedarwud/stagegate/internal/archiver/postgres"
	"github.com/cedarwud/stagegate/internal/config"
	"github.com/cedarwud/stagegate/internal/server"
	"github.com/cedarwud/stagegate/pkg/types"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the stagegate HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()
	orch, store, cleanup, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	serverCfg := types.ServerConfig{Addr: ":3000"}
	if cfg.Server != nil {
		serverCfg = *cfg.Server
		if serverCfg.Addr == "" {
			serverCfg.Addr = ":3000"
		}
	}
	srv := server.New(serverCfg, orch, store)

	var arc *archiver.Archiver
	if cfg.Archiver != nil && cfg.Archiver.Enabled {
		pg, err := pgstore.New(ctx, cfg.Archiver.DSN)
		if err != nil {
			return fmt.Errorf("connecting to Postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return fmt.Errorf("migrating Postgres: %w", err)
		}
		defer pg.Close()

		arc = archiver.New(store, pg, config.ArchiverInterval(cfg.Archiver), nil)
		arc.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		color.Yellow("\nReceived %s, shutting down...", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if arc != nil {
			arc.Stop(shutdownCtx)
		}
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		color.Green("Server stopped gracefully")
		return nil
	}
}
