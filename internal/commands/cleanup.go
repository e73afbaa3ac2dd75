package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cedarwud/stagegate/internal/config"
)

// NewCleanupCmd creates the cleanup command.
func NewCleanupCmd() *cobra.Command {
	var retentionDays int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete snapshots older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(retentionDays)
		},
	}

	cmd.Flags().IntVar(&retentionDays, "retention-days", 30, "Retention window in days")
	return cmd
}

func runCleanup(retentionDays int) error {
	if retentionDays <= 0 {
		return fmt.Errorf("retention-days must be positive")
	}

	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("starting snapshot store: %w", err)
	}
	defer func() { _ = store.Stop(context.Background()) }()

	result, err := store.Cleanup(ctx, retentionDays)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	color.Green("  ✓ Deleted %d snapshot(s) older than %d days", result.Deleted, result.RetentionDays)
	if result.Failed > 0 {
		color.Yellow("  ⚠ %d snapshot(s) could not be deleted", result.Failed)
	}
	return nil
}
