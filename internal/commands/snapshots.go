package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cedarwud/stagegate/internal/config"
	"github.com/cedarwud/stagegate/pkg/types"
)

// NewSnapshotsCmd creates the snapshots command.
func NewSnapshotsCmd() *cobra.Command {
	var stageFilter string
	var limit int

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List stored execution snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshots(stageFilter, limit)
		},
	}

	cmd.Flags().StringVar(&stageFilter, "stage", "", "Filter by stage ID")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum snapshots to list")
	return cmd
}

func runSnapshots(stageFilter string, limit int) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	if err := store.Start(ctx); err != nil {
		return fmt.Errorf("starting snapshot store: %w", err)
	}
	defer func() { _ = store.Stop(context.Background()) }()

	summaries, err := store.List(ctx, stageFilter, limit)
	if err != nil {
		return fmt.Errorf("listing snapshots: %w", err)
	}

	if len(summaries) == 0 {
		fmt.Println("No snapshots stored.")
		return nil
	}

	bold := color.New(color.Bold)
	_, _ = bold.Println("Snapshots:")
	fmt.Println()

	for _, s := range summaries {
		statusStr := string(s.ExecutionStatus)
		switch s.ExecutionStatus {
		case types.ExecCompleted:
			statusStr = color.GreenString(statusStr)
		case types.ExecBlocked, types.ExecFailed:
			statusStr = color.RedString(statusStr)
		}
		fmt.Printf("  %-28s %-30s %-10s quality=%5.1f errors=%d  %s\n",
			s.SnapshotID, s.StageID, statusStr, s.QualityScore, s.ErrorCount,
			s.Timestamp.Format(time.RFC3339))
	}
	fmt.Println()
	return nil
}
