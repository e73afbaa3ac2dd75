package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cedarwud/stagegate/internal/config"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	var stageFilter string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show consolidated quality statistics across snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(stageFilter)
		},
	}

	cmd.Flags().StringVar(&stageFilter, "stage", "", "Filter by stage ID")
	return cmd
}

func runReport(stageFilter string) error {
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

	report, err := store.ConsolidatedReport(ctx, stageFilter)
	if err != nil {
		return fmt.Errorf("building report: %w", err)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Println("Consolidated Quality Report")
	fmt.Printf("  Generated: %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Printf("  Snapshots: %d\n", report.TotalSnapshots)

	if report.TotalSnapshots == 0 {
		return nil
	}

	fmt.Println()
	_, _ = bold.Println("  Quality trends:")
	fmt.Printf("    average:  %.2f\n", report.QualityTrends.Average)
	fmt.Printf("    min/max:  %.2f / %.2f\n", report.QualityTrends.Min, report.QualityTrends.Max)
	fmt.Printf("    variance: %.2f\n", report.QualityTrends.Variance)

	fmt.Println()
	_, _ = bold.Println("  Error patterns:")
	fmt.Printf("    total errors:    %d\n", report.ErrorPatterns.TotalErrors)
	fmt.Printf("    with errors:     %d\n", report.ErrorPatterns.SnapshotsWithErrors)
	fmt.Printf("    error rate:      %.1f%%\n", report.ErrorPatterns.ErrorRate*100)

	if len(report.StageDistribution) > 0 {
		fmt.Println()
		_, _ = bold.Println("  Stage distribution:")
		for stage, count := range report.StageDistribution {
			fmt.Printf("    %-35s %d\n", stage, count)
		}
	}
	fmt.Println()
	return nil
}
