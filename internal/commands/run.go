package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cedarwud/stagegate/internal/config"
	"github.com/cedarwud/stagegate/pkg/types"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var dataFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the validation pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(dataFile)
		},
	}

	cmd.Flags().StringVar(&dataFile, "data", "", "JSON file with the data payload")
	return cmd
}

func runPipeline(dataFile string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	data := map[string]interface{}{}
	if dataFile != "" {
		raw, err := os.ReadFile(dataFile)
		if err != nil {
			return fmt.Errorf("reading data file: %w", err)
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("parsing data file: %w", err)
		}
	}

	orch, _, cleanup, err := buildOrchestrator(cmdContext(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	result, err := orch.Run(ctx, data)
	if err != nil {
		return fmt.Errorf("pipeline execution failed: %w", err)
	}

	printPipelineResult(result)

	if result.OverallStatus != types.ExecCompleted {
		return fmt.Errorf("pipeline finished with status %s", result.OverallStatus)
	}
	return nil
}

func printPipelineResult(result *types.PipelineResult) {
	bold := color.New(color.Bold)

	_, _ = bold.Printf("\nExecution: %s\n", result.ExecutionID)

	switch result.OverallStatus {
	case types.ExecCompleted:
		color.Green("Status: COMPLETED ✓")
	case types.ExecBlocked:
		color.Red("Status: BLOCKED ✗")
	default:
		color.Red("Status: %s ✗", result.OverallStatus)
	}

	fmt.Println("\nStages:")
	for _, id := range result.Order {
		sr, ok := result.Stages[id]
		if !ok {
			continue
		}
		switch sr.Status {
		case types.ExecCompleted:
			color.Green("  ✓ %s: COMPLETED", sr.StageID)
		case types.ExecBlocked:
			color.Red("  ✗ %s: BLOCKED by quality gate", sr.StageID)
			if sr.Gate != nil {
				for _, rule := range sr.Gate.BlockingRules {
					fmt.Printf("      %s: actual %.2f vs threshold %.2f\n",
						rule.RuleID, rule.ActualValue, rule.Threshold)
				}
			}
		case types.ExecFailed:
			color.Red("  ✗ %s: FAILED (%s)", sr.StageID, sr.Error)
		case types.ExecSkipped:
			color.Yellow("  ○ %s: SKIPPED", sr.StageID)
		default:
			fmt.Printf("  ? %s: %s\n", sr.StageID, sr.Status)
		}

		if sr.Recovery != nil {
			if sr.Recovery.OverallSuccess {
				color.Cyan("      recovery %s succeeded", sr.Recovery.PlanID)
			} else {
				color.Yellow("      recovery %s did not succeed", sr.Recovery.PlanID)
			}
			for _, step := range sr.Recovery.ManualSteps {
				fmt.Printf("      manual: %s\n", step)
			}
		}
		if sr.SnapshotID != "" {
			fmt.Printf("      snapshot: %s\n", sr.SnapshotID)
		}
	}
	fmt.Println()
}
