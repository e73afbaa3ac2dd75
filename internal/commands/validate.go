package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cedarwud/stagegate/internal/config"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate project configuration and stage definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate()
		},
	}
}

func runValidate() error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	color.Green("  ✓ stagegate.yaml valid (store: %s)", cfg.Store)

	stages, err := config.LoadStages(cfg.StageDirs)
	if err != nil {
		return fmt.Errorf("loading stages: %w", err)
	}
	if len(stages) == 0 {
		color.Yellow("  ⚠ No stage definitions found")
		return nil
	}
	color.Green("  ✓ %d stage definition(s) loaded", len(stages))

	// A dry registration pass catches unknown dependencies, missing
	// validators, and dependency cycles before anything runs.
	orch, _, cleanup, err := buildOrchestrator(cmdContext(), dryRunConfig(cfg))
	if err != nil {
		return err
	}
	defer cleanup()

	order, err := orch.ComputeExecutionOrder(nil)
	if err != nil {
		color.Red("  ✗ %v", err)
		return err
	}

	bold := color.New(color.Bold)
	_, _ = bold.Println("\nExecution order:")
	for i, id := range order {
		stage, _ := orch.Stage(id)
		fmt.Printf("  %d. %-35s validators=%d deps=%d\n",
			i+1, id, len(stage.Validators), len(stage.Dependencies))
	}

	missing := missingValidators(orch, order)
	if len(missing) > 0 {
		color.Red("\n  ✗ Unknown validators referenced: %v", missing)
		return fmt.Errorf("%d unknown validator(s)", len(missing))
	}
	color.Green("\n  ✓ All referenced validators are registered")
	return nil
}
