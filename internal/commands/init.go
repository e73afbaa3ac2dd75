package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const initContainerTimeout = 60 * time.Second

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var skipValkey bool

	cmd := &cobra.Command{
		Use:   "init [project-name]",
		Short: "Initialize a new stagegate project",
		Long:  "Creates project scaffolding and optionally starts a local Valkey container.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args[0], skipValkey)
		},
	}

	cmd.Flags().BoolVar(&skipValkey, "skip-valkey", false, "Skip starting Valkey container")
	return cmd
}

func runInit(projectName string, skipValkey bool) error {
	bold := color.New(color.Bold)

	_, _ = bold.Printf("Initializing stagegate project: %s\n", projectName)

	for _, dir := range []string{"stages", "plans"} {
		path := filepath.Join(projectName, dir)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", path, err)
		}
	}

	configPath := filepath.Join(projectName, "stagegate.yaml")
	configContent := `store: redis
redis:
  addr: localhost:6379
  keyPrefix: "stagegate:"
server:
  addr: ":3000"
engine:
  mode: sequential
  workers: 4
  failurePolicy: stop
stageDirs:
  - ./stages
planDirs:
  - ./plans
alerts:
  - type: console
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if err := writeStarterStages(filepath.Join(projectName, "stages")); err != nil {
		return fmt.Errorf("writing starter stages: %w", err)
	}

	planPath := filepath.Join(projectName, "plans", "zero-coordinates.yaml")
	planContent := `planId: custom_zero_coordinates
stageId: stage1_orbital_calculation
errorType: academic_violation
actions:
  - data_correction
  - manual_intervention
estimatedDurationSeconds: 120
successProbability: 0.85
automatedFixes:
  - action: "Reset the computation time basis"
    description: "Rebase the computation window on the epoch from the source data"
    function: fix_time_base_configuration
manualSteps:
  - "Confirm the source dataset epoch matches the configured computation window"
`
	if err := os.WriteFile(planPath, []byte(planContent), 0o644); err != nil {
		return fmt.Errorf("writing example plan: %w", err)
	}

	color.Green("  ✓ Project scaffolded")

	if !skipValkey {
		if err := startValkey(); err != nil {
			color.Yellow("  ⚠ Valkey setup skipped: %v", err)
			color.Yellow("    Run manually: docker run -d --name stagegate-valkey -p 6379:6379 valkey/valkey:8")
		} else {
			color.Green("  ✓ Valkey container started")
		}
	} else {
		color.Yellow("  → Valkey setup skipped (--skip-valkey)")
	}

	fmt.Println()
	_, _ = bold.Println("Next steps:")
	fmt.Printf("  cd %s\n", projectName)
	fmt.Println("  stagegate validate")
	fmt.Println("  stagegate run --data input.json")
	fmt.Println("  stagegate serve")
	return nil
}

func startValkey() error {
	if _, err := exec.LookPath("docker"); err != nil {
		return fmt.Errorf("docker not found in PATH")
	}

	// Check if container already exists
	checkCmd := exec.Command("docker", "inspect", "stagegate-valkey")
	if checkCmd.Run() == nil {
		startCmd := exec.Command("docker", "start", "stagegate-valkey")
		if err := startCmd.Run(); err != nil {
			return fmt.Errorf("starting existing container: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), initContainerTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "run", "-d",
		"--name", "stagegate-valkey",
		"-p", "6379:6379",
		"valkey/valkey:8",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

func writeStarterStages(dir string) error {
	stages := map[string]string{
		"stage1-orbital-calculation.yaml": `stageId: stage1_orbital_calculation
name: Orbital Calculation
description: "Validates computed coordinate output"
validators:
  - zero_value_detector
  - structure_validator
gateRules:
  zero_values:
    ruleId: zero_values
    name: "Zero coordinate share"
    metric: zero_value_percent
    threshold: 1.0
    action: block
    severity: critical
    enabled: true
retry:
  maxAttempts: 2
  backoffSeconds: 5
timeoutSeconds: 300
required: true
`,
		"stage2-visibility-filter.yaml": `stageId: stage2_visibility_filter
name: Visibility Filter
description: "Validates filtered record consistency against stage 1"
validators:
  - structure_validator
  - consistency_checker
dependencies:
  - stage1_orbital_calculation
gateRules:
  consistency:
    ruleId: consistency
    name: "Record retention"
    metric: consistency_score
    threshold: 80
    action: warn
    enabled: true
retry:
  maxAttempts: 1
  backoffSeconds: 0
timeoutSeconds: 180
required: true
`,
	}

	for name, content := range stages {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}
