package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cedarwud/stagegate/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "stagegate",
		Short: "Staged data-validation pipeline with quality gates",
		Long: `Stagegate runs data payloads through a dependency-ordered pipeline of
validation stages. Each stage executes a chain of validators, evaluates
quality gate rules against the results, and persists a durable snapshot.
Stages whose gates close are blocked and handed to automated recovery.`,
		Version: version,
	}

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewValidateCmd(),
		commands.NewRunCmd(),
		commands.NewSnapshotsCmd(),
		commands.NewReportCmd(),
		commands.NewCleanupCmd(),
		commands.NewServeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
