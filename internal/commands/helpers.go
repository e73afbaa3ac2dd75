// Package commands implements the CLI subcommands for the stagegate binary.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cedarwud/stagegate/internal/alert"
	"github.com/cedarwud/stagegate/internal/config"
	"github.com/cedarwud/stagegate/internal/engine"
	"github.com/cedarwud/stagegate/internal/gate"
	"github.com/cedarwud/stagegate/internal/orchestrator"
	"github.com/cedarwud/stagegate/internal/recovery"
	"github.com/cedarwud/stagegate/internal/snapshot"
	"github.com/cedarwud/stagegate/internal/snapshot/dynamo"
	"github.com/cedarwud/stagegate/internal/snapshot/fs"
	"github.com/cedarwud/stagegate/internal/snapshot/memory"
	"github.com/cedarwud/stagegate/internal/snapshot/redis"
	"github.com/cedarwud/stagegate/internal/validator"
	"github.com/cedarwud/stagegate/pkg/types"
)

// cmdContext is the base context for one-shot commands.
func cmdContext() context.Context {
	return context.Background()
}

// dryRunConfig swaps the configured store for the in-memory one so
// configuration checks never require a live backend.
func dryRunConfig(cfg *types.ProjectConfig) *types.ProjectConfig {
	c := *cfg
	c.Store = "memory"
	c.Alerts = nil
	c.Archiver = nil
	return &c
}

// missingValidators returns validator names referenced by the given stages
// that are not present in the built-in registry.
func missingValidators(orch *orchestrator.Orchestrator, order []string) []string {
	reg := validator.NewRegistry()
	_ = registerBuiltins(reg)

	seen := make(map[string]bool)
	var missing []string
	for _, id := range order {
		stage, ok := orch.Stage(id)
		if !ok {
			continue
		}
		for _, name := range stage.Validators {
			if _, ok := reg.Get(name); !ok && !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
		}
	}
	return missing
}

// newStore creates the configured snapshot store.
func newStore(ctx context.Context, cfg *types.ProjectConfig) (snapshot.Store, error) {
	switch cfg.Store {
	case "memory":
		return memory.New(), nil
	case "fs":
		if cfg.FS == nil {
			return nil, fmt.Errorf("fs config is required when store is fs")
		}
		return fs.New(cfg.FS), nil
	case "redis":
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis config is required when store is redis")
		}
		return redis.New(cfg.Redis), nil
	case "dynamodb":
		if cfg.DynamoDB == nil {
			return nil, fmt.Errorf("dynamodb config is required when store is dynamodb")
		}
		return dynamo.New(ctx, cfg.DynamoDB)
	default:
		return nil, fmt.Errorf("unsupported store: %s", cfg.Store)
	}
}

// registerBuiltins installs the built-in validator set with defaults tuned
// for coordinate-bearing record payloads under the "satellites" key.
func registerBuiltins(reg *validator.Registry) error {
	builtins := []validator.Validator{
		validator.ZeroValueDetector{
			Field:            "satellites",
			ValueKeys:        []string{"x", "y", "z"},
			TolerancePercent: 1,
		},
		validator.StructureValidator{
			RequiredFields: []string{"satellites"},
		},
		validator.CompletenessChecker{
			Field:       "satellites",
			MinPercent:  95,
			WarnPercent: 98,
		},
		validator.ConsistencyChecker{
			Field:    "satellites",
			MinScore: 80,
		},
		validator.StatisticalRangeAnalyzer{
			Field:             "satellites",
			ValueKey:          "elevation",
			Min:               -90,
			Max:               90,
			MaxOutlierPercent: 5,
		},
	}
	for _, v := range builtins {
		if err := reg.Register(v); err != nil {
			return err
		}
	}
	return nil
}

// buildOrchestrator wires the full pipeline stack from project config:
// store, validators, engine, gatekeeper, recovery manager, alert dispatcher,
// and the stage definitions from the configured directories.
func buildOrchestrator(ctx context.Context, cfg *types.ProjectConfig) (*orchestrator.Orchestrator, snapshot.Store, func(), error) {
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := store.Start(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("starting snapshot store: %w", err)
	}
	cleanup := func() {
		_ = store.Stop(context.Background())
	}

	logger := slog.Default()

	reg := validator.NewRegistry()
	if err := registerBuiltins(reg); err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("registering validators: %w", err)
	}

	engineCfg := types.EngineConfig{}
	if cfg.Engine != nil {
		engineCfg = *cfg.Engine
	}
	eng := engine.New(reg, engineCfg, logger)

	rec := recovery.NewManager(logger)
	for _, dir := range cfg.PlanDirs {
		if _, err := rec.LoadPlansFromDir(dir); err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("loading recovery plans from %s: %w", dir, err)
		}
	}

	dispatcher, err := alert.NewDispatcher(cfg.Alerts, logger)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("creating alert dispatcher: %w", err)
	}

	policy := types.FailureStop
	if cfg.Engine != nil && cfg.Engine.FailurePolicy != "" {
		policy = cfg.Engine.FailurePolicy
	}

	orch := orchestrator.New(eng, gate.New(logger), rec, store, dispatcher.AlertFunc(), policy, logger)

	stages, err := config.LoadStages(cfg.StageDirs)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	for _, s := range stages {
		if err := orch.RegisterStage(s); err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("registering stage %s: %w", s.StageID, err)
		}
	}

	return orch, store, cleanup, nil
}
