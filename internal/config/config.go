// Package config handles loading and validation of stagegate.yaml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cedarwud/stagegate/pkg/types"
)

// Load reads and parses stagegate.yaml from the given directory.
func Load(dir string) (*types.ProjectConfig, error) {
	path := filepath.Join(dir, "stagegate.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *types.ProjectConfig) error {
	switch cfg.Store {
	case "":
		return fmt.Errorf("store is required")
	case "memory":
	case "fs":
		if cfg.FS == nil || cfg.FS.Dir == "" {
			return fmt.Errorf("fs.dir is required when store is fs")
		}
	case "redis":
		if cfg.Redis == nil || cfg.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when store is redis")
		}
	case "dynamodb":
		if cfg.DynamoDB == nil || cfg.DynamoDB.TableName == "" {
			return fmt.Errorf("dynamodb.tableName is required when store is dynamodb")
		}
	default:
		return fmt.Errorf("unsupported store: %s", cfg.Store)
	}

	if len(cfg.StageDirs) == 0 {
		return fmt.Errorf("at least one stageDir is required")
	}

	if cfg.Archiver != nil && cfg.Archiver.Enabled {
		if cfg.Archiver.DSN == "" {
			return fmt.Errorf("archiver.dsn is required when archiver is enabled")
		}
		if cfg.Archiver.Interval != "" {
			if _, err := time.ParseDuration(cfg.Archiver.Interval); err != nil {
				return fmt.Errorf("archiver.interval: %w", err)
			}
		}
	}

	return nil
}

// ArchiverInterval parses the configured archival interval, or zero when unset.
func ArchiverInterval(cfg *types.ArchiverConfig) time.Duration {
	if cfg == nil || cfg.Interval == "" {
		return 0
	}
	d, _ := time.ParseDuration(cfg.Interval)
	return d
}

// LoadStageDir loads all stage definition YAML files from a directory.
// Missing directories are treated as empty.
func LoadStageDir(dir string) ([]types.ExecutionStage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var stages []types.ExecutionStage
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}

		var s types.ExecutionStage
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}

		if s.StageID == "" {
			continue
		}
		stages = append(stages, s)
	}

	return stages, nil
}

// LoadStages loads stage definitions from all configured directories.
func LoadStages(dirs []string) ([]types.ExecutionStage, error) {
	var stages []types.ExecutionStage
	seen := make(map[string]string)
	for _, dir := range dirs {
		loaded, err := LoadStageDir(dir)
		if err != nil {
			return nil, fmt.Errorf("loading stages from %s: %w", dir, err)
		}
		for _, s := range loaded {
			if prev, ok := seen[s.StageID]; ok {
				return nil, fmt.Errorf("duplicate stage %s (already defined in %s)", s.StageID, prev)
			}
			seen[s.StageID] = dir
			stages = append(stages, s)
		}
	}
	return stages, nil
}
