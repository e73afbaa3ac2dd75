package recovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cedarwud/stagegate/pkg/types"
)

// defaultPlans is the compiled-in plan library. Additional plans can be
// loaded from YAML at startup.
func defaultPlans() []types.RecoveryPlan {
	return []types.RecoveryPlan{
		{
			PlanID:    "eci_zero_coordinates",
			StageID:   "stage1_orbital_calculation",
			ErrorType: types.ErrAcademicViolation,
			Actions: []types.RecoveryActionKind{
				types.RecoveryDataCorrection,
				types.RecoveryConfigUpdate,
			},
			EstimatedDuration:  300,
			SuccessProbability: 0.9,
			ManualSteps: []string{
				"Check TLE data integrity",
				"Verify SGP4 computation parameters",
				"Confirm the time-base configuration",
			},
			AutomatedFixes: []types.AutomatedFix{
				{
					Action:      "update_time_base",
					Description: "Correct the time base to the TLE epoch time",
					Function:    "fix_time_base_configuration",
				},
				{
					Action:      "validate_tle_data",
					Description: "Validate and repair TLE records",
					Function:    "validate_and_fix_tle_data",
				},
			},
		},
		{
			PlanID:    "data_inconsistency",
			StageID:   "cross_stage",
			ErrorType: types.ErrDataQuality,
			Actions: []types.RecoveryActionKind{
				types.RecoveryRetry,
				types.RecoveryDataCorrection,
			},
			EstimatedDuration:  120,
			SuccessProbability: 0.7,
			ManualSteps: []string{
				"Check the data structure definitions",
				"Verify the transformation logic",
			},
			AutomatedFixes: []types.AutomatedFix{
				{
					Action:      "standardize_data_structure",
					Description: "Standardize the data structure across stages",
					Function:    "standardize_data_format",
				},
			},
		},
		{
			PlanID:    "validation_timeout",
			StageID:   "any",
			ErrorType: types.ErrPerformance,
			Actions: []types.RecoveryActionKind{
				types.RecoveryRetry,
				types.RecoveryConfigUpdate,
			},
			EstimatedDuration:  60,
			SuccessProbability: 0.8,
			ManualSteps: []string{
				"Check system resource usage",
				"Adjust the timeout settings",
			},
			AutomatedFixes: []types.AutomatedFix{
				{
					Action:      "increase_timeout",
					Description: "Increase the validation timeout",
					Function:    "adjust_timeout_configuration",
				},
			},
		},
	}
}

// LoadPlansFromDir reads every .yaml/.yml file in dir as a single plan or a
// list of plans and registers them into the manager. Extending the library
// is a configuration change, not a code change.
func (m *Manager) LoadPlansFromDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading plan dir %q: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	loaded := 0
	for _, name := range names {
		path := filepath.Join(dir, name)
		plans, err := loadPlanFile(path)
		if err != nil {
			return loaded, err
		}
		for _, p := range plans {
			if p.PlanID == "" {
				return loaded, fmt.Errorf("plan file %q: plan missing planId", path)
			}
			m.RegisterPlan(p)
			loaded++
		}
	}
	return loaded, nil
}

func loadPlanFile(path string) ([]types.RecoveryPlan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file %q: %w", path, err)
	}

	// A file holds either one plan document or a list of plans.
	var list []types.RecoveryPlan
	if err := yaml.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list, nil
	}

	var single types.RecoveryPlan
	if err := yaml.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("parsing plan file %q: %w", path, err)
	}
	return []types.RecoveryPlan{single}, nil
}
