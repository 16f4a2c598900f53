// Package rules loads and validates rule definition files. The worker
// reads rules from the database; these files serve the CLI's validate and
// dry-run commands, and fixtures.
package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/campaign-autopilot/cap/internal/models"
)

// File is the on-disk rule bundle
type File struct {
	Rules []models.Rule `yaml:"rules"`
}

// LoadFile loads, normalizes, and validates a rules YAML file
func LoadFile(path string) ([]models.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("rules file contains no rules")
	}

	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(file.Rules))
	for i := range file.Rules {
		rule := &file.Rules[i]
		rule.Normalize()
		if seen[rule.ID] {
			return nil, fmt.Errorf("duplicate rule id: %s", rule.ID)
		}
		seen[rule.ID] = true

		if err := validator.ValidateRule(rule); err != nil {
			return nil, fmt.Errorf("invalid rule %s: %w", rule.ID, err)
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("invalid rule %s: %w", rule.ID, err)
		}
	}

	return file.Rules, nil
}

// LoadSnapshots loads a campaign metrics snapshot file for dry runs:
// campaign id mapped to metric name/value pairs.
func LoadSnapshots(path string) (map[string]models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var raw map[string]map[string]float64
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot file: %w", err)
	}

	snapshots := make(map[string]models.Snapshot, len(raw))
	for campaignID, values := range raw {
		snap := make(models.Snapshot, len(values))
		for name, value := range values {
			metric, ok := models.ParseMetric(name)
			if !ok {
				return nil, fmt.Errorf("campaign %s: unknown metric %q", campaignID, name)
			}
			snap[metric] = value
		}
		snapshots[campaignID] = snap
	}
	return snapshots, nil
}
