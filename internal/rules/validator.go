package rules

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/campaign-autopilot/cap/internal/models"
)

// ruleSchema constrains the structural shape of a rule definition. Alias
// spellings of modes, operators, and action types are accepted here and
// folded by Normalize; semantic checks live in models.Rule.Validate.
const ruleSchema = `{
	"type": "object",
	"required": ["id", "name", "execution_mode"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 1},
		"user_id": {"type": "string"},
		"priority": {"type": "integer"},
		"notify_on_trigger": {"type": "boolean"},
		"execution_mode": {"type": "string", "minLength": 1},
		"interval_seconds": {"type": "integer", "minimum": 0},
		"selected_times": {
			"type": "array",
			"items": {"type": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"}
		},
		"selected_days": {
			"type": "array",
			"items": {"type": "string"}
		},
		"campaign_assignments": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["store_id"],
				"properties": {
					"store_id": {"type": "string", "minLength": 1},
					"campaign_ids": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"condition_groups": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["conditions"],
				"properties": {
					"logical_operator": {"type": "string"},
					"conditions": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["metric", "operator", "threshold"],
							"properties": {
								"metric": {"type": "string", "minLength": 1},
								"operator": {"type": "string", "minLength": 1},
								"threshold": {"type": "string", "minLength": 1}
							}
						}
					}
				}
			}
		},
		"actions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["type"],
				"properties": {
					"type": {"type": "string", "minLength": 1},
					"amount": {"type": "string"},
					"message": {"type": "string"},
					"label": {"type": "string"}
				}
			}
		}
	}
}`

// Validator checks rule definitions against the JSON Schema
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the rule schema
func NewValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(ruleSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile rule schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// ValidateRule validates one rule's structure
func (v *Validator) ValidateRule(rule *models.Rule) error {
	doc, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to marshal rule: %w", err)
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("validation failed: %v", errs)
	}

	return nil
}
