package models

import (
	"fmt"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// Common errors
var (
	// Rule errors
	ErrRuleNotFound      = fmt.Errorf("rule not found")
	ErrUnknownMode       = fmt.Errorf("unknown execution mode")
	ErrUnknownMetric     = fmt.Errorf("unknown metric")
	ErrUnknownOperator   = fmt.Errorf("unknown operator")
	ErrUnknownActionType = fmt.Errorf("unknown action type")

	// Credential errors
	ErrCredentialsNotFound = fmt.Errorf("credentials not found")

	// Control service errors
	ErrControlTimeout   = fmt.Errorf("control service call timed out")
	ErrControlRejected  = fmt.Errorf("control service rejected the request")
	ErrCampaignNotFound = fmt.Errorf("campaign not found")

	// Storage errors
	ErrNotFound    = fmt.Errorf("record not found")
	ErrConnection  = fmt.Errorf("database connection error")
	ErrTransaction = fmt.Errorf("transaction error")
)

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return err == ErrNotFound || err == ErrRuleNotFound ||
		err == ErrCredentialsNotFound || err == ErrCampaignNotFound
}

// IsValidationError checks if error is a validation error
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(ValidationError)
	return ok
}
