package model

// ValidationLevel is the severity of a validation result.
type ValidationLevel string

const (
	LevelError   ValidationLevel = "error"
	LevelWarning ValidationLevel = "warning"
	LevelInfo    ValidationLevel = "info"
)

// ValidationResult is the outcome of one validator applied to one field or
// field pair. An error level always carries IsValid=false.
type ValidationResult struct {
	Field   string          `json:"field"`
	IsValid bool            `json:"is_valid"`
	Level   ValidationLevel `json:"level"`
	Message string          `json:"message"`
}
