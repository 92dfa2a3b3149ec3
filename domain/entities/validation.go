package entities

// ValidationResult represents the outcome of a payload validation.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// ValidationError represents a specific validation error. Field is the JSON
// pointer of the offending value, empty for the document root.
type ValidationError struct {
	Field   string
	Message string
}
