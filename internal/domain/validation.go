package domain

// ValidationResult is the outcome of validating one message.
type ValidationResult struct {
	MessageID string            `json:"messageId"`
	IsValid   bool              `json:"isValid"`
	Errors    []ValidationError `json:"errors,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
}

// AddError records an error and marks the result invalid.
func (r *ValidationResult) AddError(code ValidationCode, field, msg string) {
	r.Errors = append(r.Errors, ValidationError{Code: code, Field: field, Message: msg})
	r.IsValid = false
}

// AddWarning records a non-blocking finding.
func (r *ValidationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// HasCode reports whether any error carries the given code.
func (r ValidationResult) HasCode(code ValidationCode) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// ValidationSummary aggregates a batch of validation results.
type ValidationSummary struct {
	TotalMessages   int     `json:"totalMessages"`
	ValidMessages   int     `json:"validMessages"`
	InvalidMessages int     `json:"invalidMessages"`
	TotalErrors     int     `json:"totalErrors"`
	TotalWarnings   int     `json:"totalWarnings"`
	ValidationRate  float64 `json:"validationRate"` // percent
}

// IssueCount is a frequency entry for a recurring error or warning.
type IssueCount struct {
	Issue string `json:"issue"`
	Count int    `json:"count"`
}

// CommonIssues lists the most frequent errors and warnings, most frequent first.
type CommonIssues struct {
	Errors   []IssueCount `json:"errors"`
	Warnings []IssueCount `json:"warnings"`
}
