package apperrors

import (
	"fmt"
	"strings"
)

// Violation codes carried on individual field violations.
const (
	CodeMissingRequired     = "MISSING_REQUIRED"
	CodeTooShort            = "TOO_SHORT"
	CodeTooLong             = "TOO_LONG"
	CodeNotANumber          = "NOT_A_NUMBER"
	CodeBelowMinimum        = "BELOW_MINIMUM"
	CodeAboveMaximum        = "ABOVE_MAXIMUM"
	CodePatternMismatch     = "PATTERN_MISMATCH"
	CodeInvalidChoice       = "INVALID_CHOICE"
	CodeConsentRequired     = "CONSENT_REQUIRED"
	CodeSignatureRequired   = "SIGNATURE_REQUIRED"
	CodeAttestationRequired = "ATTESTATION_REQUIRED"
	CodeInvalidInput        = "INVALID_INPUT"
)

// Violation is one failed check on one field or question.
type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError carries the full batch of violations from one request.
// Validation collects every failure and fails once with the complete list,
// never one at a time.
type ValidationError struct {
	Violations []Violation
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s: %s", v.Field, v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends one violation.
func (e *ValidationError) Add(field, code, message string) {
	e.Violations = append(e.Violations, Violation{Field: field, Code: code, Message: message})
}

// HasViolations reports whether any violation was recorded.
func (e *ValidationError) HasViolations() bool {
	return len(e.Violations) > 0
}

// NewValidation builds a single-violation error for simple input failures.
func NewValidation(field, code, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, code, message)
	return v
}
