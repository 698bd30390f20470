package workflow

import (
	"fmt"
	"strings"

	"github.com/ci-shared/workflow-secrets/pkg/logger"
)

var errorHelpersLog = logger.New("workflow:error_helpers")

// ConfigError is an invalid policy or option. It is fatal for the whole run,
// unlike per-file parse errors.
type ConfigError struct {
	File       string // Policy file, empty for command-line options
	Line       int
	Column     int
	Field      string
	Reason     string
	Suggestion string
	Cause      error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	var b strings.Builder

	switch {
	case e.File != "" && e.Line > 0:
		fmt.Fprintf(&b, "%s:%d:%d: ", e.File, e.Line, e.Column)
	case e.File != "":
		fmt.Fprintf(&b, "%s: ", e.File)
	}

	if e.Field != "" {
		fmt.Fprintf(&b, "invalid %s: ", e.Field)
	}
	b.WriteString(e.Reason)

	if e.Suggestion != "" {
		fmt.Fprintf(&b, " (%s)", e.Suggestion)
	}
	return b.String()
}

// Unwrap returns the underlying cause
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a configuration error for field.
func NewConfigError(field, reason, suggestion string) *ConfigError {
	errorHelpersLog.Printf("Creating config error: field=%s, reason=%s", field, reason)
	return &ConfigError{
		Field:      field,
		Reason:     reason,
		Suggestion: suggestion,
	}
}
