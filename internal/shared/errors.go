package shared

import "fmt"

// ConfigError reports an empty or structurally invalid input that prevents an
// engine component from being built.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s", e.Reason)
}

// NotFoundError reports an unknown id passed to a hard lookup.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ValidationError reports a malformed record or argument.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Reason)
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}
