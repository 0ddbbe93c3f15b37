package domain

import "fmt"

// InputError reports an unusable input series: non-monotonic timestamps, a record
// too short to resolve any constituent, or a missing-data policy violation.
type InputError struct {
	Op  string
	Msg string
}

func (e *InputError) Error() string {
	if e.Op == "" {
		return "input error: " + e.Msg
	}
	return fmt.Sprintf("input error: %s: %s", e.Op, e.Msg)
}

// NewInputError builds an InputError with a formatted message.
func NewInputError(op, format string, args ...any) *InputError {
	return &InputError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// FitError reports a least-squares solve that did not produce a usable answer.
type FitError struct {
	Msg string
	Err error
}

func (e *FitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fit error: %s: %v", e.Msg, e.Err)
	}
	return "fit error: " + e.Msg
}

func (e *FitError) Unwrap() error { return e.Err }

// NewFitError builds a FitError with a formatted message.
func NewFitError(format string, args ...any) *FitError {
	return &FitError{Msg: fmt.Sprintf(format, args...)}
}

// ConfigurationError reports an unknown task, filter or padding name, or an
// out-of-range option. It is raised before any computation starts.
type ConfigurationError struct {
	Name  string
	Value string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s=%q: %s", e.Name, e.Value, e.Msg)
}

// NewConfigurationError builds a ConfigurationError.
func NewConfigurationError(name, value, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Name: name, Value: value, Msg: fmt.Sprintf(format, args...)}
}
