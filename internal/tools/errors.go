package tools

import (
	"fmt"
	"strings"
)

// UnknownToolError is returned when resolving a name that was never registered
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// DuplicateToolError is returned when a name is registered twice
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q already registered", e.Name)
}

// MissingRequiredParameterError lists the required parameters absent from a payload
type MissingRequiredParameterError struct {
	Tool    string
	Missing []string
}

func (e *MissingRequiredParameterError) Error() string {
	return fmt.Sprintf("tool %q missing required parameters: %s", e.Tool, strings.Join(e.Missing, ", "))
}

// PayloadParseError wraps a failure to decode model output as a JSON object
type PayloadParseError struct {
	Raw   string
	Cause error
}

func (e *PayloadParseError) Error() string {
	return fmt.Sprintf("malformed payload: %v", e.Cause)
}

func (e *PayloadParseError) Unwrap() error {
	return e.Cause
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
