// Package errors provides coded, user-facing errors for configuration and
// CLI failures. Each code carries a registered message plus an optional
// detail and hint, so the operator sees what broke and how to fix it
// instead of a bare Go error string.
package errors

import (
	"fmt"
	"strings"
)

// Category groups error codes by subsystem.
type Category string

const (
	CategoryConfig  Category = "config"
	CategorySource  Category = "source"
	CategoryNetwork Category = "network"
	CategoryCLI     Category = "cli"
)

// CastError is a structured error with a stable code, a registered
// message and optional operator-facing detail.
type CastError struct {
	Code       string
	Category   Category
	Message    string
	Detail     string
	Suggestion string
	Wrapped    error
}

// New creates an error from a registered code. Unknown codes yield a
// generic error carrying the code, so a missing registry entry never
// masks the original failure.
func New(code string) *CastError {
	t, ok := registry[code]
	if !ok {
		return &CastError{Code: code, Category: CategoryCLI, Message: "unknown error"}
	}
	return &CastError{
		Code:       code,
		Category:   t.Category,
		Message:    t.Message,
		Suggestion: t.Suggestion,
	}
}

// Newf creates an unregistered error with a formatted message.
func Newf(category Category, format string, args ...any) *CastError {
	return &CastError{Category: category, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *CastError) Error() string {
	var b strings.Builder
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Wrapped != nil {
		b.WriteString(": ")
		b.WriteString(e.Wrapped.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped error.
func (e *CastError) Unwrap() error {
	return e.Wrapped
}

// WithDetail attaches a longer explanation.
func (e *CastError) WithDetail(d string) *CastError {
	e.Detail = d
	return e
}

// WithSuggestion overrides the registered hint.
func (e *CastError) WithSuggestion(s string) *CastError {
	e.Suggestion = s
	return e
}

// Wrap attaches the underlying error.
func (e *CastError) Wrap(err error) *CastError {
	e.Wrapped = err
	return e
}

// Format renders the error for terminal output, one block with the code,
// message, detail and hint.
func (e *CastError) Format() string {
	var b strings.Builder
	if e.Code != "" {
		fmt.Fprintf(&b, "%s: %s\n", e.Code, e.Message)
	} else {
		fmt.Fprintf(&b, "ERROR: %s\n", e.Message)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, "  %s\n", e.Detail)
	}
	if e.Wrapped != nil {
		fmt.Fprintf(&b, "  cause: %s\n", e.Wrapped.Error())
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, "  hint: %s\n", e.Suggestion)
	}
	return b.String()
}
