package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrContract marks a dependency-shape violation. Never retried.
	ErrContract = errors.New("dependency contract violation")
	// ErrNotImplemented marks a sub-operation without a processor branch.
	ErrNotImplemented = errors.New("not implemented")
	// ErrProvider marks a failure reported by an external provider.
	ErrProvider      = errors.New("provider error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later failure classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails summarizes an error for persistence and operator display.
type ErrorDetails struct {
	Kind      string
	Message   string
	Retriable bool
}

// Details classifies err. Timeouts, transient failures, and provider
// throttling or server errors are retriable; everything else requires a code
// or data fix before another attempt makes sense.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Message: strings.TrimSpace(err.Error())}
	var provider *ProviderError
	switch {
	case errors.Is(err, ErrContract):
		details.Kind = "contract"
	case errors.Is(err, ErrNotImplemented):
		details.Kind = "not_implemented"
	case errors.Is(err, ErrValidation):
		details.Kind = "validation"
	case errors.Is(err, ErrConfiguration):
		details.Kind = "configuration"
	case errors.Is(err, ErrNotFound):
		details.Kind = "not_found"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		details.Kind = "timeout"
		details.Retriable = true
	case errors.As(err, &provider):
		details.Kind = "provider"
		details.Retriable = provider.Status == http.StatusTooManyRequests || provider.Status >= http.StatusInternalServerError
	case errors.Is(err, ErrProvider):
		details.Kind = "provider"
	case errors.Is(err, ErrTransient):
		details.Kind = "transient"
		details.Retriable = true
	default:
		details.Kind = "unknown"
	}
	return details
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
