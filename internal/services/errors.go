package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks missing or invalid settings. Fatal for the run,
	// never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrStorage marks database connection or transaction failures.
	ErrStorage = errors.New("storage error")
	// ErrExternalService marks feed or enrichment call failures.
	ErrExternalService = errors.New("external service error")
	// ErrLaunch marks a failure to start the background pipeline process.
	ErrLaunch = errors.New("launch error")
	// ErrValidation marks malformed input, e.g. a candidate the feed returned
	// without a usable identifier.
	ErrValidation = errors.New("validation error")
	// ErrTransient marks failures that are safe to retry.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
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

// IsRetryable reports whether an error is worth another attempt. Configuration
// and launch failures are terminal; storage and external failures are retried
// by the callers that own the retry budget.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrLaunch), errors.Is(err, ErrValidation):
		return false
	case errors.Is(err, ErrStorage), errors.Is(err, ErrExternalService), errors.Is(err, ErrTransient):
		return true
	default:
		return false
	}
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
