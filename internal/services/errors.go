package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable marks network or timeout failures against an external
	// service. Callers retry with bounded backoff and otherwise skip the unit
	// of work; the error is never fatal to the process.
	ErrUnavailable = errors.New("external service unavailable")
	// ErrNotFound marks lookups that returned nothing.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed input, including oracle tool arguments.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or unusable credentials/settings.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether the error is worth another attempt against the
// same external service.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
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
