package js

import (
	"errors"
	"fmt"

	"github.com/gospider007/cdpjs/cdp"
)

var (
	// ErrUnexpectedValue reports a reply that broke an invariant the evaluator relies on.
	ErrUnexpectedValue = errors.New("unexpected value")
	// ErrSerialization wraps native <-> JSON conversion failures.
	ErrSerialization      = errors.New("serialization error")
	ErrNoExecutionContext = errors.New("No execution context found")
)

// ExceptionError is returned when the evaluated code itself threw.
type ExceptionError struct {
	Details cdp.ExceptionDetails
}

func (obj *ExceptionError) Error() string {
	msg := obj.Details.Text
	if obj.Details.Exception != nil && obj.Details.Exception.Description != "" {
		msg = obj.Details.Exception.Description
	}
	return fmt.Sprintf("javascript exception at %d:%d: %s", obj.Details.LineNumber, obj.Details.ColumnNumber, msg)
}

func unexpected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnexpectedValue, fmt.Sprintf(format, args...))
}

func serialization(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrSerialization, err)
}
