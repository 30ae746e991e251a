package cdp

import (
	"errors"
	"fmt"
)

// ErrClosed is returned for every command that can no longer complete because
// the connection or its mailbox is gone.
var ErrClosed = errors.New("cdp connection closed")

var ErrStreamClosed = errors.New("event stream closed")

// ProtocolError is a structured error returned by the remote side for a command.
type ProtocolError struct {
	Method  string
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (obj *ProtocolError) Error() string {
	if obj.Data != "" {
		return fmt.Sprintf("%s: %s (%d): %s", obj.Method, obj.Message, obj.Code, obj.Data)
	}
	return fmt.Sprintf("%s: %s (%d)", obj.Method, obj.Message, obj.Code)
}

type closedError struct {
	cause error
}

func (obj *closedError) Error() string {
	if obj.cause == nil {
		return ErrClosed.Error()
	}
	return ErrClosed.Error() + ": " + obj.cause.Error()
}
func (obj *closedError) Is(target error) bool {
	return target == ErrClosed
}
func (obj *closedError) Unwrap() error {
	return obj.cause
}

func closedWith(cause error) error {
	if cause == nil || errors.Is(cause, ErrClosed) {
		if cause == nil {
			return ErrClosed
		}
		return cause
	}
	return &closedError{cause: cause}
}
