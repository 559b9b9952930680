package common

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrTimeout         = errors.New("operation timed out")
	ErrOperationFailed = errors.New("operation failed")
	ErrTooLarge        = errors.New("argument too large")
	ErrNotConnected    = errors.New("server not connected")
)

// Kind classifies every error that leaves the dispatcher.
type Kind string

const (
	KindNotConnected     Kind = "NotConnected"
	KindMethodNotFound   Kind = "MethodNotFound"
	KindInvalidArguments Kind = "InvalidArguments"
	KindArgumentTooLarge Kind = "ArgumentTooLarge"
	KindOperationFailed  Kind = "OperationFailed"
	KindInternalError    Kind = "InternalError"
)

// JSON-RPC error codes.
const (
	CodeNotConnected   = -32002
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// RPCCode returns the JSON-RPC error code used for the kind.
func (k Kind) RPCCode() int {
	switch k {
	case KindNotConnected:
		return CodeNotConnected
	case KindMethodNotFound:
		return CodeMethodNotFound
	case KindInvalidArguments, KindArgumentTooLarge:
		return CodeInvalidParams
	default:
		return CodeInternalError
	}
}

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports a match against another *Error of the same kind, so callers
// can write errors.Is(err, &Error{Kind: KindMethodNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func (e *Error) RPCCode() int {
	return e.Kind.RPCCode()
}

func (e *Error) RPCMessage() string {
	return e.Message
}

func (e *Error) RPCData() interface{} {
	return map[string]interface{}{
		"kind":    string(e.Kind),
		"message": e.Message,
	}
}

func NewError(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsError returns err as a typed error. Errors that are not already typed
// become InternalError.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return NewError(KindInternalError, err.Error(), err)
}

// KindOf returns the kind of err, or the empty kind for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return AsError(err).Kind
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
