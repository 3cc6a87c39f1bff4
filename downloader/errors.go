package downloader

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindInvalidInput
	KindConfiguration
	KindProcess
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindConfiguration:
		return "configuration"
	case KindProcess:
		return "process"
	case KindNotFound:
		return "not_found"
	default:
		return "unexpected"
	}
}

// Error is returned by every Service operation. Message is safe to show
// to callers; Stdout and Stderr hold captured child output for logs.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode maps the error kind to an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

const noFileMessage = "No file was downloaded."

func InvalidInput(op string, err error, message string) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: message, Err: err}
}

func ConfigurationError(op, tool, path string) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Op:      op,
		Message: fmt.Sprintf("%s not found at: %s", tool, path),
	}
}

func ProcessError(op string, err error, stdout, stderr []byte) *Error {
	return &Error{
		Kind:    KindProcess,
		Op:      op,
		Message: fmt.Sprintf("Error downloading track: %v", err),
		Stdout:  string(stdout),
		Stderr:  string(stderr),
		Err:     err,
	}
}

func NotFound(op string, err error) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: noFileMessage, Err: err}
}

func Unexpected(op string, err error) *Error {
	return &Error{
		Kind:    KindUnexpected,
		Op:      op,
		Message: fmt.Sprintf("Internal server error: %v", err),
		Err:     err,
	}
}

// AsError returns err as *Error, wrapping anything else as unexpected.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Unexpected("unknown", err)
}
