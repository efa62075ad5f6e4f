package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeIntegrity    = "integrity"
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeInternal     = "internal"
)

var (
	// ErrIntegrity means a stored message failed the shape check; reads refuse
	// to serve the batch.
	ErrIntegrity = errors.New("invalid message data")
	// ErrAppend wraps a failure to add a message to the log.
	ErrAppend = errors.New("append message")
	// ErrClosed is returned once the hub has been shut down.
	ErrClosed = errors.New("hub closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

func coreError(code, msg string, err error) *CoreError {
	return &CoreError{Code: code, Message: msg, Err: err}
}

// ErrorCode extracts the domain code from err, or ErrCodeInternal.
func ErrorCode(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrCodeInternal
}
