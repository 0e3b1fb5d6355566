package aurelia

import (
	"errors"
	"fmt"
)

// TransportError reports a connection-level failure: a failed write, an
// unexpected read error, or an attempt to use a connection that is not open.
// Transport errors are retryable by reconnecting.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("aurelia: transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether the operation may succeed on a fresh connection.
func (e *TransportError) Retryable() bool { return true }

// ProtocolError reports a malformed or out-of-order frame received from the
// server. It is scoped to the owning context and is not retryable.
type ProtocolError struct {
	ContextID string
	Reason    string
}

func (e *ProtocolError) Error() string {
	if e.ContextID == "" {
		return fmt.Sprintf("aurelia: protocol error: %s", e.Reason)
	}
	return fmt.Sprintf("aurelia: protocol error on context %s: %s", e.ContextID, e.Reason)
}

// ServerError is an application-level rejection embedded in an error frame.
// It is terminal for the owning context and must not be retried: the server
// has already rejected the request deterministically.
type ServerError struct {
	ContextID  string
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("aurelia: server error on context %s: %s (status_code=%d)",
		e.ContextID, e.Message, e.StatusCode)
}

// Retryable always returns false for server errors.
func (e *ServerError) Retryable() bool { return false }

// AsServerError attempts to convert an error to a *ServerError.
func AsServerError(err error) (*ServerError, bool) {
	var e *ServerError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// DuplicateContextError reports an attempt to register a context ID that is
// still live or still inside its tombstone window. This is a caller bug and
// fails fast.
type DuplicateContextError struct {
	ContextID string
}

func (e *DuplicateContextError) Error() string {
	return fmt.Sprintf("aurelia: context %s already exists", e.ContextID)
}

// TimeoutError reports that a caller-supplied deadline expired or the caller
// cancelled while waiting on a connection or a delivery queue. The operation
// had no side effect on context state. Err preserves the underlying cause,
// so errors.Is distinguishes context.DeadlineExceeded from context.Canceled.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("aurelia: timed out waiting for %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("aurelia: timed out waiting for %s", e.Op)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ConnectionError reports that establishing the WebSocket connection failed
// after exhausting all backoff attempts.
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("aurelia: connection failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ErrClosed is the cause reported to contexts invalidated by an explicit
// Close of their connection.
var ErrClosed = errors.New("aurelia: connection closed")

// retryable reports whether a send/receive cycle may be retried on a fresh
// connection. Only transport-level failures qualify.
func retryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// wrapError wraps an error with a message.
func wrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
