package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/balu-bunny/lambdaTest/shared/handler"
)

// AuthError means no usable credential could be obtained. Retrying with the
// same configuration does not help.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return "auth: " + e.Reason
}

func (e *AuthError) Unwrap() error   { return e.Err }
func (e *AuthError) Code() string    { return handler.CodeAuth }
func (e *AuthError) Retryable() bool { return false }

// RemoteError is a non-2xx answer from the remote API.
type RemoteError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.Op)
	}
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.Op, e.Body)
}

func (e *RemoteError) Code() string { return handler.CodeRemote }

// Retryable is true for throttling and server side failures.
func (e *RemoteError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// TransientError covers network failures, timeouts and partial downloads.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error   { return e.Err }
func (e *TransientError) Code() string    { return handler.CodeTransient }
func (e *TransientError) Retryable() bool { return true }

// StorageError is a failed write to the ledger or the object store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error   { return e.Err }
func (e *StorageError) Code() string    { return handler.CodeStorage }
func (e *StorageError) Retryable() bool { return true }

// ValidationError rejects a stage input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Code() string    { return handler.CodeValidation }
func (e *ValidationError) Retryable() bool { return false }

type coded interface {
	error
	Code() string
	Retryable() bool
}

// CodeOf classifies err. Deadline and cancellation errors count as
// transient; anything unclassified is an internal, retryable failure.
func CodeOf(err error) (code string, retryable bool) {
	var c coded
	if errors.As(err, &c) {
		return c.Code(), c.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return handler.CodeTransient, true
	}
	return handler.CodeInternal, true
}
