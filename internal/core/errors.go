package core

import (
	"errors"
	"fmt"
)

// Ledger errors.
var (
	ErrDuplicateAccount      = errors.New("account id already exists")
	ErrInvalidPartition      = errors.New("unknown ledger partition")
	ErrAccountNotFound       = errors.New("referenced account not found")
	ErrDuplicateTransferID   = errors.New("transfer id already exists")
	ErrLinkedOperationFailed = errors.New("linked transfer batch failed")
)

// Aggregator errors.
var (
	ErrTraceNotFound    = errors.New("trace not found")
	ErrTraceNotComplete = errors.New("trace is not complete")
)

// Engine errors.
var ErrEvaluationTimeout = errors.New("rule evaluation exceeded its budget")

// Key management errors.
var (
	ErrKeyProviderUnavailable = errors.New("key provider unavailable")
	ErrSigningKeyUnavailable  = errors.New("signing key unavailable")
	ErrKeyNotFound            = errors.New("key not found")
)

// Evidence errors.
var (
	ErrMissingTenantID     = errors.New("evidence requires a tenant id")
	ErrMissingTraceContext = errors.New("evidence requires a trace context")
)

// Signal errors.
var (
	ErrSignalNotFound          = errors.New("signal not found")
	ErrInvalidStatusTransition = errors.New("invalid signal status transition")
)

// MalformedSpanError rejects a span at the ingestion boundary.
type MalformedSpanError struct {
	Reason string
}

func (e MalformedSpanError) Error() string {
	return fmt.Sprintf("malformed span: %s", e.Reason)
}

// SyntaxError reports where rule compilation failed in the source.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Line, e.Column, e.Message)
}

// SemanticError reports a well-formed rule that references something
// outside the span environment.
type SemanticError struct {
	Reason string
}

func (e SemanticError) Error() string {
	return fmt.Sprintf("semantic error: %s", e.Reason)
}

// RetryableError marks a failure the caller should retry. Signal and
// evidence persistence surface these instead of degrading silently.
type RetryableError struct {
	Err error
}

func (e RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err carries a RetryableError.
func IsRetryable(err error) bool {
	var re RetryableError
	return errors.As(err, &re)
}
