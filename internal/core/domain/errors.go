package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown platform, backend or extractor type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// Authentication Errors.

	// ErrAuthRequired indicates an integration requires authentication but none is configured.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthInvalid indicates the authentication credentials are invalid.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrAuthorizationTimeout indicates consent did not complete in time.
	ErrAuthorizationTimeout = errors.New("authorization timeout")

	// ErrHandshakeExpired indicates the authoriser no longer knows a pending handshake.
	ErrHandshakeExpired = errors.New("handshake expired")

	// ErrAuthorizationFailed indicates the authoriser rejected the handshake.
	ErrAuthorizationFailed = errors.New("authorization failed")

	// Invocation Errors.

	// ErrShapeMismatch indicates a call strategy does not match the platform's
	// call signature. The next strategy should be tried.
	ErrShapeMismatch = errors.New("call shape mismatch")

	// ErrNoCompatibleInvocationStrategy indicates every strategy failed with a shape mismatch.
	ErrNoCompatibleInvocationStrategy = errors.New("no compatible invocation strategy")

	// ErrIntegration indicates the integration or platform rejected a call.
	ErrIntegration = errors.New("integration error")

	// Pipeline Errors.

	// ErrArtifactNotFound indicates no downloaded file could be located.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrNoRecordsExtracted indicates the document produced no lessons.
	ErrNoRecordsExtracted = errors.New("no records extracted")

	// ErrDownstreamWrite indicates a per-record downstream write failed.
	ErrDownstreamWrite = errors.New("downstream write failed")

	// ErrExtractorNotFound indicates the external text extraction tool is missing.
	ErrExtractorNotFound = errors.New("text extraction tool not found")
)

// ShapeError reports that one call strategy did not fit the platform.
type ShapeError struct {
	Strategy string
	Err      error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("strategy %s: shape mismatch: %v", e.Strategy, e.Err)
}

func (e *ShapeError) Unwrap() error { return e.Err }

// Is matches ErrShapeMismatch.
func (e *ShapeError) Is(target error) bool { return target == ErrShapeMismatch }

// NewShapeError wraps err as a shape mismatch for the named strategy.
func NewShapeError(strategy string, err error) *ShapeError {
	return &ShapeError{Strategy: strategy, Err: err}
}

// InvocationError reports that no strategy could invoke an operation.
type InvocationError struct {
	Operation   string
	Integration IntegrationID
	Tried       int
	Attempts    []error
}

func (e *InvocationError) Error() string {
	msg := fmt.Sprintf("%s: %s on %s after %d strategies",
		ErrNoCompatibleInvocationStrategy, e.Operation, e.Integration, e.Tried)
	if len(e.Attempts) > 0 {
		parts := make([]string, len(e.Attempts))
		for i, err := range e.Attempts {
			parts[i] = err.Error()
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	return msg
}

// Is matches ErrNoCompatibleInvocationStrategy.
func (e *InvocationError) Is(target error) bool {
	return target == ErrNoCompatibleInvocationStrategy
}

// IntegrationError carries a platform or integration failure verbatim.
type IntegrationError struct {
	Operation   string
	Integration IntegrationID
	Strategy    string
	Message     string
	Err         error
}

func (e *IntegrationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s on %s: %s", e.Operation, e.Integration, msg)
}

func (e *IntegrationError) Unwrap() error { return e.Err }

// Is matches ErrIntegration.
func (e *IntegrationError) Is(target error) bool { return target == ErrIntegration }

// ArtifactError reports that no strategy located the downloaded file.
type ArtifactError struct {
	Directory string
	Extension string
	Attempted []string
	Excerpt   string
}

func (e *ArtifactError) Error() string {
	msg := fmt.Sprintf("%s: no %s file in %s (tried %s)",
		ErrArtifactNotFound, e.Extension, e.Directory, strings.Join(e.Attempted, ", "))
	if e.Excerpt != "" {
		msg += "\npayload:\n" + e.Excerpt
	}
	return msg
}

// Is matches ErrArtifactNotFound.
func (e *ArtifactError) Is(target error) bool { return target == ErrArtifactNotFound }

// AuthorizationTimeoutError reports a consent flow that did not complete in time.
// The connection is left pending so a later run can resume it.
type AuthorizationTimeoutError struct {
	Integration IntegrationID
	UserID      string
	Timeout     time.Duration
}

func (e *AuthorizationTimeoutError) Error() string {
	return fmt.Sprintf("%s: %s for user %s after %s", ErrAuthorizationTimeout, e.Integration, e.UserID, e.Timeout)
}

// Is matches ErrAuthorizationTimeout.
func (e *AuthorizationTimeoutError) Is(target error) bool { return target == ErrAuthorizationTimeout }

// RecordWriteError is a non-fatal failure writing one record downstream.
type RecordWriteError struct {
	Index       int
	Name        string
	Target      string
	Operation   string
	Integration IntegrationID
	Err         error
}

func (e *RecordWriteError) Error() string {
	return fmt.Sprintf("record %d (%s): %s write via %s: %v", e.Index, e.Name, e.Target, e.Operation, e.Err)
}

func (e *RecordWriteError) Unwrap() error { return e.Err }

// Is matches ErrDownstreamWrite.
func (e *RecordWriteError) Is(target error) bool { return target == ErrDownstreamWrite }

// StageError records the pipeline stage a fatal error happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
