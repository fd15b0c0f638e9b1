package generation

import (
	"errors"
	"fmt"
)

// Failure classes of a generation call. Callers match them with errors.Is.
var (
	ErrCredentialRequired = errors.New("credential required")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNetworkFailure     = errors.New("network failure")
	ErrRemote             = errors.New("remote error")
	ErrEmptyResponse      = errors.New("empty response")
	ErrMalformedPayload   = errors.New("malformed payload")
	ErrSchemaViolation    = errors.New("schema violation")
)

// NetworkError reports that no response reached the caller.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network failure: " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetworkFailure }

// RemoteError carries the message of a non-2xx response.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (status %d): %s", e.StatusCode, e.Message)
}

func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

// SchemaError names the required field that is missing or not a string.
type SchemaError struct {
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation: field %q missing or not a string", e.Field)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchemaViolation }

// Kind labels err for logs, metrics and the audit log. nil maps to "ok".
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCredentialRequired):
		return "credential_required"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNetworkFailure):
		return "network_failure"
	case errors.Is(err, ErrRemote):
		return "remote_error"
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, ErrSchemaViolation):
		return "schema_violation"
	default:
		return "internal"
	}
}
