package core

import (
	"errors"
	"fmt"
)

// Error codes, stable across releases. Every typed error maps to exactly one.
const (
	CodeNotFound               = "not_found"
	CodeInvalidInput           = "invalid_input"
	CodeInvalidState           = "invalid_state"
	CodeExternalServiceFailure = "external_service_failure"
	CodeStorageUnavailable     = "storage_unavailable"
)

// NotFoundError means a snapshot, dashboard, or credential does not exist or
// is not visible to the caller's org.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// InvalidInputError means an identifier was malformed or a required field
// was missing.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// InvalidStateError means the entity exists but is not usable, e.g. a
// credential marked inactive.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return "invalid state: " + e.Reason
}

// ExternalServiceError means the third-party API returned an error, timed
// out, or returned malformed data. Always tagged with the service name.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// StorageUnavailableError means the blob store or snapshot repository is
// unreachable. Retryable; retry policy belongs to the caller.
type StorageUnavailableError struct {
	Op  string
	Err error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable during %s: %v", e.Op, e.Err)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Err }

// ErrorCode returns the stable code for a typed error, or "" for errors
// outside the taxonomy.
func ErrorCode(err error) string {
	var (
		nf *NotFoundError
		ii *InvalidInputError
		is *InvalidStateError
		es *ExternalServiceError
		su *StorageUnavailableError
	)
	switch {
	case errors.As(err, &nf):
		return CodeNotFound
	case errors.As(err, &ii):
		return CodeInvalidInput
	case errors.As(err, &is):
		return CodeInvalidState
	case errors.As(err, &es):
		return CodeExternalServiceFailure
	case errors.As(err, &su):
		return CodeStorageUnavailable
	}
	return ""
}

// IsNotFound reports whether err is a NotFoundError anywhere in its chain.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
