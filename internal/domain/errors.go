package domain

import (
	"errors"
	"fmt"
	"strings"
)

// RowErrorCode identifies a validation failure for a single cell or field.
// Codes are stored verbatim in upload_errors.error_message so batch reports
// stay machine-addressable.
type RowErrorCode string

const (
	RowErrMissingRequiredField RowErrorCode = "MissingRequiredField"
	RowErrInvalidEmail         RowErrorCode = "InvalidEmail"
	RowErrInvalidURL           RowErrorCode = "InvalidURL"
	RowErrInvalidInteger       RowErrorCode = "InvalidInteger"
	RowErrInvalidEnumValue     RowErrorCode = "InvalidEnumValue"
	RowErrInvalidYear          RowErrorCode = "InvalidYear"
	RowErrUnknownSegment       RowErrorCode = "UnknownSegment"
	RowErrUnknownCompany       RowErrorCode = "UnknownCompany"
	RowErrDuplicateCompany     RowErrorCode = "DuplicateCompany"
	RowErrDuplicateContact     RowErrorCode = "DuplicateContact"
	RowErrPersistenceFailure   RowErrorCode = "PersistenceFailure"
)

// RowError is a single per-field validation failure. One invalid row may carry
// several of these; none of them abort the batch.
type RowError struct {
	RowNumber int          `json:"rowNumber"`
	Column    string       `json:"column"`
	Value     string       `json:"value"`
	Code      RowErrorCode `json:"code"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d, column %s: %s", e.RowNumber, e.Column, e.Code)
}

// ConfigurationError signals a misconfigured schema registry request, e.g. an
// unknown entity type. Fatal for the operation, never recoverable per-row.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// NewConfigurationError formats a configuration error.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// BatchError aborts a whole import before or during row processing. It is the
// single terminating reason reported for a failed batch.
type BatchError struct {
	Reason        string
	MissingFields []string
	Cause         error
}

func (e *BatchError) Error() string {
	if len(e.MissingFields) > 0 {
		return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.MissingFields, ", "))
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
	}
	return e.Reason
}

func (e *BatchError) Unwrap() error { return e.Cause }

// NewUnmappedFieldsError reports required canonical fields that no source
// column covers. This aborts the batch before any row is processed.
func NewUnmappedFieldsError(fields []string) *BatchError {
	return &BatchError{Reason: "required fields unmapped", MissingFields: fields}
}

// TransitionErrorCode classifies a rejected lifecycle transition.
type TransitionErrorCode string

const (
	TransitionForbidden TransitionErrorCode = "Forbidden"
	TransitionInvalid   TransitionErrorCode = "InvalidTransition"
	TransitionNotFound  TransitionErrorCode = "NotFound"
)

// TransitionError rejects a lifecycle transition synchronously; the entity is
// left unchanged.
type TransitionError struct {
	Code    TransitionErrorCode
	Message string
}

func (e *TransitionError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewTransitionError builds a TransitionError with a formatted message.
func NewTransitionError(code TransitionErrorCode, format string, args ...any) *TransitionError {
	return &TransitionError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsForbidden reports whether err is a Forbidden transition rejection.
func IsForbidden(err error) bool {
	var te *TransitionError
	return errors.As(err, &te) && te.Code == TransitionForbidden
}

// IsInvalidTransition reports whether err is an InvalidTransition rejection.
func IsInvalidTransition(err error) bool {
	var te *TransitionError
	return errors.As(err, &te) && te.Code == TransitionInvalid
}

// PersistenceError wraps a storage failure. Systemic failures (database
// unreachable, pool closed) escalate a running batch to failed; non-systemic
// ones are recorded as a row-level PersistenceFailure and skipped.
type PersistenceError struct {
	Op       string
	Systemic bool
	Cause    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// IsSystemic reports whether err carries a systemic persistence failure.
func IsSystemic(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.Systemic
}

// ErrDuplicateKey is returned by repositories when an insert trips a unique
// constraint. The storage layer is the final arbiter of duplicates; the
// validator's in-batch check is only the fast path.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")
