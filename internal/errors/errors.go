package errors

import (
	"context"
	stderrors "errors"
	"fmt"

	"demandcast/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, keeping the code of a wrapped AppError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	code := CodeInternalError
	if appErr, ok := asAppError(err); ok {
		code = appErr.Code
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is or wraps an AppError
func IsAppError(err error) bool {
	_, ok := asAppError(err)
	return ok
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := asAppError(err); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

func asAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Predefined error codes
const (
	CodeConfigInvalid    = "CONFIG_INVALID"
	CodeNoData           = "NO_DATA"
	CodeInsufficientData = "INSUFFICIENT_DATA"
	CodeMissingColumn    = "MISSING_COLUMN"
	CodeDataInvalid      = "DATA_INVALID"
	CodeLeakageDetected  = "LEAKAGE_DETECTED"
	CodeDatabaseError    = "DATABASE_ERROR"
	CodeCancelled        = "CANCELLED"
	CodeInternalError    = "INTERNAL_ERROR"
)

// clientCodes are failures the caller can fix by changing the request or the data.
var clientCodes = map[string]bool{
	CodeConfigInvalid:    true,
	CodeNoData:           true,
	CodeInsufficientData: true,
	CodeMissingColumn:    true,
	CodeDataInvalid:      true,
}

// FromDomain classifies a domain error. AppErrors pass through unchanged; nil stays nil.
func FromDomain(err error) error {
	if err == nil {
		return nil
	}
	if IsAppError(err) {
		return err
	}
	var code string
	switch {
	case stderrors.Is(err, core.ErrInvalidConfig):
		code = CodeConfigInvalid
	case stderrors.Is(err, core.ErrNoData):
		code = CodeNoData
	case stderrors.Is(err, core.ErrInsufficientData):
		code = CodeInsufficientData
	case stderrors.Is(err, core.ErrMissingColumn):
		code = CodeMissingColumn
	case stderrors.Is(err, core.ErrData):
		code = CodeDataInvalid
	case stderrors.Is(err, core.ErrLeakage):
		code = CodeLeakageDetected
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		code = CodeCancelled
	default:
		code = CodeInternalError
	}
	return &AppError{Code: code, Message: err.Error(), Cause: err}
}

// IsClientError reports whether err is caller-correctable rather than a defect.
func IsClientError(err error) bool {
	if err == nil {
		return false
	}
	return clientCodes[GetCode(FromDomain(err))]
}

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeDatabaseError,
		Message: message,
		Cause:   cause,
	}
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}
