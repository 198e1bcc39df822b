package core

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors - centralized error definitions
var (
	// Configuration errors (caller-correctable, raised at construction time)
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrNonPositiveLag      = fmt.Errorf("%w: lag offsets must be strictly positive", ErrInvalidConfig)
	ErrNonPositiveWindow   = fmt.Errorf("%w: window sizes must be strictly positive", ErrInvalidConfig)
	ErrEmptyOffsets        = fmt.Errorf("%w: offset set cannot be empty", ErrInvalidConfig)
	ErrUnknownStrategy     = fmt.Errorf("%w: unrecognized strategy", ErrInvalidConfig)
	ErrUnknownAggregation  = fmt.Errorf("%w: unrecognized aggregation", ErrInvalidConfig)
	ErrUnknownModel        = fmt.Errorf("%w: unrecognized model type", ErrInvalidConfig)
	ErrInvalidSplitConfig  = fmt.Errorf("%w: split", ErrInvalidConfig)
	ErrInvalidMinPeriods   = fmt.Errorf("%w: min_periods", ErrInvalidConfig)
	ErrInvalidModelParams  = fmt.Errorf("%w: model params", ErrInvalidConfig)
	ErrInvalidHolidayDates = fmt.Errorf("%w: holiday date", ErrInvalidConfig)

	// Data errors (caller-correctable)
	ErrData             = errors.New("data error")
	ErrNoData           = fmt.Errorf("%w: no data", ErrData)
	ErrInsufficientData = fmt.Errorf("%w: insufficient data", ErrData)
	ErrMissingColumn    = fmt.Errorf("%w: missing column", ErrData)

	// Invariant violations (engine or caller defects)
	ErrLeakage        = errors.New("data leakage detected")
	ErrFamilyDisabled = errors.New("feature family is disabled")
)

// NewValidationError reports an invalid configuration field.
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, reason)
}

func NewLeakageError(fold int, reason string) error {
	return fmt.Errorf("%w: fold %d: %s", ErrLeakage, fold, reason)
}

func NewMissingColumnError(column string) error {
	return fmt.Errorf("%w: %s", ErrMissingColumn, column)
}

// NewInsufficientDataError reports a span too short for the requested folds.
func NewInsufficientDataError(availableDays, requiredDays int) error {
	return fmt.Errorf("%w: %d days available, %d required", ErrInsufficientData, availableDays, requiredDays)
}

func NewNoDataError(start, end time.Time) error {
	return fmt.Errorf("%w: no rows between %s and %s", ErrNoData, FormatDate(start), FormatDate(end))
}

// Error checking helpers
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

func IsDataError(err error) bool {
	return errors.Is(err, ErrData)
}

func IsLeakageError(err error) bool {
	return errors.Is(err, ErrLeakage)
}
