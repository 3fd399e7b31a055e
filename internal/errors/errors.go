// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Standard sentinel errors
var (
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrNoData              = errors.New("no data")
	ErrSymbolNotFound      = errors.New("symbol not found")
	ErrIndexMissing        = errors.New("index series missing")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrHeatCapExceeded     = errors.New("portfolio heat cap exceeded")
	ErrPositionExists      = errors.New("position already open")
	ErrDatabaseError       = errors.New("database error")
	ErrProviderUnavailable = errors.New("data provider unavailable")
)

// DataGapError reports a requested date with no bar for a ticker. The
// engine skips that ticker for that day and continues.
type DataGapError struct {
	Ticker string
	Date   time.Time
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap [%s]: no bar for %s", e.Ticker, e.Date.Format("2006-01-02"))
}

// NewDataGapError creates a new DataGapError.
func NewDataGapError(ticker string, date time.Time) *DataGapError {
	return &DataGapError{Ticker: ticker, Date: date}
}

// InsufficientHistoryError reports fewer bars than the longest required
// indicator window. Filters treat this as unfavorable, never fatal.
type InsufficientHistoryError struct {
	Ticker string
	Need   int
	Have   int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history [%s]: need %d bars, have %d", e.Ticker, e.Need, e.Have)
}

// NewInsufficientHistoryError creates a new InsufficientHistoryError.
func NewInsufficientHistoryError(ticker string, need, have int) *InsufficientHistoryError {
	return &InsufficientHistoryError{Ticker: ticker, Need: need, Have: have}
}

// InvalidSizingError reports a position size that came out zero or
// unaffordable. The entry is refused and the run continues.
type InvalidSizingError struct {
	Ticker string
	Shares int
	Reason string
}

func (e *InvalidSizingError) Error() string {
	return fmt.Sprintf("invalid sizing [%s]: %d shares: %s", e.Ticker, e.Shares, e.Reason)
}

// NewInvalidSizingError creates a new InvalidSizingError.
func NewInvalidSizingError(ticker string, shares int, reason string) *InvalidSizingError {
	return &InvalidSizingError{Ticker: ticker, Shares: shares, Reason: reason}
}

// ConfigError reports a malformed configuration value. Config errors are
// fatal and raised before the simulation loop starts, never mid-run.
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field string, value interface{}, message string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Message: message}
}

// DataError represents a data-related error from the provider or cache.
type DataError struct {
	Source  string
	Symbol  string
	Message string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.Source, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.Source, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(source, symbol, message string, err error) *DataError {
	return &DataError{Source: source, Symbol: symbol, Message: message, Err: err}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
