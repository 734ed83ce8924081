// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrUnknownTicker = errors.New("unknown ticker")
	ErrMissingSchema = errors.New("snapshot missing required schema fields")
	ErrNoCandidates  = errors.New("no candidates passed filtering")
	ErrPositionLimit = errors.New("max open positions reached")
	ErrTickerHeld    = errors.New("ticker already has an open position")
	ErrConfigInvalid = errors.New("invalid configuration")
	ErrDataNotFound  = errors.New("data not found")
	ErrDatabaseError = errors.New("database error")
)

// InvalidInputError reports malformed valuation inputs, such as a
// non-positive spot, strike, expiry or volatility.
type InvalidInputError struct {
	Field   string
	Value   float64
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %s=%g: %s", e.Field, e.Value, e.Message)
}

// NewInvalidInputError creates a new InvalidInputError.
func NewInvalidInputError(field string, value float64, message string) *InvalidInputError {
	return &InvalidInputError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// InsufficientDataError reports that a historical series is too short
// for the requested estimate.
type InsufficientDataError struct {
	Needed    int
	Available int
	Message   string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need %d samples, have %d: %s", e.Needed, e.Available, e.Message)
}

// NewInsufficientDataError creates a new InsufficientDataError.
func NewInsufficientDataError(needed, available int, message string) *InsufficientDataError {
	return &InsufficientDataError{
		Needed:    needed,
		Available: available,
		Message:   message,
	}
}

// SpreadTooWideError reports a rejected fill: some leg's bid/ask spread
// exceeded the liquidity gate.
type SpreadTooWideError struct {
	Ticker    string
	Strike    float64
	Right     string
	SpreadPct float64
	Limit     float64
}

func (e *SpreadTooWideError) Error() string {
	return fmt.Sprintf("spread too wide [%s %g %s]: %.1f%% > %.1f%% limit",
		e.Ticker, e.Strike, e.Right, e.SpreadPct*100, e.Limit*100)
}

// NewSpreadTooWideError creates a new SpreadTooWideError.
func NewSpreadTooWideError(ticker string, strike float64, right string, spreadPct, limit float64) *SpreadTooWideError {
	return &SpreadTooWideError{
		Ticker:    ticker,
		Strike:    strike,
		Right:     right,
		SpreadPct: spreadPct,
		Limit:     limit,
	}
}

// CapitalExceededError reports an open attempt without sufficient funds.
// The attempt is blocked; portfolio state is unchanged.
type CapitalExceededError struct {
	Ticker    string
	Required  float64
	Available float64
}

func (e *CapitalExceededError) Error() string {
	return fmt.Sprintf("capital exceeded [%s]: required %.2f, available %.2f",
		e.Ticker, e.Required, e.Available)
}

// NewCapitalExceededError creates a new CapitalExceededError.
func NewCapitalExceededError(ticker string, required, available float64) *CapitalExceededError {
	return &CapitalExceededError{
		Ticker:    ticker,
		Required:  required,
		Available: available,
	}
}

// ValuationError reports a leg that could not be priced at all: no
// usable quote and no model inputs either.
type ValuationError struct {
	Ticker  string
	Strike  float64
	Right   string
	Message string
}

func (e *ValuationError) Error() string {
	return fmt.Sprintf("valuation failed [%s %g %s]: %s", e.Ticker, e.Strike, e.Right, e.Message)
}

// NewValuationError creates a new ValuationError.
func NewValuationError(ticker string, strike float64, right, message string) *ValuationError {
	return &ValuationError{
		Ticker:  ticker,
		Strike:  strike,
		Right:   right,
		Message: message,
	}
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
