package rating

import (
	"fmt"

	"github.com/Clark-Hu/lopperater/internal/apperr"
)

// OutOfRangeError reports a score outside the accepted bounds.
type OutOfRangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s must be between %g and %g, got %g", e.Field, e.Min, e.Max, e.Value)
}

// ErrorType implements apperr.Typed.
func (e *OutOfRangeError) ErrorType() apperr.Type { return apperr.TypeValidation }

// InvalidPhoneError reports a phone number that is not a Danish mobile number.
type InvalidPhoneError struct {
	Input string
}

func (e *InvalidPhoneError) Error() string {
	return fmt.Sprintf("phone %q is not a valid Danish mobile number", e.Input)
}

// ErrorType implements apperr.Typed.
func (e *InvalidPhoneError) ErrorType() apperr.Type { return apperr.TypeValidation }

// MissingFieldError reports a required field that was empty or unset.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// ErrorType implements apperr.Typed.
func (e *MissingFieldError) ErrorType() apperr.Type { return apperr.TypeValidation }
