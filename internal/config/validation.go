package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidationError reports the first setting that failed validation.
type ValidationError struct {
	Field string
	Rule  string
	Value any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed on '%s' rule (value: %v)", e.Field, e.Rule, e.Value)
}

// Validate checks a Config, or any one of its sections, against its struct tags.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError converts validator errors into a ValidationError.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return &ValidationError{Field: e.Namespace(), Rule: e.Tag(), Value: e.Value()}
	}
	return err
}
