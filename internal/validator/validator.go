package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var loginPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Validator wraps the struct validator with the custom rules the
// administration surface needs.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()

	v.RegisterValidation("login_format", validateLoginFormat)
	v.RegisterValidation("password_strength", validatePasswordStrength)

	return &Validator{validate: v}
}

// Validate checks a tagged struct and returns a *ValidationError when any
// rule fails, or nil when the struct is valid.
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	ve := &ValidationError{Fields: make(map[string][]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field())
		ve.Fields[field] = append(ve.Fields[field], messageFor(fe))
	}
	return ve
}

// Var checks a single value against a rule and reports the failure under
// the given field name.
func (v *Validator) Var(field string, value interface{}, tag string) error {
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	ve := &ValidationError{Fields: make(map[string][]string, 1)}
	for _, fe := range fieldErrs {
		ve.Fields[field] = append(ve.Fields[field], messageFor(fe))
	}
	return ve
}

// NewValidationError builds a single-field error, used for checks that live
// outside struct tags such as uniqueness lookups.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {message}}}
}

// ValidationError carries per-field failure messages suitable for the
// response envelope.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msgs := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(msgs, "; ")))
	}
	return "data error: " + strings.Join(parts, ", ")
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Missing data for required field."
	case "email":
		return "Not a valid email address."
	case "min":
		return fmt.Sprintf("Shorter than minimum length %s.", fe.Param())
	case "max":
		return fmt.Sprintf("Longer than maximum length %s.", fe.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s.", fe.Param())
	case "login_format":
		return "Only letters, digits, dots, dashes and underscores are allowed."
	case "password_strength":
		return "Password must be at least 12 characters and mix upper case, lower case and digits."
	default:
		return fmt.Sprintf("Failed validation rule %q.", fe.Tag())
	}
}

func validateLoginFormat(fl validator.FieldLevel) bool {
	return loginPattern.MatchString(fl.Field().String())
}

func validatePasswordStrength(fl validator.FieldLevel) bool {
	password := fl.Field().String()

	if len(password) < 12 {
		return false
	}

	hasUpper := strings.ContainsFunc(password, func(r rune) bool { return r >= 'A' && r <= 'Z' })
	hasLower := strings.ContainsFunc(password, func(r rune) bool { return r >= 'a' && r <= 'z' })
	hasDigit := strings.ContainsFunc(password, func(r rune) bool { return r >= '0' && r <= '9' })

	return hasUpper && hasLower && hasDigit
}
