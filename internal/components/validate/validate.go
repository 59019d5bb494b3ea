// Package validate checks form input before any remote call is made.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	zipRe     = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	meterIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{2,31}$`)
	phoneRe   = regexp.MustCompile(`^\+?[0-9 ()\-.]{7,20}$`)
)

// Zip reports whether s is a 5-digit US zip code, optionally ZIP+4.
func Zip(s string) bool { return zipRe.MatchString(s) }

// MeterID reports whether s looks like a utility meter identifier.
func MeterID(s string) bool { return meterIDRe.MatchString(s) }

// Phone reports whether s is a phone number with 10 to 15 digits.
func Phone(s string) bool {
	if !phoneRe.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 10 && digits <= 15
}

// Email reports whether s is an email address.
func Email(s string) bool {
	return v.Var(s, "required,email") == nil
}

// FieldError is one failed field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is a list of field errors. It is returned as an error value.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a field error.
func (e *Errors) Add(field, message string) {
	*e = append(*e, FieldError{Field: field, Message: message})
}

// Err returns e as an error, or nil when empty.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Field returns a single-field validation error.
func Field(field, message string) error {
	return Errors{{Field: field, Message: message}}
}

// IsValidation reports whether err carries field errors.
func IsValidation(err error) bool {
	var e Errors
	return errors.As(err, &e)
}

// As extracts the field errors from err.
func As(err error) (Errors, bool) {
	var e Errors
	ok := errors.As(err, &e)
	return e, ok
}

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	val.RegisterValidation("zip", func(fl validator.FieldLevel) bool { return Zip(fl.Field().String()) })
	val.RegisterValidation("meterid", func(fl validator.FieldLevel) bool { return MeterID(fl.Field().String()) })
	val.RegisterValidation("phone", func(fl validator.FieldLevel) bool { return Phone(fl.Field().String()) })
	return val
}

// Struct validates a tagged struct and returns Errors on failure.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fieldPath(fe), Message: message(fe)})
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "zip":
		return "must be a 5-digit zip code (optionally ZIP+4)"
	case "meterid":
		return "must be a valid meter ID"
	case "phone":
		return "must be a valid phone number"
	case "oneof":
		return "must be one of " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "dive":
		return "has an invalid element"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
