package validator

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	prolink_errors "prolink-chat/pkg/errors"

	"github.com/go-playground/validator/v10"
)

// ValidationError maps json field names to a failure message.
type ValidationError struct {
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, field := range fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, e.Errors[field]))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Unwrap lets callers match validation failures with errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Unwrap() error {
	return prolink_errors.ErrInvalidInput
}

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	registerCustomRules(v)
	return &Validator{validate: v}
}

// Engine exposes the underlying validator so gin binding can share the custom rules.
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	out := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		out[fe.Field()] = describe(fe)
	}
	return &ValidationError{Errors: out}
}

// Var validates a single value against a tag such as "emoji".
func (v *Validator) Var(field string, value interface{}, tag string) error {
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err
	}
	return &ValidationError{Errors: map[string]string{field: describe(validationErrors[0])}}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "emoji":
		return "must be a single emoji"
	case "oneof":
		return "must be one of " + fe.Param()
	case "dive":
		return "contains an invalid element"
	default:
		return "failed on " + fe.Tag()
	}
}
