// Package forms validates submitted HTML forms and turns failures into
// per-field messages for inline display.
package forms

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	phoneRe  = regexp.MustCompile(`^\+?[0-9][0-9 ]{5,19}$`)
)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	_ = validate.RegisterValidation("strongpw", func(fl validator.FieldLevel) bool {
		return strongPassword(fl.Field().String())
	})
}

func strongPassword(s string) bool {
	var upper, lower, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	return upper && lower && digit && special
}

// Error maps form field names to a human readable message.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has a message.
func (e *Error) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// OrNil returns nil when no field failed.
func (e *Error) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Fields returns the per-field messages carried by err, or nil.
func Fields(err error) map[string]string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Fields
	}
	return nil
}

// Messages overrides the generic text for a field/tag pair ("field.tag" or "field").
type Messages map[string]string

// Validate runs the struct's validate tags. Non-validation errors (bad
// input types) are returned as is.
func Validate(dst any, msgs Messages) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{}
	for _, fe := range verrs {
		out.Add(fe.Field(), message(fe, msgs))
	}
	return out
}

func message(fe validator.FieldError, msgs Messages) string {
	if m, ok := msgs[fe.Field()+"."+fe.Tag()]; ok {
		return m
	}
	if m, ok := msgs[fe.Field()]; ok {
		return m
	}
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Please enter a valid email address."
	case "min":
		return "Must be at least " + fe.Param() + " characters long."
	case "max":
		return "Cannot exceed " + fe.Param() + " characters."
	case "gte":
		return "Must be at least " + fe.Param() + "."
	case "lte":
		return "Must be at most " + fe.Param() + "."
	case "numeric":
		return "Should contain only digits."
	case "phone":
		return "Please enter a valid phone number."
	case "datetime":
		return "Invalid format."
	case "strongpw":
		return "Must contain an uppercase letter, a lowercase letter, a number and a special character."
	default:
		return "Invalid value."
	}
}
