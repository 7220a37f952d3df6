package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "zeroauth/pkg/domain-errors"
)

const fallbackMessage = "invalid request body"

var defaultValidator = newValidator()

// messages maps validator tags to message formats. Formats with a second
// verb receive the tag parameter.
var messages = map[string]string{
	"required": "%s is required",
	"notblank": "%s must not be blank",
	"min":      "%s must be at least %s",
	"max":      "%s must be at most %s",
	"len":      "%s must have length %s",
	"oneof":    "%s must be one of [%s]",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	v.RegisterTagNameFunc(wireName)
	return v
}

// wireName reports a field by its json tag so messages match the request body.
func wireName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// Validate checks req against its struct tags. Failures are CodeValidation
// domain errors describing the first offending field.
func Validate(req any) error {
	if err := defaultValidator.Struct(req); err != nil {
		return dErrors.New(dErrors.CodeValidation, ErrorMessage(err))
	}
	return nil
}

// ErrorMessage converts a validator error into a client-facing message.
func ErrorMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return fallbackMessage
	}

	fe := validationErrs[0]
	field := fe.Field()
	if field == "" {
		field = fe.StructField()
	}
	if field == "" {
		return fallbackMessage
	}

	format, ok := messages[fe.ActualTag()]
	if !ok {
		return field + " is invalid"
	}
	if strings.Count(format, "%s") == 2 {
		return fmt.Sprintf(format, field, fe.Param())
	}
	return fmt.Sprintf(format, field)
}
