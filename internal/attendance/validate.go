package attendance

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = NewValidator()

// NewValidator returns a struct validator that names fields by their json tags.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	UseJSONNames(v)
	return v
}

// UseJSONNames makes v report json field names, so messages match request bodies.
func UseJSONNames(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// AsValidationError converts validator failures into a *ValidationError for
// the first failing field. Other errors are returned unchanged.
func AsValidationError(err error) error {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return err
	}
	fe := fields[0]
	return &ValidationError{Field: fe.Field(), Message: ruleMessage(fe)}
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte", "lte":
		return fmt.Sprintf("%v is out of range", fe.Value())
	case "oneof":
		return fmt.Sprintf("unknown value %q, want one of: %s", fmt.Sprint(fe.Value()), fe.Param())
	case "datetime":
		return "must be RFC3339"
	}
	return "failed " + fe.Tag() + " check"
}
