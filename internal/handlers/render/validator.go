package render

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

func configureValidator(validate *validator.Validate) {
	validate.RegisterTagNameFunc(useJSONTagNames)
}

// Report fields by 'json' tag name instead of struct field name
func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Value is too short (minimum %s)", fe.Param())
	case "gt":
		return fmt.Sprintf("Value must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("Value must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Value must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return "Invalid value"
	}
}
