package utils

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct validates request payloads against their `validate` tags
// and flattens the result into one human-readable error.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var messages []string
	for _, err := range err.(validator.ValidationErrors) {
		field := strings.ToLower(err.Field())
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			messages = append(messages, field+" is required")
		case "email":
			messages = append(messages, field+" must be a valid email")
		case "min":
			messages = append(messages, field+" must be at least "+param)
		case "max":
			messages = append(messages, field+" must be at most "+param)
		case "oneof":
			messages = append(messages, field+" must be one of: "+param)
		default:
			messages = append(messages, field+" is invalid")
		}
	}

	return errors.New(strings.Join(messages, ", "))
}
