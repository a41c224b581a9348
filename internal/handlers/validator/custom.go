package validator

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var categoryNameValidRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9 +\-_.]*$`)

func nameValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	return categoryNameValidRegex.MatchString(val)
}
