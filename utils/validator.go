package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs `validate` tags and returns the first failure as a ValidationError
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return NewValidationError("invalid request body")
	}
	fe := verrs[0]
	field := toSnake(fe.Field())
	switch fe.Tag() {
	case "required":
		return NewValidationError(fmt.Sprintf("%s is required", field))
	case "email":
		return NewValidationError(fmt.Sprintf("%s must be a valid email", field))
	case "min":
		return NewValidationError(fmt.Sprintf("%s must be at least %s", field, fe.Param()))
	case "max":
		return NewValidationError(fmt.Sprintf("%s must be at most %s", field, fe.Param()))
	case "oneof":
		return NewValidationError(fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
	case "eqfield":
		return NewValidationError(fmt.Sprintf("%s does not match", field))
	}
	return NewValidationError(fmt.Sprintf("%s is invalid", field))
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
