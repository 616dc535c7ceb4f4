package service

import (
	"errors"
	"fmt"
	"strings"

	"leave-bot/internal/apperr"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs struct tag validation and folds failures into a single
// VALIDATION error.
func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperr.Validation("invalid input: %v", err)
	}

	problems := make([]string, 0, len(ve))
	for _, fe := range ve {
		problems = append(problems, describeFieldError(fe))
	}
	return apperr.Validation("%s", strings.Join(problems, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "datetime":
		if fe.Param() == "15:04" {
			return fmt.Sprintf("%s must be a time HH:MM", field)
		}
		return fmt.Sprintf("invalid date in %s", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "url":
		return fmt.Sprintf("%s must be a URL", field)
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
