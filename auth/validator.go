package auth

import (
	"fmt"
	"strings"

	"trivia-lab/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type RegisterRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6,max=72"`
}

func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPassword, describe(err))
	}
	return nil
}

// ValidateCommand checks the struct tags of a domain command.
func ValidateCommand(cmd any) error {
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, describe(err))
	}
	return nil
}

func describe(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	fields := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(fields, ", ")
}
