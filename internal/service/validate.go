package service

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateParams(v any) error {
	if err := validate.Struct(v); err != nil {
		return errors.Wrap(err, "invalid parameters")
	}
	return nil
}
