package cmdutil

import (
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	validate = validator.New(validator.WithRequiredStructEnabled())

	ErrNothingToUpdate = errors.New("nothing to update, pass at least one flag")
)

// Validate checks params against their validate tags and reports the first failing field
func Validate(params interface{}) error {
	err := validate.Struct(params)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		first := validationErrors[0]
		return fmt.Errorf("invalid value provided for %s: failed on '%s'", first.Field(), first.Tag())
	}
	return err
}

func ParseID(kind, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, fmt.Errorf("please specify the %s ID", kind)
	}

	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s ID: %s", kind, value)
	}
	return id, nil
}
