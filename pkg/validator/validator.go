// Package validator checks struct tags of configuration and word entries.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is wrapped by every error ValidateStruct returns for invalid input.
var ErrValidation = errors.New("validation failed")

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
}

// ValidateStruct validates s against its `validate` tags.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errMsgs := make([]string, 0, len(verrs))
	for _, err := range verrs {
		errMsgs = append(errMsgs, fmt.Sprintf(
			"Field: %s, Tag: %s, Param: %s", err.Namespace(), err.Tag(), err.Param(),
		))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(errMsgs, "; "))
}
