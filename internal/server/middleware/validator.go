package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxViewportWidth caps reported widths at an 8K display.
const MaxViewportWidth = 7680

// fieldTags name validation errors after the field as the client sent it.
var fieldTags = []string{"json", "param", "query", "form", "header", "cookie"}

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range fieldTags {
			name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
	validate.RegisterValidation("viewport", func(fl validator.FieldLevel) bool {
		w := fl.Field().Int()
		return w >= 0 && w <= MaxViewportWidth
	})
	return &Validator{validate: validate}
}

// Validate returns one readable message per failing field, joined with "; ".
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "viewport":
		return fmt.Sprintf("%s must be between 0 and %d", fe.Field(), MaxViewportWidth)
	case "required":
		return fe.Field() + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
