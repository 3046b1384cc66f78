package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/bookmyseat/internal/model"
)

// Validator plugs go-playground/validator into echo.  Failures come back as
// validation errors naming the JSON field.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		fe := fields[0]
		switch fe.Tag() {
		case "required":
			return model.NewError(model.ErrValidation, fe.Field()+" is required")
		case "email":
			return model.NewError(model.ErrValidation, fe.Field()+" must be a valid email")
		}
		return model.NewError(model.ErrValidation, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return model.NewError(model.ErrValidation, err.Error())
}
