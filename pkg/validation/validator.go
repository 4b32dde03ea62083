package validation

import (
	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps validator/v10 for echo and for decoded API records.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New builds the validator. A rule that fails to register is a programming error.
func New() *CustomValidator {
	v := validator.New()

	registerNullTypes(v)

	if err := registerRules(v); err != nil {
		panic("validation rules registration failed: " + err.Error())
	}

	return &CustomValidator{validator: v}
}
