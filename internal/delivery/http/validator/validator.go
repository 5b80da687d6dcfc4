// Package validator adapts go-playground/validator to echo's Validator hook.
package validator

import (
	"net/http"

	playground "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// RequestValidator validates bound request structs via `validate` tags.
type RequestValidator struct {
	validate *playground.Validate
}

// New creates a RequestValidator with struct tag support enabled.
func New() *RequestValidator {
	return &RequestValidator{
		validate: playground.New(playground.WithRequiredStructEnabled()),
	}
}

// Validate implements echo.Validator. Validation failures surface as 400s
// so handlers can simply `return c.Validate(req)` style errors upward.
func (v *RequestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return nil
}
