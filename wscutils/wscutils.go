// Package wscutils holds the request binding, validation and response
// helpers shared by the web service handlers.
package wscutils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the body of every failed response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

var validate = validator.New()

// WscValidate validates data according to its `validate` struct tags and
// returns one FieldError per failed rule. A nil result means data is valid.
func WscValidate[T any](data T) []FieldError {
	var fieldErrors []FieldError

	err := validate.Struct(data)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			for _, fe := range validationErrs {
				fieldErrors = append(fieldErrors, FieldError{
					Field: fe.Field(),
					Tag:   fe.Tag(),
					Param: fe.Param(),
				})
			}
		}
	}
	return fieldErrors
}

// NewErrorResponse creates the standard error body.
func NewErrorResponse(msg string) ErrorResponse {
	return ErrorResponse{Error: msg}
}

// BindJSON decodes the request body into data. On failure it writes a
// 400 response and returns the decoding error.
func BindJSON(c *gin.Context, data any) error {
	if err := c.ShouldBindJSON(data); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(MsgInvalidJSON))
		return err
	}
	return nil
}

// SendErrorResponse writes an error body with the given status.
func SendErrorResponse(c *gin.Context, status int, msg string) {
	c.JSON(status, NewErrorResponse(msg))
}
