// Package validation wires go-playground/validator into the gin request
// boundary, responding with Problem Details on failure.
package validation

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	sharederrors "github.com/Apurer/go-commerce-api-server/internal/shared/errors"
)

// New returns a configured validator instance shared across handlers.
func New() *validatorv10.Validate {
	return validatorv10.New()
}

// BindAndValidate binds the JSON body into out and runs struct validation.
// On failure it writes a 400 Problem Details response and returns the error
// so the handler can short-circuit.
func BindAndValidate(c *gin.Context, out any, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		sharederrors.Respond(c, sharederrors.ErrBadRequest.WithDetail("invalid request body"))
		return err
	}
	if err := v.Struct(out); err != nil {
		sharederrors.Respond(c, sharederrors.NewValidationProblem(errorsToFieldMap(err)))
		return err
	}
	return nil
}

// UnmarshalAndValidate is BindAndValidate for a body that was already read,
// e.g. for webhook signature checks over the raw payload.
func UnmarshalAndValidate(c *gin.Context, body []byte, out any, v *validatorv10.Validate) error {
	if err := json.Unmarshal(body, out); err != nil {
		sharederrors.Respond(c, sharederrors.ErrBadRequest.WithDetail("invalid request body"))
		return err
	}
	if err := v.Struct(out); err != nil {
		sharederrors.Respond(c, sharederrors.NewValidationProblem(errorsToFieldMap(err)))
		return err
	}
	return nil
}

func errorsToFieldMap(err error) map[string]string {
	fields := map[string]string{}
	if ve, ok := err.(validatorv10.ValidationErrors); ok {
		for _, fe := range ve {
			fields[fe.Field()] = "failed '" + fe.Tag() + "' validation"
		}
		return fields
	}
	fields["error"] = err.Error()
	return fields
}
