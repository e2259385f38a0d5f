package api

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"arise/internal/attendance"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		attendance.UseJSONNames(v)
		_ = v.RegisterValidation("notblank", validators.NotBlank)
	}
}

// bindJSON decodes and validates the body. On failure it writes a 400 and returns false.
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	if verr := attendance.AsValidationError(err); attendance.IsValidation(verr) {
		badRequest(c, verr.Error())
		return false
	}
	badRequest(c, "invalid request body")
	return false
}
