package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/brightstar/portal/internal/app/models/dto"
)

// HandleBindingError responds 400 with one error entry per invalid field
func HandleBindingError(c *gin.Context, err error, message string) {
	detail := dto.NewErrorDetail(dto.ErrorCodeValidationFailed, message)

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		v := dto.NewValidationErrors()
		for _, fe := range fieldErrs {
			v.AddError(fe.Field(), formatValidationError(fe))
		}
		detail = detail.WithDetails(v.Errors)
	} else {
		detail = detail.WithDetails(err.Error())
	}

	c.JSON(http.StatusBadRequest, dto.NewFailureResponse(detail, nil))
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "email":
		return e.Field() + " must be a valid email address"
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	case "datetime":
		return e.Field() + " must be a date in YYYY-MM-DD format"
	case "gt", "gte":
		return e.Field() + " must be a positive number"
	default:
		return e.Field() + " validation failed: " + e.Tag()
	}
}
