package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// fieldName converts a struct field name to its snake_case JSON name, which
// is what API clients see in their requests.
func fieldName(field string) string {
	var b strings.Builder
	prevUpper := false
	for i, r := range field {
		upper := r >= 'A' && r <= 'Z'
		if upper {
			if i > 0 && !prevUpper {
				b.WriteByte('_')
			}
			r = r - 'A' + 'a'
		}
		b.WriteRune(r)
		prevUpper = upper
	}
	return b.String()
}

// formatValidationError converts validator errors to client-facing messages.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fieldName(fe.Field())
			switch fe.Tag() {
			case "required":
				return "invalid request: " + field + " is required"
			case "notblank":
				return "invalid request: " + field + " must not be blank"
			case "max":
				return "invalid request: " + field + " exceeds maximum length of " + fe.Param()
			case "gt", "gte":
				return "invalid request: " + field + " is out of range"
			default:
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}
