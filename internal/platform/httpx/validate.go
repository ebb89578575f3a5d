package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Bind decodes the request body into target and runs struct validation.
// It writes the problem response itself and reports whether the handler
// may continue.
func Bind(w http.ResponseWriter, r *http.Request, v *validator.Validate, target any) bool {
	if err := DecodeJSON(r, target); err != nil {
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	if fields := FieldErrors(v.Struct(target)); fields != nil {
		WriteProblem(w, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Errors: fields,
		})
		return false
	}
	return true
}

// FieldErrors flattens validator failures keyed by lowercased field name.
func FieldErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"general": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fieldErr := range verrs {
		out[strings.ToLower(fieldErr.Field())] = fieldErr.Tag()
	}
	return out
}
