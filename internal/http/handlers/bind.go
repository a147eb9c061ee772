package handlers

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// BindJSON binds the request body into out. On failure it answers with
// the given caller-facing message (the body never echoes parser
// internals) and stashes a short diagnosis for the request logger.
func BindJSON(ctx *gin.Context, out interface{}, message string) bool {
	err := ctx.ShouldBindJSON(out)

	if err != nil {
		ctx.Set("bind_error", describeBindError(err))

		RespondBadRequest(ctx, message)

		return false
	}

	return true
}

func describeBindError(err error) string {
	// validator errors (struct bind tags)

	var validatorError validator.ValidationErrors

	if errors.As(err, &validatorError) {
		fields := make([]string, 0, len(validatorError))

		for _, fieldError := range validatorError {
			fields = append(fields, strings.ToLower(fieldError.Field())+":"+fieldError.Tag())
		}

		return "fields " + strings.Join(fields, ",")
	}

	// in the event of bad json

	var syntaxError *json.SyntaxError

	if errors.As(err, &syntaxError) {
		return "invalid json syntax"
	}

	// in the event of a type mismatch

	var unmatchedTypeError *json.UnmarshalTypeError

	if errors.As(err, &unmatchedTypeError) {
		return "invalid type for field " + unmatchedTypeError.Field
	}

	return err.Error()
}
