package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/backoffice/pkg/errors"
	"github.com/charlesng35/backoffice/pkg/response"
	appValidator "github.com/charlesng35/backoffice/pkg/validator"
)

// Message templates by validator tag. %[1]s is the field, %[2]s the tag parameter.
var validationMessages = map[string]string{
	"required": "%[1]s is required",
	"notblank": "%[1]s must not be blank",
	"email":    "%[1]s must be a valid email address",
	"min":      "%[1]s must be at least %[2]s characters",
	"max":      "%[1]s must be at most %[2]s characters",
	"oneof":    "%[1]s must be one of: %[2]s",
}

// bindAndValidate decodes the JSON body into dest and applies its validate tags.
// On failure it writes a 400 envelope and returns false.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}
	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(describeValidation(err)))
		return false
	}
	return true
}

func describeValidation(err error) string {
	var failures appValidator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return "invalid request payload"
	}

	messages := make([]string, 0, len(failures))
	for _, failure := range failures {
		field := strings.ToLower(strings.ReplaceAll(failure.Field, "_", " "))
		if field == "" {
			field = "field"
		}
		if tmpl, ok := validationMessages[failure.Tag]; ok {
			messages = append(messages, fmt.Sprintf(tmpl, field, failure.Param))
			continue
		}
		messages = append(messages, fmt.Sprintf("%s is invalid (%s)", field, failure.Tag))
	}
	return strings.Join(messages, "; ")
}

// parseIntQuery reads an integer query parameter, falling back on absent or
// malformed values.
func parseIntQuery(c *gin.Context, key string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return fallback
	}
	return parsed
}

// parseBoolQuery returns nil when key is absent or not a boolean.
func parseBoolQuery(c *gin.Context, key string) *bool {
	value, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	if err != nil {
		return nil
	}
	return &value
}
