package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	appErrors "github.com/contactly/contactly/pkg/errors"
	"github.com/contactly/contactly/pkg/validator"
)

// bindAndValidate decodes the JSON body into dst and runs struct validation,
// turning any failure into a client-facing bad request.
func bindAndValidate(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return appErrors.NewBadRequest("invalid request body")
	}

	if err := validator.ValidateStruct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return appErrors.NewBadRequest(ve.Error())
		}
		return appErrors.NewBadRequest("invalid request body")
	}

	return nil
}

// intQuery parses an integer query parameter, falling back to def when the
// parameter is absent.
func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.NewBadRequest(name + " must be an integer")
	}
	return value, nil
}
