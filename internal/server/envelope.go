package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/draftboard/draftboard/internal/storage"
)

// envelope is the uniform response wrapper: {success, data?, error?}.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Data: data})
}

// fail maps a domain error onto the envelope. Only the facade stringifies
// errors; everything below propagates typed sentinels.
func fail(c echo.Context, err error) error {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, storage.ErrValidation):
		status, code = http.StatusBadRequest, "VALIDATION"
	case errors.Is(err, storage.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, storage.ErrConflict):
		status, code = http.StatusConflict, "CONFLICT"
	}
	return c.JSON(status, envelope{
		Success: false,
		Error:   &errorBody{Code: code, Message: err.Error()},
	})
}

func validationf(c echo.Context, format string, args ...interface{}) error {
	return c.JSON(http.StatusBadRequest, envelope{
		Success: false,
		Error:   &errorBody{Code: "VALIDATION", Message: fmt.Sprintf(format, args...)},
	})
}
