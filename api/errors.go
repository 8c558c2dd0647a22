package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thinkocapo/board/domain"
	"github.com/thinkocapo/board/observability"
)

// errorResponse is the JSON error body. ExceptionID correlates a 500 with
// the exception captured for it.
type errorResponse struct {
	Error       string            `json:"error"`
	Column      string            `json:"column,omitempty"`
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	ExceptionID string            `json:"exceptionId,omitempty"`
}

// writeError maps domain errors onto HTTP statuses.
func writeError(c echo.Context, err error) error {
	var (
		target     *domain.InvalidTargetColumnError
		protected  *domain.ProtectedEntityDeleteError
		validation *domain.ValidationError
	)
	switch {
	case errors.As(err, &target):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Column: string(target.Column)})
	case errors.As(err, &protected):
		return c.JSON(http.StatusForbidden, errorResponse{Error: err.Error(), ID: protected.ID, Name: protected.Name})
	case errors.As(err, &validation):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Fields: validation.Fields})
	case errors.Is(err, domain.ErrUnknownColumn):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrDuplicateTask):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		id := captureRequestError(c, hookFrom(c), err, "", observability.LevelError, "")
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error", ExceptionID: id})
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}
