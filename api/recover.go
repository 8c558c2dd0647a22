package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/thinkocapo/board/observability"
)

const hookContextKey = "board.hook"

// withHook makes hook available to handlers through hookFrom.
func withHook(hook observability.Hook) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(hookContextKey, hook)
			return next(c)
		}
	}
}

func hookFrom(c echo.Context) observability.Hook {
	if h, ok := c.Get(hookContextKey).(observability.Hook); ok && h != nil {
		return h
	}
	return observability.Nop{}
}

// RecoverMiddleware answers handler panics with 500 and captures them on hook
// as fatal exceptions.
func RecoverMiddleware(hook observability.Hook, logger *log.Logger) echo.MiddlewareFunc {
	if hook == nil {
		hook = observability.Nop{}
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			id := captureRequestError(c, hook, err, "panic", observability.LevelFatal, string(stack))
			logger.WithFields(log.Fields{
				"route":        c.Path(),
				"exception.id": id,
			}).WithError(err).Error("recovered handler panic")
			return err
		},
	})
}

func captureRequestError(c echo.Context, hook observability.Hook, err error, kind string, level observability.Level, stack string) string {
	req := c.Request()
	request := map[string]any{
		"method": req.Method,
		"path":   req.URL.Path,
	}
	if stack != "" {
		request["stack"] = stack
	}
	return hook.CaptureException(req.Context(), err, observability.ExceptionEvent{
		Kind:  kind,
		Level: level,
		Tags: map[string]string{
			"http.route":  c.Path(),
			"http.method": req.Method,
		},
		Contexts: map[string]map[string]any{"request": request},
	})
}
