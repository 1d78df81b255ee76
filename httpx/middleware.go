package httpx

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// RequestLogger emits one structured logrus entry per request. Server errors
// log at error level, client errors at warn, the rest at info.
func RequestLogger(log logrus.FieldLogger) MiddlewareFunc {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			entry := log.WithFields(logrus.Fields{
				"method":   req.Method,
				"path":     c.Path(),
				"uri":      req.RequestURI,
				"status":   status,
				"duration": time.Since(start).String(),
			})
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				entry = entry.WithField("request_id", id)
			}
			switch {
			case status >= StatusInternalError:
				entry.WithError(err).Error("request failed")
			case status >= StatusBadRequest:
				entry.Warn("request rejected")
			default:
				entry.Info("request served")
			}
			return nil
		}
	}
}
