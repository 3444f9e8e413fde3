package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/hbomb79/Grabber/internal/api/apierror"
	"github.com/hbomb79/Grabber/internal/metrics"
	"github.com/hbomb79/Grabber/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// requestLogger emits one line per request through the API logger. Errors
// returned by handlers have not been rendered yet, so the status logged for
// them is derived from the error.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(ec echo.Context, v middleware.RequestLoggerValues) error {
			code := v.Status
			if v.Error != nil && !ec.Response().Committed {
				code = statusFromError(v.Error)
			}

			level := logger.INFO
			switch {
			case code >= http.StatusInternalServerError:
				level = logger.ERROR
			case code >= http.StatusBadRequest:
				level = logger.WARNING
			}

			log.Emit(level, "%s %s -> %d (%s) [%s]\n", v.Method, v.URI, code, v.Latency.Round(time.Millisecond), v.RequestID)
			return nil
		},
	})
}

// metricsRecorder records each request against the route template it
// matched. Errors have not yet been rendered when this middleware sees
// them, so the status is derived from the error instead.
func metricsRecorder(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			started := time.Now()
			err := next(ec)

			status := ec.Response().Status
			if err != nil && !ec.Response().Committed {
				status = statusFromError(err)
			}

			route := ec.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(route, status, time.Since(started))
			return err
		}
	}
}

func statusFromError(err error) int {
	var apiErr apierror.APIError
	if errors.As(err, &apiErr) && apiErr.Status != 0 {
		return apiErr.Status
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}

	return http.StatusInternalServerError
}
