package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hbomb79/Grabber/pkg/logger"
	"github.com/labstack/echo/v4"
)

type APIError struct {
	// Human readable error display message
	Message string `json:"error"`

	// Optional extra information about the failure, typically the
	// error text reported by the extraction tool.
	Details string `json:"details,omitempty"`

	// Used to alter the HTTP response status in accordance with the error
	Status int `json:"-"`

	// Additional message for internal logging only. Will not be included in the message
	// sent to the user.
	InternalMessage string `json:"-"`
}

// Error satisifies the Go error interface and simply exposes the
// message contained by this APIError.
func (err APIError) Error() string {
	if err.Details != "" {
		return fmt.Sprintf("api error: %s (%s)", err.Message, err.Details)
	}

	return fmt.Sprintf("api error: %s", err.Message)
}

// BadRequest constructs a 400 APIError with the message provided.
func BadRequest(message string) APIError {
	return APIError{Status: http.StatusBadRequest, Message: message}
}

// Internal constructs a 500 APIError. The details are shown to the user,
// while the cause is only logged.
func Internal(message string, details string, cause error) APIError {
	apiErr := APIError{Status: http.StatusInternalServerError, Message: message, Details: details}
	if cause != nil {
		apiErr.InternalMessage = cause.Error()
	}

	return apiErr
}

// GetHTTPErrorHandler returns an echo HTTP error handler which renders every
// error as an {error, details} JSON body. APIErrors are used verbatim, echo's
// own HTTPErrors (404, 405, bind failures) keep their status and message, and
// anything else is a 500.
func GetHTTPErrorHandler() echo.HTTPErrorHandler {
	log := logger.Get("API")
	return func(err error, ctx echo.Context) {
		if ctx.Response().Committed {
			log.Errorf("%s %s failed after response was committed: %v\n", ctx.Request().Method, ctx.Request().URL.Path, err)
			return
		}

		var apiErr APIError
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &httpErr):
			apiErr = APIError{Status: httpErr.Code, Message: fmt.Sprint(httpErr.Message)}
			if httpErr.Internal != nil {
				apiErr.InternalMessage = httpErr.Internal.Error()
			}
		default:
			log.Warnf(
				"%s request to %s caused error response, however the error is not an APIError. Responding with 500\n",
				ctx.Request().Method, ctx.Request().RequestURI,
			)
			apiErr = APIError{Status: http.StatusInternalServerError, InternalMessage: err.Error()}
		}

		if apiErr.Status == 0 {
			apiErr.Status = http.StatusInternalServerError
		}
		if len(apiErr.Message) == 0 {
			apiErr.Message = http.StatusText(apiErr.Status)
		}
		if len(apiErr.InternalMessage) > 0 {
			log.Errorf("Request failure, internal error: %s\n", apiErr.InternalMessage)
		}

		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(apiErr.Status)
		} else {
			err = ctx.JSON(apiErr.Status, apiErr)
		}
		if err != nil {
			log.Errorf("Failed to write error response: %v\n", err)
		}
	}
}
