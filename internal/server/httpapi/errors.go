package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dmitrijs2005/memeforge/internal/common"
	"github.com/dmitrijs2005/memeforge/internal/logging"
	"github.com/dmitrijs2005/memeforge/internal/redact"
)

// Error codes of the public API.
const (
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeMissingProviderKey = "MISSING_PROVIDER_KEY"
	CodeInvalidProviderKey = "INVALID_PROVIDER_KEY"
	CodeProviderTimeout    = "PROVIDER_TIMEOUT"
	CodeInternal           = "INTERNAL_ERROR"
)

// APIError is rendered as {"error":{"code","message","retryAfter"}}.
type APIError struct {
	Status     int
	Code       string
	Message    string
	RetryAfter int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func badRequest(format string, args ...any) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func unauthorized(msg string) *APIError {
	return &APIError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: msg}
}

// toAPIError maps service errors onto the public taxonomy. Anything unknown
// becomes a generic internal error.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return fromHTTPError(he)
	}

	var sre *common.SafetyRejectedError
	switch {
	case errors.As(err, &sre):
		return badRequest("%s", sre.Error())
	case errors.Is(err, common.ErrValidation):
		return badRequest("%s", err.Error())
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return unauthorized("invalid or missing credentials")
	case errors.Is(err, common.ErrorNotFound):
		return &APIError{Status: http.StatusNotFound, Code: CodeNotFound, Message: "not found"}
	case errors.Is(err, common.ErrConflict):
		return &APIError{Status: http.StatusConflict, Code: CodeConflict, Message: "conflict, please retry"}
	case errors.Is(err, common.ErrPayloadTooLarge):
		return &APIError{Status: http.StatusRequestEntityTooLarge, Code: CodePayloadTooLarge, Message: "payload too large"}
	case errors.Is(err, common.ErrMissingProviderKey):
		return &APIError{Status: http.StatusForbidden, Code: CodeMissingProviderKey,
			Message: "no image generation API key configured, register one via PUT /api/v1/provider-keys"}
	case errors.Is(err, common.ErrProviderAuthRejected):
		return &APIError{Status: http.StatusForbidden, Code: CodeInvalidProviderKey,
			Message: "the image provider rejected your API key"}
	case errors.Is(err, common.ErrProviderTimeout):
		return &APIError{Status: http.StatusGatewayTimeout, Code: CodeProviderTimeout,
			Message: "the image provider did not respond in time, please retry"}
	case errors.Is(err, common.ErrProviderFailure):
		return &APIError{Status: http.StatusBadGateway, Code: CodeInternal, Message: "image generation failed"}
	}
	return &APIError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal error"}
}

func fromHTTPError(he *echo.HTTPError) *APIError {
	msg := fmt.Sprint(he.Message)
	switch he.Code {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return &APIError{Status: he.Code, Code: CodeNotFound, Message: msg}
	case http.StatusUnauthorized:
		return unauthorized(msg)
	case http.StatusRequestEntityTooLarge:
		return &APIError{Status: he.Code, Code: CodePayloadTooLarge, Message: msg}
	case http.StatusTooManyRequests:
		return &APIError{Status: he.Code, Code: CodeRateLimited, Message: msg}
	}
	if he.Code >= 400 && he.Code < 500 {
		return &APIError{Status: he.Code, Code: CodeValidation, Message: msg}
	}
	return &APIError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal error"}
}

// errorHandler renders every error as the JSON envelope. Server-side
// failures are logged in full (scrubbed); callers only see the code.
func errorHandler(log logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		apiErr := toAPIError(err)
		ctx := c.Request().Context()
		if apiErr.Status >= http.StatusInternalServerError {
			log.Error(ctx, "request failed", "method", c.Request().Method, "path", c.Path(), "error", redact.Error(err))
		} else {
			log.Debug(ctx, "request rejected", "method", c.Request().Method, "path", c.Path(), "code", apiErr.Code, "error", redact.Error(err))
		}

		if apiErr.RetryAfter > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfter))
		}

		body := errorEnvelope{Error: errorBody{Code: apiErr.Code, Message: apiErr.Message, RetryAfter: apiErr.RetryAfter}}
		if err := c.JSON(apiErr.Status, body); err != nil {
			log.Warn(ctx, "write error response", "error", err)
		}
	}
}
