package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ppiankov/herbia/internal/model"
)

// Stable error codes returned to API clients
const (
	CodeInvalidInput       = "invalid_input"
	CodeUnsupportedMedia   = "unsupported_media"
	CodePayloadTooLarge    = "payload_too_large"
	CodeQuotaExhausted     = "quota_exhausted"
	CodeMissingCredentials = "missing_credentials"
	CodeContractViolation  = "contract_violation"
	CodeInternal           = "internal"
)

// Error is an API error carrying an HTTP status and a stable code
type Error struct {
	Status int
	Code   string
	Err    error
}

// Error returns the wrapped message, falling back to the code or status
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with the given status, code and cause
func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From classifies err by its sentinel kind
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return New(http.StatusBadRequest, CodeInvalidInput, err)
	case errors.Is(err, model.ErrUnsupportedMedia):
		return New(http.StatusUnsupportedMediaType, CodeUnsupportedMedia, err)
	case errors.Is(err, model.ErrPayloadTooLarge):
		return New(http.StatusRequestEntityTooLarge, CodePayloadTooLarge, err)
	case errors.Is(err, model.ErrQuotaExhausted):
		return New(http.StatusTooManyRequests, CodeQuotaExhausted, err)
	case errors.Is(err, model.ErrMissingCredentials):
		return New(http.StatusInternalServerError, CodeMissingCredentials, err)
	case errors.Is(err, model.ErrContractViolation):
		return New(http.StatusBadGateway, CodeContractViolation, err)
	default:
		return New(http.StatusInternalServerError, CodeInternal, err)
	}
}
