package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

// errorBody is the JSON error document returned by the backend.
type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"description"`
	Debug       string `json:"debug"`
}

var semanticErrors = map[string]error{
	"ResultSetSizeExceeded":    ErrResultSetSizeExceeded,
	"MissingConfiguration":     ErrMissingConfiguration,
	"ParameterValueOutOfRange": ErrParameterValueOutOfRange,
}

// mapHTTPError translates a non-2xx response to a sentinel error. A known
// semantic error name in the body is wrapped together with the status error,
// so both match with errors.Is.
func mapHTTPError(resp *resty.Response) error {
	return mapStatusError(resp.StatusCode(), resp.Body())
}

func mapStatusError(code int, raw []byte) error {
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(raw))

	var parsed errorBody
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error != "" {
		body = parsed.Error
		if parsed.Description != "" {
			body += ": " + parsed.Description
		}
	}

	statusErr := statusError(code)
	semanticErr, isSemantic := semanticErrors[parsed.Error]

	switch {
	case statusErr != nil && isSemantic:
		return fmt.Errorf("%w: %w: %s", statusErr, semanticErr, body)
	case isSemantic:
		return fmt.Errorf("%w: %s", semanticErr, body)
	case statusErr != nil:
		return fmt.Errorf("%w: %s", statusErr, body)
	default:
		if body == "" {
			body = http.StatusText(code)
		}
		return fmt.Errorf("http %d: %s", code, body)
	}
}

func statusError(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusInternalServerError:
		return ErrInternalServerError
	case http.StatusBadGateway:
		return ErrBadGateway
	case http.StatusServiceUnavailable:
		return ErrServiceUnavailable
	}
	return nil
}

// mapTransportError classifies an error returned before a response arrived.
// Caller cancellation is passed through unchanged.
func mapTransportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}

	return fmt.Errorf("%s: %w: %w", op, ErrConnectivity, err)
}
