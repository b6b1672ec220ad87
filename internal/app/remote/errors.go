package remote

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"nyscmate/internal/pkg/errs"
)

// errorBody is the service's error envelope. Detail is a string or a list of field errors.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Code   int             `json:"code,omitempty"`
}

type detailItem struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// parseDetail returns the detail text and, for list-shaped details, the field errors.
func parseDetail(body []byte) (string, []errs.FieldError) {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || len(eb.Detail) == 0 {
		return "", nil
	}

	var text string
	if err := json.Unmarshal(eb.Detail, &text); err == nil {
		return text, nil
	}

	var items []detailItem
	if err := json.Unmarshal(eb.Detail, &items); err != nil {
		return "", nil
	}
	fields := make([]errs.FieldError, 0, len(items))
	for _, it := range items {
		fields = append(fields, errs.FieldError{Field: fieldName(it.Loc), Message: it.Msg})
	}
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, ", "), fields
}

// fieldName picks the last string element of a location path like ["body", "password"].
func fieldName(loc []any) string {
	for i := len(loc) - 1; i >= 0; i-- {
		if s, ok := loc[i].(string); ok && s != "body" && s != "query" {
			return s
		}
	}
	return ""
}

// mapStatus converts a non-2xx response into the error taxonomy.
func mapStatus(status int, c call, body []byte) error {
	detail, fields := parseDetail(body)

	with := func(code int) *errs.CustomError {
		e := errs.NewError(code).WithMessage(detail)
		if len(fields) > 0 {
			e = e.WithFields(fields...)
		}
		return e
	}

	switch {
	case status == http.StatusUnauthorized:
		if c.auth {
			return with(errs.ErrInvalidCredentials)
		}
		return errs.NewError(errs.ErrUnauthorized)

	case status == http.StatusConflict:
		return with(errs.ErrAlreadyExists)

	case status == http.StatusUnprocessableEntity:
		if c.auth {
			return with(errs.ErrValidationFailed)
		}
		return with(errs.ErrValidationRejected)

	case status == http.StatusBadRequest:
		if c.auth {
			switch {
			case strings.EqualFold(detail, "Invalid credentials"):
				return with(errs.ErrInvalidCredentials)
			case strings.EqualFold(detail, "Email already registered"):
				return with(errs.ErrAlreadyExists)
			}
		}
		return with(errs.ErrValidationRejected)

	case status == http.StatusForbidden:
		return with(errs.ErrForbidden)

	case status == http.StatusNotFound:
		return with(errs.ErrNotFound)

	case status == http.StatusRequestEntityTooLarge:
		return with(errs.ErrRequestEntityTooLarge)

	case status == http.StatusTooManyRequests:
		return with(errs.ErrRateLimitExceeded)

	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return errs.NewError(errs.ErrServiceUnavailable)
	}

	return errs.Wrap(errs.ErrUnknown, fmt.Errorf("%s %s: HTTP %d %s", c.method, c.path, status, detail))
}
