/*
Package resp provides helper functions for sending the development server's JSON responses.

Successful responses carry the payload bare, the way the assistant backend's clients expect it.
Errors use the backend's error body: a "detail" that is either a message or a list of
field-level messages, plus the business code from the errs package.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	// Detail is a string, or a []FieldDetail for validation failures.
	Detail any `json:"detail"`

	// Code is the business status code (see errs package).
	Code int `json:"code"`
}

// FieldDetail is one entry of a validation failure's detail list.
type FieldDetail struct {
	Loc []string `json:"loc"`
	Msg string   `json:"msg"`
}

// Message is the body of responses that only acknowledge an action.
type Message struct {
	Message string `json:"message"`
	ID      int64  `json:"id,omitempty"`
}

// RespondJSON sets the Content-Type and sends payload with httpStatus.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(err, "Error encoding JSON response", "http_status", httpStatus, "path", r.URL.Path)
		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	_, _ = w.Write(response)
}

// RespondSuccess sends data with HTTP 200.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, data)
}

// RespondMessage acknowledges an action with HTTP 200.
func RespondMessage(w http.ResponseWriter, r *http.Request, msg string) {
	RespondJSON(w, r, http.StatusOK, Message{Message: msg})
}

// RespondError sends customErr with its HTTP status. Field errors become the detail list.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	body := ErrorBody{Code: customErr.Code, Detail: customErr.Message}
	if len(customErr.Fields) > 0 {
		details := make([]FieldDetail, 0, len(customErr.Fields))
		for _, f := range customErr.Fields {
			loc := []string{"body"}
			if f.Field != "" {
				loc = append(loc, f.Field)
			}
			details = append(details, FieldDetail{Loc: loc, Msg: f.Message})
		}
		body.Detail = details
	}

	RespondJSON(w, r, customErr.Status, body)
}
