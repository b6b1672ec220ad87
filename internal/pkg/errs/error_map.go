/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError template, used both to build
HTTP responses on the remote service and to render user-facing messages in the client.
*/
package errs

import "net/http"

// errorMap stores the CustomError template corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrFormParseFailed:       {Code: ErrFormParseFailed, Message: "Failed to process uploaded data.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Authentication Errors
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Invalid credentials", Status: http.StatusUnauthorized},
	ErrAlreadyExists:      {Code: ErrAlreadyExists, Message: "Email already registered", Status: http.StatusConflict},
	ErrValidationFailed:   {Code: ErrValidationFailed, Message: "Some fields are invalid.", Status: http.StatusUnprocessableEntity},
	ErrNotFound:           {Code: ErrNotFound, Message: "Not found.", Status: http.StatusNotFound},
	ErrDuplicateClearance: {Code: ErrDuplicateClearance, Message: "Clearance request already submitted for %s", Status: http.StatusBadRequest},

	// 3xxx: Pipeline Errors
	ErrTimeout:            {Code: ErrTimeout, Message: "The request timed out.", Status: http.StatusGatewayTimeout},
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrServiceUnavailable: {Code: ErrServiceUnavailable, Message: "The service is under maintenance. Please try again later.", Status: http.StatusServiceUnavailable},
	ErrValidationRejected: {Code: ErrValidationRejected, Message: "The request was rejected.", Status: http.StatusBadRequest},
	ErrCanceled:           {Code: ErrCanceled, Message: "The request was canceled."},

	// 4xxx: Access Errors
	ErrRouterDenied: {Code: ErrRouterDenied, Message: "You do not have access to %s."},
	ErrForbidden:    {Code: ErrForbidden, Message: "Not authorized", Status: http.StatusForbidden},

	// 5xxx: Internal System Errors
	ErrUnknown:       {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrSessionStore:  {Code: ErrSessionStore, Message: "Could not save your session on this device."},
	ErrStorageFailed: {Code: ErrStorageFailed, Message: "File upload failed. Please try again.", Status: http.StatusInternalServerError},
}
