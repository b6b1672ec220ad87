/*
Package errs provides custom error types and application-level error code constants.

The codes identify authentication, pipeline, routing and system failures both inside the
client and on the wire between the client and the remote service.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrFormParseFailed indicates failure to parse multipart or URL-encoded form data.
	ErrFormParseFailed = 1005

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Authentication Errors (surfaced verbatim to the initiating form, never retried)
const (
	// ErrInvalidCredentials indicates the email/password pair was rejected.
	ErrInvalidCredentials = 2001

	// ErrAlreadyExists indicates the account being created is already registered.
	ErrAlreadyExists = 2002

	// ErrValidationFailed indicates signup/profile fields were rejected; field messages are attached.
	ErrValidationFailed = 2003

	// ErrNotFound indicates the addressed record does not exist.
	ErrNotFound = 2004

	// ErrDuplicateClearance indicates a clearance request for the same month was already submitted.
	ErrDuplicateClearance = 2005
)

// 3xxx: Pipeline Errors
const (
	// ErrTimeout indicates the request lost the race against its timer.
	ErrTimeout = 3001

	// ErrUnauthorized indicates the credential is missing, expired or invalid. It forces a logout.
	ErrUnauthorized = 3002

	// ErrServiceUnavailable indicates the remote service is unreachable or in maintenance.
	ErrServiceUnavailable = 3003

	// ErrValidationRejected indicates the remote service rejected the payload; its messages are passed through.
	ErrValidationRejected = 3004

	// ErrCanceled indicates the request was abandoned by its owner (view teardown, logout, new chat).
	ErrCanceled = 3005
)

// 4xxx: Access Errors
const (
	// ErrRouterDenied indicates a navigation request was redirected by a view gate.
	ErrRouterDenied = 4001

	// ErrForbidden indicates the current role may not perform the operation.
	ErrForbidden = 4002
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified failure.
	ErrUnknown = 5000

	// ErrSessionStore indicates the durable session store could not be read or written.
	ErrSessionStore = 5001

	// ErrStorageFailed indicates an attachment could not be stored.
	ErrStorageFailed = 5002
)
