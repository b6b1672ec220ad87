package chat

import (
	"errors"
	"net"

	"nyscmate/internal/pkg/errs"
)

// Fallback replies, one per failure kind.
const (
	FallbackUnreachable = "Sorry, I couldn't reach the server. Is the backend running?"
	FallbackTimeout     = "Sorry, the assistant is taking too long to respond. Please try again in a moment."
	FallbackMaintenance = "The assistant is under maintenance right now. Please try again later."
	FallbackSignedOut   = "Your session has expired. Please sign in again to continue chatting."
	FallbackCanceled    = "This question was canceled before an answer arrived."
	FallbackRateLimited = "You're asking too quickly. Please wait a moment and try again."
)

// FallbackText picks the reply that stands in for a failed ask. Validation messages from the
// remote service are shown verbatim.
func FallbackText(err *errs.CustomError) string {
	if err == nil {
		return FallbackUnreachable
	}

	switch err.Code {
	case errs.ErrTimeout:
		return FallbackTimeout
	case errs.ErrServiceUnavailable:
		var netErr net.Error
		if errors.As(err, &netErr) {
			return FallbackUnreachable
		}
		return FallbackMaintenance
	case errs.ErrUnauthorized:
		return FallbackSignedOut
	case errs.ErrCanceled:
		return FallbackCanceled
	case errs.ErrRateLimitExceeded:
		return FallbackRateLimited
	case errs.ErrValidationRejected, errs.ErrInvalidParams:
		if err.Message != "" {
			return err.Message
		}
	}
	return FallbackUnreachable
}
