/*
Package pipeline issues remote calls with a timeout, cancellation and a fallback policy.

Every call becomes a tracked Request. The timeout is a race between the call and a timer, so a
slow transport can never hold a caller past its budget; the late result is simply dropped.
*/
package pipeline

import (
	"time"

	"nyscmate/internal/pkg/errs"
)

// Kind classifies a request. Each kind has its own default timeout.
type Kind string

const (
	KindAsk     Kind = "ask"
	KindAuth    Kind = "auth"
	KindProfile Kind = "profile"
	KindFeed    Kind = "feed"
	KindPortal  Kind = "portal"
	KindAdmin   Kind = "admin"
)

// Timeouts maps each kind to its default budget.
type Timeouts map[Kind]time.Duration

// DefaultTimeouts returns the stock budgets: asks tolerate remote cold starts,
// auth matches the remote's slowest path, everything else is short.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		KindAsk:     45 * time.Second,
		KindAuth:    60 * time.Second,
		KindProfile: 10 * time.Second,
		KindFeed:    10 * time.Second,
		KindPortal:  10 * time.Second,
		KindAdmin:   10 * time.Second,
	}
}

const fallbackTimeout = 10 * time.Second

// State is the lifecycle of a Request.
type State int

const (
	Pending State = iota
	Resolved
	Failed
	Canceled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	case Canceled:
		return "canceled"
	}
	return "unknown"
}

// Request is the pipeline's record of one call. Callers only ever see copies.
type Request struct {
	ID       uint64
	Kind     Kind
	IssuedAt time.Time
	Timeout  time.Duration
	State    State
}

// Outcome is the immutable result of one request.
type Outcome[T any] struct {
	Request Request

	// Value is the call's result, or the fallback value when Fallback is set.
	Value T

	// Err is nil on success. It is kept when a fallback value was substituted.
	Err *errs.CustomError

	// Fallback reports that Value came from the fallback policy, not the remote.
	Fallback bool
}

// OK reports whether the remote call succeeded.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Option adjusts a single request.
type Option func(*options)

type options struct {
	timeout  time.Duration
	skipHook bool
}

// WithTimeout overrides the kind's default budget.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// SkipUnauthorizedHook keeps an Unauthorized outcome from forcing a logout.
// Used where the caller tears the session down itself.
func SkipUnauthorizedHook() Option {
	return func(o *options) { o.skipHook = true }
}
