package pipeline

import (
	"context"
	"errors"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
)

// Pipeline assigns request ids, enforces timeouts and tracks what is in flight.
// It never retries; retries are always initiated by the user.
type Pipeline struct {
	timeouts Timeouts

	// nextID is the last id handed out. Ids are monotonically increasing across all kinds.
	nextID atomic.Uint64

	mu       sync.Mutex
	inflight map[uint64]Request

	hookMu         sync.RWMutex
	onUnauthorized func(ctx context.Context)

	logger zerolog.Logger
	now    func() time.Time
}

// New creates a Pipeline. Kinds missing from timeouts fall back to DefaultTimeouts.
func New(timeouts Timeouts) *Pipeline {
	merged := DefaultTimeouts()
	for k, d := range timeouts {
		if d > 0 {
			merged[k] = d
		}
	}

	return &Pipeline{
		timeouts: merged,
		inflight: make(map[uint64]Request),
		logger:   logx.Component("pipeline"),
		now:      time.Now,
	}
}

// OnUnauthorized registers the hook fired, synchronously and with the request's context,
// when a request outside KindAuth comes back Unauthorized.
func (p *Pipeline) OnUnauthorized(fn func(ctx context.Context)) {
	p.hookMu.Lock()
	p.onUnauthorized = fn
	p.hookMu.Unlock()
}

// Timeout returns the default budget for kind.
func (p *Pipeline) Timeout(kind Kind) time.Duration {
	if d, ok := p.timeouts[kind]; ok {
		return d
	}
	return fallbackTimeout
}

// InFlight returns the pending requests ordered by id.
func (p *Pipeline) InFlight() []Request {
	p.mu.Lock()
	out := make([]Request, 0, len(p.inflight))
	for _, r := range p.inflight {
		out = append(out, r)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Ticket is a reserved request id, handed out before the call is issued so the caller can
// record the request (e.g. append the user's chat message) first.
type Ticket struct {
	req  Request
	opts options
}

// ID returns the reserved request id.
func (t Ticket) ID() uint64 { return t.req.ID }

// Request returns a copy of the pending request.
func (t Ticket) Request() Request { return t.req }

// Reserve assigns the next request id without issuing anything.
func (p *Pipeline) Reserve(kind Kind, opts ...Option) Ticket {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = p.Timeout(kind)
	}

	return Ticket{
		req: Request{
			ID:       p.nextID.Add(1),
			Kind:     kind,
			IssuedAt: p.now(),
			Timeout:  o.timeout,
			State:    Pending,
		},
		opts: o,
	}
}

// Execute issues call as a new request of the given kind.
func Execute[T any](ctx context.Context, p *Pipeline, kind Kind, call func(ctx context.Context) (T, error), opts ...Option) Outcome[T] {
	return Run(ctx, p, p.Reserve(kind, opts...), call)
}

// ExecuteWithFallback is Execute, except that a failed request yields fallback(err) as its value.
// The outcome still carries the error, and Fallback is set.
func ExecuteWithFallback[T any](ctx context.Context, p *Pipeline, kind Kind, call func(ctx context.Context) (T, error), fallback func(*errs.CustomError) T, opts ...Option) Outcome[T] {
	return WithFallback(Execute(ctx, p, kind, call, opts...), fallback)
}

// WithFallback substitutes fallback(err) as the value of a failed outcome.
func WithFallback[T any](out Outcome[T], fallback func(*errs.CustomError) T) Outcome[T] {
	if out.Err == nil || fallback == nil {
		return out
	}
	out.Value = fallback(out.Err)
	out.Fallback = true
	return out
}

type result[T any] struct {
	v   T
	err error
}

// Run issues a reserved request. The call races a timer set to the request's timeout; whichever
// finishes first decides the outcome. A call still running when the timer fires or ctx is
// canceled has its context canceled and its eventual result discarded.
func Run[T any](ctx context.Context, p *Pipeline, t Ticket, call func(ctx context.Context) (T, error)) Outcome[T] {
	req := t.req
	out := Outcome[T]{}

	if err := ctx.Err(); err != nil {
		req.State = Canceled
		out.Request = req
		out.Err = errs.Wrap(errs.ErrCanceled, err)
		return out
	}

	p.track(req)
	defer p.untrack(req.ID)

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := call(callCtx)
		done <- result[T]{v: v, err: err}
	}()

	timer := time.NewTimer(req.Timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		switch {
		case ctx.Err() != nil:
			// The owner gave up while the response was in transit; drop it.
			req.State = Canceled
			out.Err = errs.Wrap(errs.ErrCanceled, ctx.Err())
		case r.err != nil:
			req.State = Failed
			out.Err = classify(r.err)
		default:
			req.State = Resolved
			out.Value = r.v
		}
	case <-timer.C:
		req.State = Failed
		out.Err = errs.Wrap(errs.ErrTimeout, context.DeadlineExceeded)
	case <-ctx.Done():
		req.State = Canceled
		out.Err = errs.Wrap(errs.ErrCanceled, ctx.Err())
	}

	out.Request = req
	p.logOutcome(req, out.Err)

	if out.Err != nil && out.Err.Code == errs.ErrUnauthorized && req.Kind != KindAuth && !t.opts.skipHook {
		p.hookMu.RLock()
		hook := p.onUnauthorized
		p.hookMu.RUnlock()
		if hook != nil {
			hook(ctx)
		}
	}

	return out
}

func (p *Pipeline) track(r Request) {
	p.mu.Lock()
	p.inflight[r.ID] = r
	p.mu.Unlock()
}

func (p *Pipeline) untrack(id uint64) {
	p.mu.Lock()
	delete(p.inflight, id)
	p.mu.Unlock()
}

func (p *Pipeline) logOutcome(r Request, err *errs.CustomError) {
	elapsed := p.now().Sub(r.IssuedAt)
	if err == nil {
		p.logger.Debug().
			Uint64("request_id", r.ID).
			Str("kind", string(r.Kind)).
			Dur("elapsed", elapsed).
			Msg("Request resolved")
		return
	}

	ev := p.logger.Warn()
	if r.State == Canceled {
		ev = p.logger.Debug()
	}
	ev.Uint64("request_id", r.ID).
		Str("kind", string(r.Kind)).
		Str("state", r.State.String()).
		Int("code", err.Code).
		Dur("elapsed", elapsed).
		Msg("Request did not resolve")
}

// classify maps a call error onto the failure taxonomy.
func classify(err error) *errs.CustomError {
	var ce *errs.CustomError
	if errors.As(err, &ce) {
		return ce
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errs.Wrap(errs.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return errs.Wrap(errs.ErrCanceled, err)
	}

	// Transport failures (refused, reset, DNS) mean the service cannot be reached.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errs.Wrap(errs.ErrServiceUnavailable, err)
	}

	return errs.Wrap(errs.ErrUnknown, err)
}
