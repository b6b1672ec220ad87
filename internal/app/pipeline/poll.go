package pipeline

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval replaces a non-positive Poll interval.
const DefaultPollInterval = 30 * time.Second

// PollHandle owns a running poller. The view that mounted the poller holds it and
// releases it on teardown.
type PollHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop cancels the poller and waits for its goroutine to exit. In-flight responses are
// dropped, and onResult is never invoked after Stop returns. Stop is idempotent.
// It must not be called from inside onResult.
func (h *PollHandle) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}

// Done is closed once the poller has exited, either through Stop or parent cancellation.
func (h *PollHandle) Done() <-chan struct{} {
	return h.done
}

// Stopped reports whether the poller has exited.
func (h *PollHandle) Stopped() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Poll fetches immediately, then again every interval, handing each outcome to onResult.
// A failed tick is reported like any other outcome and the next tick still runs.
// The poller stops when parent is canceled (e.g. logout) or when the handle is stopped.
// A non-positive interval means DefaultPollInterval.
func Poll[T any](parent context.Context, p *Pipeline, kind Kind, interval time.Duration, fetch func(ctx context.Context) (T, error), onResult func(Outcome[T])) *PollHandle {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(parent)
	h := &PollHandle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			out := Execute(ctx, p, kind, fetch)
			if ctx.Err() != nil {
				return
			}
			onResult(out)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return h
}
