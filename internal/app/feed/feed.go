/*
Package feed keeps the dashboard's news and timeline data fresh.

The Dashboard polls both feeds together while it is mounted. A feed that fails keeps showing
its last good data, flagged stale, until a later tick succeeds.
*/
package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"nyscmate/internal/app/pipeline"
	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
)

// DefaultInterval is how often a mounted dashboard refetches.
const DefaultInterval = pipeline.DefaultPollInterval

// NewsItem is one entry of the news feed.
type NewsItem struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Date    string `json:"date"`
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Timeline is the signed-in user's service timeline.
type Timeline struct {
	DaysToCamp         int    `json:"days_to_camp"`
	RegistrationStatus string `json:"registration_status"`
	DeploymentState    string `json:"deployment_state"`
}

// API is the remote side of the feeds.
type API interface {
	News(ctx context.Context) ([]NewsItem, error)
	Timeline(ctx context.Context) (*Timeline, error)
}

// Snapshot is what the dashboard currently shows.
type Snapshot struct {
	News     []NewsItem
	Timeline *Timeline

	// NewsStale and TimelineStale are set while the last fetch of that feed failed.
	NewsStale     bool
	TimelineStale bool

	// Loaded is false until the first tick has completed, successfully or not.
	Loaded    bool
	UpdatedAt time.Time

	// Err is the most recent failure, cleared once both feeds succeed.
	Err *errs.CustomError
}

// tick is the result of one fetch of both feeds.
type tick struct {
	news     pipeline.Outcome[[]NewsItem]
	timeline pipeline.Outcome[*Timeline]
}

// Dashboard owns the poller behind the dashboard view.
type Dashboard struct {
	api      API
	pipe     *pipeline.Pipeline
	interval time.Duration

	mu     sync.Mutex
	snap   Snapshot
	handle *pipeline.PollHandle
	scope  context.Context

	emitMu    sync.Mutex
	listeners map[int]func(Snapshot)
	nextLis   int

	logger zerolog.Logger
	now    func() time.Time
}

// NewDashboard returns an unmounted dashboard. A non-positive interval means DefaultInterval.
func NewDashboard(api API, pipe *pipeline.Pipeline, interval time.Duration) *Dashboard {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Dashboard{
		api:       api,
		pipe:      pipe,
		interval:  interval,
		listeners: make(map[int]func(Snapshot)),
		logger:    logx.Component("feed"),
		now:       time.Now,
	}
}

// Mount starts polling under ctx, normally the authenticated scope. Mounting an already
// mounted dashboard is a no-op; a dashboard whose poller died with its scope is restarted.
func (d *Dashboard) Mount(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running() {
		return
	}
	d.scope = ctx
	d.handle = pipeline.Poll(ctx, d.pipe, pipeline.KindFeed, d.interval, d.fetch, d.onTick)
}

// Unmount stops the poller. No update is delivered after Unmount returns.
// The last snapshot is kept.
func (d *Dashboard) Unmount() {
	d.mu.Lock()
	h := d.handle
	d.handle, d.scope = nil, nil
	d.mu.Unlock()

	if h != nil {
		h.Stop()
	}
}

// Mounted reports whether a poller is running.
func (d *Dashboard) Mounted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running()
}

// running reports whether the poller is alive and its scope still open. A poller whose
// scope was just canceled may not have exited yet. Caller holds mu.
func (d *Dashboard) running() bool {
	return d.handle != nil && !d.handle.Stopped() && d.scope.Err() == nil
}

// Refresh fetches both feeds once, outside the polling schedule.
func (d *Dashboard) Refresh(ctx context.Context) Snapshot {
	t, _ := d.fetch(ctx)
	return d.record(t)
}

// Snapshot returns the current data.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap.clone()
}

// OnUpdate registers fn for every snapshot produced from now on.
func (d *Dashboard) OnUpdate(fn func(Snapshot)) (cancel func()) {
	d.mu.Lock()
	id := d.nextLis
	d.nextLis++
	d.listeners[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

// fetch loads both feeds concurrently. It fails only when both feeds failed.
func (d *Dashboard) fetch(ctx context.Context) (tick, error) {
	var t tick
	var failed atomic.Int32

	// A single failed feed is reported through the tick so its sibling still completes;
	// only the second failure fails the group.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t.news = pipeline.Execute(gctx, d.pipe, pipeline.KindFeed, d.api.News)
		if !t.news.OK() && failed.Add(1) == 2 {
			return t.news.Err
		}
		return nil
	})
	g.Go(func() error {
		t.timeline = pipeline.Execute(gctx, d.pipe, pipeline.KindFeed, d.api.Timeline)
		if !t.timeline.OK() && failed.Add(1) == 2 {
			return t.timeline.Err
		}
		return nil
	})

	err := g.Wait()
	return t, err
}

func (d *Dashboard) onTick(out pipeline.Outcome[tick]) {
	t := out.Value
	if !out.OK() {
		// Both feeds failed, or the tick as a whole timed out.
		t.news.Err = out.Err
		t.timeline.Err = out.Err
	}
	d.record(t)
}

// record folds one tick into the snapshot and notifies listeners.
func (d *Dashboard) record(t tick) Snapshot {
	d.mu.Lock()

	s := &d.snap
	s.Loaded = true
	s.UpdatedAt = d.now()
	s.Err = nil

	if t.news.OK() {
		s.News = t.news.Value
		s.NewsStale = false
	} else {
		s.NewsStale = true
		s.Err = t.news.Err
	}
	if t.timeline.OK() && t.timeline.Value != nil {
		s.Timeline = t.timeline.Value
		s.TimelineStale = false
	} else {
		s.TimelineStale = true
		if t.timeline.Err != nil {
			s.Err = t.timeline.Err
		}
	}

	if s.Err != nil {
		d.logger.Debug().Int("code", s.Err.Code).Bool("news_stale", s.NewsStale).
			Bool("timeline_stale", s.TimelineStale).Msg("Feed refresh failed, keeping stale data")
	}

	snap := s.clone()
	fns := make([]func(Snapshot), 0, len(d.listeners))
	for i := 0; i < d.nextLis; i++ {
		if fn, ok := d.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}

	d.emitMu.Lock()
	d.mu.Unlock()
	defer d.emitMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
	return snap
}

func (s Snapshot) clone() Snapshot {
	c := s
	c.News = append([]NewsItem(nil), s.News...)
	if s.Timeline != nil {
		tl := *s.Timeline
		c.Timeline = &tl
	}
	return c
}
