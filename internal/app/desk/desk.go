/*
Package desk assembles the client: session gate, router, conversation, dashboard feeds,
portal tasks and checklist, all sharing one request pipeline and one notification sink.

It reacts to session transitions. When a session ends the conversation is discarded and the
router is sent back to the auth view; pollers and in-flight requests die with the
authenticated scope.
*/
package desk

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nyscmate/internal/app/chat"
	"nyscmate/internal/app/checklist"
	"nyscmate/internal/app/feed"
	"nyscmate/internal/app/notify"
	"nyscmate/internal/app/pipeline"
	"nyscmate/internal/app/portal"
	"nyscmate/internal/app/remote"
	"nyscmate/internal/app/router"
	"nyscmate/internal/app/session"
	"nyscmate/internal/app/user"
	"nyscmate/internal/configs"
	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
)

// Remote is everything the client needs from the remote service.
type Remote interface {
	session.AuthAPI
	chat.AskAPI
	feed.API
	portal.API
}

// Deps are the collaborators of an App.
type Deps struct {
	Store        session.Store
	Remote       Remote
	Sink         notify.Sink
	Policy       user.AdminPolicy
	Timeouts     pipeline.Timeouts
	PollInterval time.Duration
}

// App is the assembled client.
type App struct {
	Store     session.Store
	Pipeline  *pipeline.Pipeline
	Gate      *session.Gate
	Router    *router.Router
	Chat      *chat.Conversation
	Dashboard *feed.Dashboard
	Portal    *portal.Service
	Checklist *checklist.Checklist

	mu       sync.Mutex
	decision router.Decision
	views    []func(router.Decision)

	// scope is the authenticated scope the transcript belongs to.
	scope context.Context

	unsubscribe func()
	logger      zerolog.Logger
}

// New wires an App from deps. Call Start before use.
func New(d Deps) (*App, error) {
	if d.Sink == nil {
		d.Sink = notify.Discard
	}

	pipe := pipeline.New(d.Timeouts)
	gate := session.NewGate(d.Store, d.Remote, pipe, d.Sink)

	list, err := checklist.Load(d.Store)
	if err != nil {
		return nil, err
	}

	a := &App{
		Store:     d.Store,
		Pipeline:  pipe,
		Gate:      gate,
		Router:    router.New(d.Policy),
		Chat:      chat.NewConversation(d.Remote, pipe, d.Sink),
		Dashboard: feed.NewDashboard(d.Remote, pipe, d.PollInterval),
		Portal:    portal.NewService(d.Remote, pipe, d.Policy, gate.Profile, d.Sink),
		Checklist: list,
		decision:  router.Decision{View: router.ViewLoading, Requested: router.ViewLoading},
		logger:    logx.Component("desk"),
	}
	a.Chat.BindScope(gate.Bind)
	a.Portal.BindScope(gate.Bind)
	a.unsubscribe = gate.Subscribe(a.onSession)
	return a, nil
}

// Open builds an App from configuration: the SQLite state file and the HTTP remote.
func Open(cfg *configs.ClientConfig, sink notify.Sink) (*App, error) {
	store, err := session.OpenSQLite(cfg.StatePath)
	if err != nil {
		return nil, err
	}

	// The remote reads the credential from the gate, which does not exist yet.
	var gate *session.Gate
	client, err := remote.New(cfg.APIBaseURL, remote.WithCredentials(func() session.Credential {
		if gate == nil {
			return ""
		}
		return gate.CurrentCredential()
	}))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a, err := New(Deps{
		Store:  store,
		Remote: client,
		Sink:   sink,
		Policy: user.AdminPolicy{SentinelEmail: cfg.AdminEmail},
		Timeouts: pipeline.Timeouts{
			pipeline.KindAsk:     cfg.AskTimeout,
			pipeline.KindAuth:    cfg.AuthTimeout,
			pipeline.KindProfile: cfg.ProfileTimeout,
			pipeline.KindFeed:    cfg.FeedTimeout,
			pipeline.KindPortal:  cfg.PortalTimeout,
			pipeline.KindAdmin:   cfg.AdminTimeout,
		},
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	gate = a.Gate
	return a, nil
}

// Start resolves the stored session.
func (a *App) Start(ctx context.Context) error {
	return a.Gate.Start(ctx)
}

// onSession runs on every gate transition. It may run on a poller or ask goroutine, so it
// never waits for either: a signed-out dashboard poller stops with the scope, not here.
// The transcript lives exactly as long as one session; a sign-in over an existing session
// opens a new scope and starts from an empty conversation.
func (a *App) onSession(st session.State) {
	scope := a.Gate.Scope()
	a.mu.Lock()
	replaced := a.scope != scope
	a.scope = scope
	a.mu.Unlock()

	if st.Status == session.StatusUnauthenticated || (st.Authenticated() && replaced) {
		a.Chat.Discard()
	}
	d := a.Router.Observe(st)
	a.setDecision(d)
	if d.View == router.ViewDashboard && st.Authenticated() {
		a.Dashboard.Mount(a.Gate.Scope())
	}
}

func (a *App) setDecision(d router.Decision) {
	a.mu.Lock()
	changed := d.View != a.decision.View
	a.decision = d
	fns := append([]func(router.Decision){}, a.views...)
	a.mu.Unlock()

	if changed {
		a.logger.Debug().Str("view", string(d.View)).Str("requested", string(d.Requested)).Msg("View changed")
	}
	for _, fn := range fns {
		fn(d)
	}
}

// OnView registers fn for every routing decision, including those caused by session changes.
func (a *App) OnView(fn func(router.Decision)) {
	a.mu.Lock()
	a.views = append(a.views, fn)
	a.mu.Unlock()
}

// View returns the latest routing decision.
func (a *App) View() router.Decision {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.decision
}

// Navigate moves to view if the session allows it. The dashboard's feeds are polled only
// while the dashboard is the current view.
func (a *App) Navigate(view router.View) router.Decision {
	d := a.Router.Navigate(a.Gate.State(), view)
	a.setDecision(d)

	if d.View == router.ViewDashboard {
		a.Dashboard.Mount(a.Gate.Scope())
	} else {
		a.Dashboard.Unmount()
	}
	return d
}

// Ask sends a question to the assistant. It requires a session.
func (a *App) Ask(ctx context.Context, question string) (*chat.Turn, error) {
	if !a.Gate.State().Authenticated() {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}
	return a.Chat.Ask(ctx, question)
}

// Close stops background work and closes the store.
func (a *App) Close() error {
	a.Dashboard.Unmount()
	a.Chat.Close()
	a.unsubscribe()
	return a.Store.Close()
}
