package session

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"nyscmate/internal/app/notify"
	"nyscmate/internal/app/pipeline"
	"nyscmate/internal/app/user"
	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
	"nyscmate/internal/pkg/randx"
)

// Grant is what the remote service returns on a successful sign-in.
type Grant struct {
	Credential Credential
	Profile    *user.Profile
}

// SocialIdentity is the provider-derived identity sent on social sign-in.
type SocialIdentity struct {
	Provider string `json:"provider"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// AuthAPI is the slice of the remote service the gate talks to.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*Grant, error)
	Signup(ctx context.Context, draft user.Draft) (*Grant, error)
	SocialLogin(ctx context.Context, id SocialIdentity) (*Grant, error)
	Me(ctx context.Context, cred Credential) (*user.Profile, error)
	UpdateProfile(ctx context.Context, cred Credential, patch user.ProfilePatch) (*user.Profile, error)
}

type epochKey struct{}

// epochOf returns the session epoch a context was scoped to, if any.
func epochOf(ctx context.Context) (uint64, bool) {
	e, ok := ctx.Value(epochKey{}).(uint64)
	return e, ok
}

// Gate is the session state machine. It is the only writer of the Store.
//
// Every transition runs under mu. Remote calls run with mu released; their results are applied
// only if the session epoch is unchanged, so a response from before a logout or a re-login can
// never reinstate or overwrite state.
type Gate struct {
	store Store
	api   AuthAPI
	pipe  *pipeline.Pipeline
	sink  notify.Sink

	mu          sync.Mutex
	state       State
	cred        Credential
	epoch       uint64
	scope       context.Context
	scopeCancel context.CancelFunc

	// dirty is set while local profile edits have not been accepted by the remote service.
	dirty          bool
	pending        user.ProfilePatch
	pendingVersion uint64

	// emitMu is taken before mu is released so observers see transitions in order.
	emitMu sync.Mutex
	subsMu sync.Mutex
	subs   map[int]func(State)
	nextID int

	logger zerolog.Logger
}

// NewGate creates a gate in the Loading state and registers it as the pipeline's
// Unauthorized hook. Call Start to resolve the stored session.
func NewGate(store Store, api AuthAPI, pipe *pipeline.Pipeline, sink notify.Sink) *Gate {
	if sink == nil {
		sink = notify.Discard
	}

	scope, cancel := context.WithCancel(context.Background())
	cancel()

	g := &Gate{
		store:       store,
		api:         api,
		pipe:        pipe,
		sink:        sink,
		state:       State{Status: StatusLoading},
		scope:       context.WithValue(scope, epochKey{}, uint64(0)),
		scopeCancel: cancel,
		subs:        make(map[int]func(State)),
		logger:      logx.Component("session"),
	}

	pipe.OnUnauthorized(g.Invalidate)
	return g
}

// State returns the current session state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return State{Status: g.state.Status, Profile: g.state.Profile.Clone()}
}

// Profile returns the signed-in profile, or nil.
func (g *Gate) Profile() *user.Profile {
	return g.State().Profile
}

// Dirty reports whether local profile edits are waiting to be accepted by the remote service.
func (g *Gate) Dirty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dirty
}

// CurrentCredential returns the credential of the signed-in session, or "".
func (g *Gate) CurrentCredential() Credential {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cred
}

// Scope returns the authenticated scope: a context canceled on logout or re-login, carrying
// the session epoch. It is already canceled when no session is signed in.
func (g *Gate) Scope() context.Context {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scope
}

// Bind joins ctx with the current authenticated scope. Requests issued under the returned
// context are canceled on logout, and an Unauthorized answer to one of them forces a logout.
func (g *Gate) Bind(ctx context.Context) (context.Context, context.CancelFunc) {
	g.mu.Lock()
	scope, epoch := g.scope, g.epoch
	g.mu.Unlock()
	return scoped(ctx, scope, epoch)
}

// Subscribe registers fn for every subsequent state, in transition order.
// fn runs on the goroutine that caused the transition and must not call Subscribe's
// returned cancel function or block on the gate.
func (g *Gate) Subscribe(fn func(State)) (cancel func()) {
	g.subsMu.Lock()
	id := g.nextID
	g.nextID++
	g.subs[id] = fn
	g.subsMu.Unlock()

	return func() {
		g.subsMu.Lock()
		delete(g.subs, id)
		g.subsMu.Unlock()
	}
}

// apply runs a transition. Caller holds mu; apply releases it after handing off to emitMu.
func (g *Gate) apply(ev event) {
	prev := g.state
	g.state = reduce(g.state, ev)
	next := State{Status: g.state.Status, Profile: g.state.Profile.Clone()}

	g.emitMu.Lock()
	g.mu.Unlock()
	defer g.emitMu.Unlock()

	if prev.Status != next.Status {
		g.logger.Debug().Str("from", prev.Status.String()).Str("to", next.Status.String()).Msg("Session transition")
	}

	g.subsMu.Lock()
	fns := make([]func(State), 0, len(g.subs))
	for i := 0; i < g.nextID; i++ {
		if fn, ok := g.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	g.subsMu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}

// openScope starts a new authenticated scope. Caller holds mu.
func (g *Gate) openScope() {
	g.scopeCancel()
	g.epoch++
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), epochKey{}, g.epoch))
	g.scope = ctx
	g.scopeCancel = cancel
}

// closeScope cancels the authenticated scope. Caller holds mu.
func (g *Gate) closeScope() {
	g.scopeCancel()
	g.epoch++
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), epochKey{}, g.epoch))
	cancel()
	g.scope = ctx
	g.scopeCancel = cancel
}

// scoped joins the caller's ctx with the authenticated scope: canceled when either is.
func scoped(ctx, scope context.Context, epoch uint64) (context.Context, context.CancelFunc) {
	joined, cancel := context.WithCancel(context.WithValue(ctx, epochKey{}, epoch))
	stop := context.AfterFunc(scope, cancel)
	return joined, func() {
		stop()
		cancel()
	}
}

// Start resolves the stored session. With nothing stored the gate becomes Unauthenticated.
// Otherwise the stored credential is validated with a profile fetch; any failure, timeout
// included, clears the store and the gate becomes Unauthenticated. A logout while the fetch
// is in flight cancels it and Start returns ErrCanceled.
func (g *Gate) Start(ctx context.Context) error {
	g.mu.Lock()
	g.apply(event{kind: evStart})

	rec, err := g.store.Load()

	g.mu.Lock()
	if err != nil || rec == nil {
		g.cred = ""
		g.closeScope()
		g.apply(event{kind: evSignedOut})
		if err != nil {
			g.logger.Error().Err(err).Msg("Failed to read stored session")
			return err
		}
		return nil
	}
	// The validating fetch runs in its own scope so a logout during Loading cancels it.
	g.openScope()
	scope, epoch := g.scope, g.epoch
	g.mu.Unlock()

	callCtx, cancel := scoped(ctx, scope, epoch)
	defer cancel()
	out := pipeline.Execute(callCtx, g.pipe, pipeline.KindProfile, func(ctx context.Context) (*user.Profile, error) {
		return g.api.Me(ctx, rec.Credential)
	}, pipeline.SkipUnauthorizedHook())

	g.mu.Lock()
	if g.epoch != epoch {
		g.mu.Unlock()
		return errs.NewError(errs.ErrCanceled)
	}

	if !out.OK() || out.Value == nil {
		if clearErr := g.store.Clear(); clearErr != nil {
			g.logger.Error().Err(clearErr).Msg("Failed to clear stored session")
		}
		g.cred = ""
		g.closeScope()
		g.apply(event{kind: evSignedOut})

		code := errs.ErrUnknown
		if out.Err != nil {
			code = out.Err.Code
		}
		g.logger.Info().Int("code", code).Msg("Stored session could not be validated")
		notify.Emit(g.sink, notify.LevelWarn, "auth", "Your session has expired. Please sign in again.")
		return nil
	}

	profile := out.Value
	profile.Normalize()
	if saveErr := g.store.Save(rec.Credential, profile); saveErr != nil {
		g.logger.Warn().Err(saveErr).Msg("Failed to refresh stored profile")
	}
	g.cred = rec.Credential
	g.dirty = false
	g.pending = user.ProfilePatch{}
	g.openScope()
	g.apply(event{kind: evSignedIn, profile: profile})
	return nil
}

// Login signs in with email and password.
func (g *Gate) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return errs.NewError(errs.ErrValidationFailed).WithFields(requiredFields(map[string]string{
			"email": email, "password": password,
		})...)
	}

	return g.signIn(ctx, "Welcome back!", func(ctx context.Context) (*Grant, error) {
		return g.api.Login(ctx, email, password)
	})
}

// Signup creates an account and signs in.
func (g *Gate) Signup(ctx context.Context, draft user.Draft) error {
	if err := ValidateDraft(&draft); err != nil {
		notify.Emit(g.sink, notify.LevelError, "auth", err.FieldMessages())
		return err
	}

	return g.signIn(ctx, "Account created successfully!", func(ctx context.Context) (*Grant, error) {
		return g.api.Signup(ctx, draft)
	})
}

// SocialLogin signs in through provider using a provider-derived identity.
func (g *Gate) SocialLogin(ctx context.Context, provider string) error {
	id, err := MockProviderIdentity(provider)
	if err != nil {
		return err
	}
	return g.SocialLoginWith(ctx, id)
}

// SocialLoginWith signs in with an explicit provider identity.
func (g *Gate) SocialLoginWith(ctx context.Context, id SocialIdentity) error {
	if strings.TrimSpace(id.Provider) == "" || strings.TrimSpace(id.Email) == "" {
		return errs.NewError(errs.ErrValidationFailed).WithFields(requiredFields(map[string]string{
			"provider": id.Provider, "email": id.Email,
		})...)
	}

	err := g.signIn(ctx, fmt.Sprintf("Welcome back via %s!", id.Provider), func(ctx context.Context) (*Grant, error) {
		return g.api.SocialLogin(ctx, id)
	})
	return err
}

// signIn runs one sign-in request. Failures leave state and store untouched.
func (g *Gate) signIn(ctx context.Context, welcome string, call func(ctx context.Context) (*Grant, error)) error {
	g.mu.Lock()
	epoch := g.epoch
	g.mu.Unlock()

	out := pipeline.Execute(ctx, g.pipe, pipeline.KindAuth, call)
	if !out.OK() {
		notify.Emit(g.sink, notify.LevelError, "auth", out.Err.Message)
		return out.Err
	}

	grant := out.Value
	if grant == nil || grant.Credential == "" || grant.Profile == nil {
		err := errs.NewError(errs.ErrUnknown)
		notify.Emit(g.sink, notify.LevelError, "auth", err.Message)
		return err
	}
	grant.Profile.Normalize()

	g.mu.Lock()
	if g.epoch != epoch {
		// A logout or another sign-in happened while this one was in flight.
		g.mu.Unlock()
		return errs.NewError(errs.ErrCanceled)
	}

	if err := g.store.Save(grant.Credential, grant.Profile); err != nil {
		g.mu.Unlock()
		g.logger.Error().Err(err).Msg("Failed to persist session")
		return errs.From(err)
	}

	g.cred = grant.Credential
	g.dirty = false
	g.pending = user.ProfilePatch{}
	g.openScope()
	g.apply(event{kind: evSignedIn, profile: grant.Profile})

	notify.Emit(g.sink, notify.LevelSuccess, "auth", welcome)
	return nil
}

// Logout clears the session unconditionally and cancels every authenticated-scope request.
func (g *Gate) Logout() {
	g.mu.Lock()
	g.logoutLocked()
	notify.Emit(g.sink, notify.LevelInfo, "auth", "Signed out.")
}

func (g *Gate) logoutLocked() {
	if err := g.store.Clear(); err != nil {
		g.logger.Error().Err(err).Msg("Failed to clear stored session")
	}
	g.cred = ""
	g.dirty = false
	g.pending = user.ProfilePatch{}
	g.closeScope()
	g.apply(event{kind: evSignedOut})
}

// Invalidate is the forced logout on an Unauthorized signal. It only applies when ctx was
// derived from the current authenticated scope.
func (g *Gate) Invalidate(ctx context.Context) {
	epoch, ok := epochOf(ctx)
	if !ok {
		return
	}

	g.mu.Lock()
	if epoch != g.epoch || g.state.Status != StatusAuthenticated {
		g.mu.Unlock()
		return
	}

	g.logger.Info().Uint64("epoch", epoch).Msg("Credential rejected by remote service, signing out")
	g.logoutLocked()
	notify.Emit(g.sink, notify.LevelWarn, "auth", "Your session has expired. Please sign in again.")
}

// UpdateProfile merges patch into the profile right away and persists it locally, then sends
// the accumulated local edits to the remote service.
//
// When the remote update fails the local edit is kept, the gate is marked dirty and a retryable
// error is returned; RetryProfileSync resends, RefreshProfile discards the local edits.
func (g *Gate) UpdateProfile(ctx context.Context, patch user.ProfilePatch) error {
	g.mu.Lock()
	if !g.state.Authenticated() {
		g.mu.Unlock()
		return errs.NewError(errs.ErrUnauthorized)
	}
	if patch.IsEmpty() {
		g.mu.Unlock()
		return nil
	}

	merged := patch.Apply(g.state.Profile)
	if err := g.store.Save(g.cred, merged); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to persist local profile edit")
	}
	g.dirty = true
	g.pending = g.pending.Merge(patch)
	g.pendingVersion++
	g.apply(event{kind: evProfileChanged, profile: merged})

	return g.syncProfile(ctx)
}

// RetryProfileSync resends local profile edits the remote service has not accepted yet.
func (g *Gate) RetryProfileSync(ctx context.Context) error {
	return g.syncProfile(ctx)
}

func (g *Gate) syncProfile(ctx context.Context) error {
	g.mu.Lock()
	if !g.state.Authenticated() {
		g.mu.Unlock()
		return errs.NewError(errs.ErrUnauthorized)
	}
	if !g.dirty {
		g.mu.Unlock()
		return nil
	}
	cred, epoch, scope := g.cred, g.epoch, g.scope
	patch, version := g.pending, g.pendingVersion
	g.mu.Unlock()

	callCtx, cancel := scoped(ctx, scope, epoch)
	defer cancel()

	out := pipeline.Execute(callCtx, g.pipe, pipeline.KindProfile, func(ctx context.Context) (*user.Profile, error) {
		return g.api.UpdateProfile(ctx, cred, patch)
	})

	g.mu.Lock()
	if g.epoch != epoch {
		g.mu.Unlock()
		return staleResult(out.Err)
	}

	if !out.OK() || out.Value == nil {
		g.mu.Unlock()
		err := out.Err
		if err == nil {
			err = errs.NewError(errs.ErrUnknown)
		}
		notify.Emit(g.sink, notify.LevelError, "profile", "Failed to update profile")
		if err.Code == errs.ErrUnauthorized {
			return err
		}
		return err.AsRetryable()
	}

	server := out.Value
	server.Normalize()
	if g.pendingVersion == version {
		g.dirty = false
		g.pending = user.ProfilePatch{}
	} else {
		// Edits made while this request was in flight stay local until the next sync.
		server = g.pending.Apply(server)
	}

	if err := g.store.Save(g.cred, server); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to persist synced profile")
	}
	g.apply(event{kind: evProfileChanged, profile: server})

	notify.Emit(g.sink, notify.LevelSuccess, "profile", "Profile updated successfully!")
	return nil
}

// RefreshProfile re-reads the profile from the remote service. The server copy wins over any
// unsynced local edits.
func (g *Gate) RefreshProfile(ctx context.Context) error {
	g.mu.Lock()
	if !g.state.Authenticated() {
		g.mu.Unlock()
		return errs.NewError(errs.ErrUnauthorized)
	}
	cred, epoch, scope := g.cred, g.epoch, g.scope
	g.mu.Unlock()

	callCtx, cancel := scoped(ctx, scope, epoch)
	defer cancel()

	out := pipeline.Execute(callCtx, g.pipe, pipeline.KindProfile, func(ctx context.Context) (*user.Profile, error) {
		return g.api.Me(ctx, cred)
	})

	g.mu.Lock()
	if g.epoch != epoch {
		g.mu.Unlock()
		return staleResult(out.Err)
	}
	if !out.OK() || out.Value == nil {
		g.mu.Unlock()
		if out.Err == nil {
			return errs.NewError(errs.ErrUnknown)
		}
		return out.Err
	}

	profile := out.Value
	profile.Normalize()
	if err := g.store.Save(g.cred, profile); err != nil {
		g.logger.Warn().Err(err).Msg("Failed to persist refreshed profile")
	}
	g.dirty = false
	g.pending = user.ProfilePatch{}
	g.apply(event{kind: evProfileChanged, profile: profile})
	return nil
}

// staleResult is the error for a response that arrived after its session ended. An
// Unauthorized response is reported as such since it is what ended the session.
func staleResult(err *errs.CustomError) error {
	if err != nil && err.Code == errs.ErrUnauthorized {
		return err
	}
	return errs.NewError(errs.ErrCanceled)
}

// ValidateDraft checks a signup draft before it is sent. The role is folded into the closed set.
func ValidateDraft(d *user.Draft) *errs.CustomError {
	d.Email = strings.TrimSpace(d.Email)
	d.Name = strings.TrimSpace(d.Name)

	var fields []errs.FieldError
	if d.Email == "" {
		fields = append(fields, errs.FieldError{Field: "email", Message: "Email is required"})
	} else if _, err := mail.ParseAddress(d.Email); err != nil {
		fields = append(fields, errs.FieldError{Field: "email", Message: "Email is invalid"})
	}
	if d.Name == "" {
		fields = append(fields, errs.FieldError{Field: "name", Message: "Name is required"})
	}
	if utf8.RuneCountInString(d.Password) < 6 {
		fields = append(fields, errs.FieldError{Field: "password", Message: "Password must be at least 6 characters"})
	}
	if d.Role == "" {
		d.Role = user.RoleCorpsMember
	}
	d.Role = user.ParseRole(string(d.Role))
	if d.Role == user.RoleCorpsMember && strings.TrimSpace(d.StateCode) == "" {
		fields = append(fields, errs.FieldError{Field: "state_code", Message: "Please provide State Code"})
	}

	if len(fields) > 0 {
		return errs.NewError(errs.ErrValidationFailed).WithFields(fields...)
	}
	return nil
}

func requiredFields(values map[string]string) []errs.FieldError {
	var out []errs.FieldError
	for _, name := range []string{"provider", "email", "password"} {
		v, ok := values[name]
		if ok && strings.TrimSpace(v) == "" {
			out = append(out, errs.FieldError{Field: name, Message: fmt.Sprintf("%s is required", name)})
		}
	}
	return out
}

// MockProviderIdentity derives a provider identity the way the web client simulates one:
// a random numbered address at the provider's domain.
func MockProviderIdentity(provider string) (SocialIdentity, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return SocialIdentity{}, errs.NewError(errs.ErrValidationFailed).WithFields(
			errs.FieldError{Field: "provider", Message: "provider is required"})
	}

	n, err := randx.Number(1000)
	if err != nil {
		return SocialIdentity{}, errs.Wrap(errs.ErrUnknown, err)
	}

	name := provider + " User"
	return SocialIdentity{
		Provider: provider,
		Email:    fmt.Sprintf("user_%d@%s.com", n, strings.ToLower(provider)),
		Name:     name,
		PhotoURL: "https://ui-avatars.com/api/?name=" + strings.ReplaceAll(name, " ", "+"),
	}, nil
}
