package desk

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"nyscmate/internal/app/chat"
	"nyscmate/internal/app/feed"
	"nyscmate/internal/app/notify"
	"nyscmate/internal/app/pipeline"
	"nyscmate/internal/app/portal"
	"nyscmate/internal/app/router"
	"nyscmate/internal/app/session"
	"nyscmate/internal/app/user"
	"nyscmate/internal/pkg/errs"
)

const sentinel = "admin@nysc.gov.ng"

// fakeRemote knows two accounts and answers the feeds; ask and the feeds can be overridden.
type fakeRemote struct {
	ask      func(ctx context.Context, q string) (string, error)
	feedErr  atomic.Pointer[error]
	newsHits atomic.Int32
}

var accounts = map[string]*user.Profile{
	"cm@nysc.ng":  {ID: 1, Email: "cm@nysc.ng", Name: "Chidi", Role: user.RoleCorpsMember, State: "Lagos"},
	sentinel:      {ID: 2, Email: sentinel, Name: "Desk Officer", Role: user.RoleOfficial},
	"off@nysc.ng": {ID: 3, Email: "off@nysc.ng", Name: "Officer", Role: user.RoleOfficial},
}

func (f *fakeRemote) Login(_ context.Context, email, password string) (*session.Grant, error) {
	p, ok := accounts[email]
	if !ok || password != "secret1" {
		return nil, errs.NewError(errs.ErrInvalidCredentials)
	}
	return &session.Grant{Credential: session.Credential("tok-" + email), Profile: p.Clone()}, nil
}

func (f *fakeRemote) Signup(context.Context, user.Draft) (*session.Grant, error) {
	return nil, errs.NewError(errs.ErrAlreadyExists)
}

func (f *fakeRemote) SocialLogin(context.Context, session.SocialIdentity) (*session.Grant, error) {
	return nil, errs.NewError(errs.ErrServiceUnavailable)
}

func (f *fakeRemote) Me(_ context.Context, cred session.Credential) (*user.Profile, error) {
	p, ok := accounts[strings.TrimPrefix(cred.Token(), "tok-")]
	if !ok {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}
	return p.Clone(), nil
}

func (f *fakeRemote) UpdateProfile(_ context.Context, _ session.Credential, p user.ProfilePatch) (*user.Profile, error) {
	return p.Apply(accounts["cm@nysc.ng"].Clone()), nil
}

func (f *fakeRemote) Ask(ctx context.Context, q string) (string, error) {
	if f.ask != nil {
		return f.ask(ctx, q)
	}
	return "Camp opens next month.", nil
}

func (f *fakeRemote) failFeeds(err error) { f.feedErr.Store(&err) }

func (f *fakeRemote) feedFailure() error {
	if p := f.feedErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (f *fakeRemote) News(context.Context) ([]feed.NewsItem, error) {
	f.newsHits.Add(1)
	if err := f.feedFailure(); err != nil {
		return nil, err
	}
	return []feed.NewsItem{{ID: 1, Title: "Batch A orientation", Type: "Camp"}}, nil
}

func (f *fakeRemote) Timeline(context.Context) (*feed.Timeline, error) {
	if err := f.feedFailure(); err != nil {
		return nil, err
	}
	return &feed.Timeline{DaysToCamp: 12, RegistrationStatus: "Open", DeploymentState: "Pending"}, nil
}

func (f *fakeRemote) Resources(context.Context) ([]portal.Resource, error) { return nil, nil }
func (f *fakeRemote) AddResource(context.Context, portal.ResourceDraft) error {
	return nil
}
func (f *fakeRemote) RequestClearance(context.Context, string, *portal.Attachment) (int64, error) {
	return 1, nil
}
func (f *fakeRemote) ClearanceHistory(context.Context) ([]portal.Clearance, error) { return nil, nil }
func (f *fakeRemote) PendingClearances(context.Context) ([]portal.Clearance, error) {
	return nil, nil
}
func (f *fakeRemote) ActOnClearance(context.Context, int64, portal.ClearanceAction) error {
	return nil
}
func (f *fakeRemote) AdminStats(context.Context) (*portal.AdminStats, error) {
	return &portal.AdminStats{TotalUsers: 3}, nil
}
func (f *fakeRemote) AdminUsers(context.Context) ([]user.Profile, error) { return nil, nil }
func (f *fakeRemote) PostNews(context.Context, portal.NewsPost) error { return nil }

func newApp(t *testing.T, api *fakeRemote) (*App, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	a, err := New(Deps{
		Store:        session.NewMemoryStore(),
		Remote:       api,
		Sink:         rec,
		Policy:       user.AdminPolicy{SentinelEmail: sentinel},
		Timeouts:     pipeline.Timeouts{pipeline.KindAsk: 500 * time.Millisecond, pipeline.KindFeed: 200 * time.Millisecond},
		PollInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Close() })
	return a, rec
}

func TestStartWithoutSessionLandsOnAuth(t *testing.T) {
	a, _ := newApp(t, &fakeRemote{})

	assert.Equal(t, session.StatusUnauthenticated, a.Gate.State().Status)
	assert.Equal(t, router.ViewAuth, a.View().View)

	d := a.Navigate(router.ViewChat)
	assert.Equal(t, router.ViewAuth, d.View)
	assert.NotNil(t, d.Denied)
}

func TestCorpsMemberCannotReachAdmin(t *testing.T) {
	a, _ := newApp(t, &fakeRemote{})

	require.NoError(t, a.Gate.Login(context.Background(), "cm@nysc.ng", "secret1"))
	assert.Equal(t, session.StatusAuthenticated, a.Gate.State().Status)
	assert.Equal(t, router.ViewDashboard, a.View().View)

	d := a.Navigate(router.ViewAdmin)
	assert.Equal(t, router.ViewDashboard, d.View)
	assert.True(t, d.Redirected())
	require.NotNil(t, d.Denied)
	assert.Equal(t, errs.ErrRouterDenied, d.Denied.Code)
	assert.True(t, a.Dashboard.Mounted())
}

func TestSentinelOfficialIsSentToAdminOnce(t *testing.T) {
	a, _ := newApp(t, &fakeRemote{})

	require.NoError(t, a.Gate.Login(context.Background(), sentinel, "secret1"))
	assert.Equal(t, router.ViewAdmin, a.View().View)

	a.Navigate(router.ViewChat)
	require.NoError(t, a.Gate.RefreshProfile(context.Background()))
	assert.Equal(t, router.ViewChat, a.View().View, "the admin redirect fires once per session")

	stats, err := a.Portal.AdminStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalUsers)
}

func TestOfflineAskLeavesSessionAlone(t *testing.T) {
	api := &fakeRemote{ask: func(context.Context, string) (string, error) {
		return "", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	}}
	a, _ := newApp(t, api)
	require.NoError(t, a.Gate.Login(context.Background(), "cm@nysc.ng", "secret1"))

	turn, err := a.Ask(context.Background(), "When is the next camp date?")
	require.NoError(t, err)
	reply, err := turn.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, reply.Fallback)
	assert.Equal(t, chat.FallbackUnreachable, reply.Text)

	assert.Equal(t, session.StatusAuthenticated, a.Gate.State().Status)
	assert.Len(t, a.Chat.Messages(), 2)
}

func TestSigningInAsAnotherUserStartsAFreshChat(t *testing.T) {
	a, _ := newApp(t, &fakeRemote{})
	ctx := context.Background()
	require.NoError(t, a.Gate.Login(ctx, "cm@nysc.ng", "secret1"))

	turn, err := a.Ask(ctx, "private question from Chidi")
	require.NoError(t, err)
	_, err = turn.Wait(ctx)
	require.NoError(t, err)
	require.Len(t, a.Chat.Messages(), 2)

	// Profile refreshes keep the session, and with it the transcript.
	require.NoError(t, a.Gate.RefreshProfile(ctx))
	assert.Len(t, a.Chat.Messages(), 2)

	require.NoError(t, a.Gate.Login(ctx, "off@nysc.ng", "secret1"))
	assert.Equal(t, "off@nysc.ng", a.Gate.Profile().Email)
	assert.Empty(t, a.Chat.Messages())

	turn, err = a.Ask(ctx, "hello")
	require.NoError(t, err)
	_, err = turn.Wait(ctx)
	require.NoError(t, err)
	msgs := a.Chat.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Text)
}

func TestAskRequiresSession(t *testing.T) {
	a, _ := newApp(t, &fakeRemote{})

	_, err := a.Ask(context.Background(), "hello")
	assert.True(t, errs.IsCode(err, errs.ErrUnauthorized))
	assert.Empty(t, a.Chat.Messages())
}

func TestRejectedCredentialEndsSession(t *testing.T) {
	api := &fakeRemote{}
	a, rec := newApp(t, api)
	require.NoError(t, a.Gate.Login(context.Background(), "cm@nysc.ng", "secret1"))

	turn, err := a.Ask(context.Background(), "hi")
	require.NoError(t, err)
	_, err = turn.Wait(context.Background())
	require.NoError(t, err)
	require.Len(t, a.Chat.Messages(), 2)

	api.failFeeds(errs.NewError(errs.ErrUnauthorized))

	require.Eventually(t, func() bool {
		return a.Gate.State().Status == session.StatusUnauthenticated
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, router.ViewAuth, a.View().View)
	assert.Empty(t, a.Chat.Messages())
	assert.Empty(t, a.Gate.CurrentCredential())
	assert.Contains(t, rec.Messages("auth"), "Your session has expired. Please sign in again.")
	require.Eventually(t, func() bool { return !a.Dashboard.Mounted() }, time.Second, 10*time.Millisecond)

	hits := api.newsHits.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, hits, api.newsHits.Load(), "no polling after sign-out")
}

func TestReloginRestartsDashboard(t *testing.T) {
	a, _ := newApp(t, &fakeRemote{})
	ctx := context.Background()

	require.NoError(t, a.Gate.Login(ctx, "cm@nysc.ng", "secret1"))
	require.True(t, a.Dashboard.Mounted())

	a.Gate.Logout()
	assert.False(t, a.Dashboard.Mounted())

	require.NoError(t, a.Gate.Login(ctx, "cm@nysc.ng", "secret1"))
	assert.True(t, a.Dashboard.Mounted())
}

func TestLeavingDashboardStopsPolling(t *testing.T) {
	api := &fakeRemote{}
	a, _ := newApp(t, api)
	require.NoError(t, a.Gate.Login(context.Background(), "cm@nysc.ng", "secret1"))
	require.True(t, a.Dashboard.Mounted())

	a.Navigate(router.ViewChecklist)
	assert.False(t, a.Dashboard.Mounted())

	hits := api.newsHits.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, hits, api.newsHits.Load())
}

func TestCloseLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	rec := &notify.Recorder{}
	a, err := New(Deps{
		Store:        session.NewMemoryStore(),
		Remote:       &fakeRemote{},
		Sink:         rec,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Gate.Login(context.Background(), "cm@nysc.ng", "secret1"))
	_, err = a.Ask(context.Background(), "hi")
	require.NoError(t, err)

	require.NoError(t, a.Close())
}
