package handler_test

import (
	"context"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nyscmate/internal/app/db"
	"nyscmate/internal/app/portal"
	"nyscmate/internal/app/remote"
	"nyscmate/internal/app/session"
	"nyscmate/internal/app/storage"
	"nyscmate/internal/app/user"
	"nyscmate/internal/configs"
	"nyscmate/internal/handler"
	"nyscmate/internal/pkg/errs"
)

// TestClientAgainstServer runs the HTTP client against the development server, so the two sides
// of the wire contract cannot drift apart.
func TestClientAgainstServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(handler.Router(ctx, &handler.AppDeps{
		Config: &configs.ServerConfig{
			Environment:   "development",
			JWTSecret:     "contract-secret",
			TokenTTL:      time.Hour,
			AuthRateLimit: 1000,
			AuthRateBurst: 1000,
		},
		Store:   db.NewMemoryStore(),
		Storage: storage.MockStorage{},
	}))
	defer srv.Close()

	var cred atomic.Value
	cred.Store(session.Credential(""))
	client, err := remote.New(srv.URL, remote.WithCredentials(func() session.Credential {
		return cred.Load().(session.Credential)
	}))
	require.NoError(t, err)

	_, err = client.Signup(ctx, user.Draft{Email: "bad", Password: "1", Name: "X"})
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrValidationFailed))
	assert.Len(t, errs.From(err).Fields, 2)

	g, err := client.Signup(ctx, user.Draft{Email: "ada@nysc.ng", Password: "secret1", Name: "Ada", StateCode: "LA/26A/0001"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleCorpsMember, g.Profile.Role)

	_, err = client.Signup(ctx, user.Draft{Email: "ada@nysc.ng", Password: "secret1", Name: "Ada"})
	assert.True(t, errs.IsCode(err, errs.ErrAlreadyExists))

	_, err = client.Login(ctx, "ada@nysc.ng", "wrong-pass")
	assert.True(t, errs.IsCode(err, errs.ErrInvalidCredentials))

	g, err = client.Login(ctx, "ada@nysc.ng", "secret1")
	require.NoError(t, err)

	me, err := client.Me(ctx, g.Credential)
	require.NoError(t, err)
	assert.Equal(t, "ada@nysc.ng", me.Email)

	_, err = client.Timeline(ctx)
	assert.True(t, errs.IsCode(err, errs.ErrUnauthorized), "no credential yet")

	cred.Store(g.Credential)

	lga := "Ikeja"
	updated, err := client.UpdateProfile(ctx, g.Credential, user.ProfilePatch{LGA: &lga})
	require.NoError(t, err)
	assert.Equal(t, "Ikeja", updated.LGA)

	tl, err := client.Timeline(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Pending", tl.DeploymentState)

	news, err := client.News(ctx)
	require.NoError(t, err)
	assert.Len(t, news, 3)

	answer, err := client.Ask(ctx, "How do I get my clearance?")
	require.NoError(t, err)
	assert.Contains(t, answer, "clearance")

	letter := &portal.Attachment{Name: "letter.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")}
	id, err := client.RequestClearance(ctx, "March", letter)
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = client.RequestClearance(ctx, "March", nil)
	assert.True(t, errs.IsCode(err, errs.ErrValidationRejected))

	history, err := client.ClearanceHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, portal.StatusPending, history[0].Status)

	_, err = client.PendingClearances(ctx)
	assert.True(t, errs.IsCode(err, errs.ErrForbidden))

	og, err := client.Signup(ctx, user.Draft{Email: "off@nysc.ng", Password: "secret1", Name: "Off", Role: user.RoleOfficial})
	require.NoError(t, err)
	cred.Store(og.Credential)

	require.NoError(t, client.ActOnClearance(ctx, id, portal.ClearanceAction{Status: portal.StatusApproved}))
	err = client.ActOnClearance(ctx, 999, portal.ClearanceAction{Status: portal.StatusRejected})
	assert.True(t, errs.IsCode(err, errs.ErrNotFound))

	require.NoError(t, client.AddResource(ctx, portal.ResourceDraft{Title: "Dress Code", Category: "Bye-Laws", URL: "/static/dress.pdf"}))
	res, err := client.Resources(ctx)
	require.NoError(t, err)
	assert.Len(t, res, 4)

	stats, err := client.AdminStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalUsers)

	users, err := client.AdminUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	require.NoError(t, client.PostNews(ctx, portal.NewsPost{Title: "Camp opens", Content: "Report by 8am"}))
	news, err = client.News(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Camp opens", news[0].Title)

	cred.Store(session.Credential("expired"))
	_, err = client.Timeline(ctx)
	assert.True(t, errs.IsCode(err, errs.ErrUnauthorized))
}
