package portal

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"nyscmate/internal/app/notify"
	"nyscmate/internal/app/pipeline"
	"nyscmate/internal/app/user"
	"nyscmate/internal/pkg/errs"
)

type fakeAPI struct {
	mu        sync.Mutex
	calls     []string
	clearance []Clearance
	actions   map[int64]ClearanceAction
	letters   []*Attachment
	err       error
}

func (f *fakeAPI) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) Resources(ctx context.Context) ([]Resource, error) {
	if err := f.record("resources"); err != nil {
		return nil, err
	}
	return []Resource{{ID: 1, Title: "NYSC Bye-Laws (Revised 2011)", Category: "Bye-Laws"}}, nil
}

func (f *fakeAPI) AddResource(ctx context.Context, d ResourceDraft) error {
	return f.record("add-resource")
}

func (f *fakeAPI) RequestClearance(ctx context.Context, month string, letter *Attachment) (int64, error) {
	if err := f.record("request-clearance"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.letters = append(f.letters, letter)
	f.clearance = append(f.clearance, Clearance{ID: int64(len(f.clearance) + 1), Month: month, Status: StatusPending})
	return int64(len(f.clearance)), nil
}

func (f *fakeAPI) ClearanceHistory(ctx context.Context) ([]Clearance, error) {
	if err := f.record("history"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Clearance(nil), f.clearance...), nil
}

func (f *fakeAPI) PendingClearances(ctx context.Context) ([]Clearance, error) {
	return f.ClearanceHistory(ctx)
}

func (f *fakeAPI) ActOnClearance(ctx context.Context, id int64, action ClearanceAction) error {
	if err := f.record("action"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actions == nil {
		f.actions = make(map[int64]ClearanceAction)
	}
	f.actions[id] = action
	return nil
}

func (f *fakeAPI) AdminStats(ctx context.Context) (*AdminStats, error) {
	if err := f.record("stats"); err != nil {
		return nil, err
	}
	return &AdminStats{TotalUsers: 3, CorpsMembers: 2, PCMs: 1, ActiveToday: 12}, nil
}

func (f *fakeAPI) AdminUsers(ctx context.Context) ([]user.Profile, error) {
	if err := f.record("users"); err != nil {
		return nil, err
	}
	return []user.Profile{{ID: 1, Email: "a@x.ng", Role: "official"}, {ID: 2, Email: "b@x.ng", Role: "wizard"}}, nil
}

func (f *fakeAPI) PostNews(ctx context.Context, post NewsPost) error {
	return f.record("news")
}

var policy = user.AdminPolicy{SentinelEmail: "admin@nysc.gov.ng"}

func newService(p *user.Profile) (*Service, *fakeAPI, *notify.Recorder) {
	api := &fakeAPI{}
	rec := &notify.Recorder{}
	return NewService(api, pipeline.New(nil), policy, func() *user.Profile { return p.Clone() }, rec), api, rec
}

func TestSignedOutCallsNothing(t *testing.T) {
	s, api, _ := newService(nil)

	_, err := s.Resources(context.Background())
	assert.True(t, errs.IsCode(err, errs.ErrUnauthorized))
	assert.Empty(t, api.Calls())
}

func TestRoleChecksRunBeforeTheRequest(t *testing.T) {
	cm := &user.Profile{ID: 1, Email: "cm@x.ng", Role: user.RoleCorpsMember}
	s, api, _ := newService(cm)
	ctx := context.Background()

	assert.True(t, errs.IsCode(s.AddResource(ctx, ResourceDraft{Title: "t", Category: "c", URL: "u"}), errs.ErrForbidden))
	_, err := s.PendingClearances(ctx)
	assert.True(t, errs.IsCode(err, errs.ErrForbidden))
	assert.True(t, errs.IsCode(s.ActOnClearance(ctx, 1, ClearanceAction{Status: "Approved"}), errs.ErrForbidden))
	_, err = s.AdminStats(ctx)
	assert.True(t, errs.IsCode(err, errs.ErrForbidden))
	assert.True(t, errs.IsCode(s.PostNews(ctx, NewsPost{Title: "t", Content: "c"}), errs.ErrForbidden))

	assert.Empty(t, api.Calls())

	official := &user.Profile{ID: 2, Email: "o@x.ng", Role: user.RoleOfficial}
	s, api, _ = newService(official)
	_, err = s.RequestClearance(ctx, "March", nil)
	assert.True(t, errs.IsCode(err, errs.ErrForbidden))
	_, err = s.AdminStats(ctx)
	assert.True(t, errs.IsCode(err, errs.ErrForbidden), "a plain official is not an admin")
	assert.Empty(t, api.Calls())
}

func TestClearanceFlow(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()

	cm := &user.Profile{ID: 1, Email: "cm@x.ng", Role: user.RoleCorpsMember}
	s, api, rec := newService(cm)

	letter := &Attachment{Name: "letter.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")}
	id, err := s.RequestClearance(ctx, " March ", letter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, []string{"Clearance submitted successfully"}, rec.Messages("clearance"))

	history, err := s.ClearanceHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "March", history[0].Month)

	official := &user.Profile{ID: 2, Email: "o@x.ng", Role: user.RoleOfficial}
	reviewer := NewService(api, pipeline.New(nil), policy, func() *user.Profile { return official }, rec)

	pending, err := reviewer.PendingClearances(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, reviewer.ActOnClearance(ctx, 1, ClearanceAction{Status: "approve", Comment: " ok "}))
	assert.Equal(t, ClearanceAction{Status: StatusApproved, Comment: "ok"}, api.actions[1])
	assert.Contains(t, rec.Messages("clearance"), "Clearance Approved")

	err = reviewer.ActOnClearance(ctx, 1, ClearanceAction{Status: "maybe"})
	assert.True(t, errs.IsCode(err, errs.ErrInvalidParams))
}

func TestRequestClearanceValidatesInput(t *testing.T) {
	cm := &user.Profile{ID: 1, Email: "cm@x.ng", Role: user.RoleCorpsMember}
	s, api, _ := newService(cm)
	ctx := context.Background()

	_, err := s.RequestClearance(ctx, " ", nil)
	require.Error(t, err)
	ce := errs.From(err)
	assert.Equal(t, errs.ErrInvalidParams, ce.Code)
	assert.Equal(t, "month", ce.Fields[0].Field)

	_, err = s.RequestClearance(ctx, "March", &Attachment{Name: "letter.exe", MimeType: "application/pdf", Data: []byte("x")})
	assert.True(t, errs.IsCode(err, errs.ErrUnsupportedMediaType))
	assert.Empty(t, api.Calls())
}

func TestRemoteRejectionIsReturnedVerbatim(t *testing.T) {
	cm := &user.Profile{ID: 1, Email: "cm@x.ng", Role: user.RoleCorpsMember}
	s, api, rec := newService(cm)
	api.err = errs.NewError(errs.ErrValidationRejected).WithMessage("Clearance request already submitted for this month")

	_, err := s.RequestClearance(context.Background(), "March", nil)
	require.Error(t, err)
	assert.Equal(t, "Clearance request already submitted for this month", errs.From(err).Message)
	assert.Empty(t, rec.Messages("clearance"))
}

func TestAdminConsole(t *testing.T) {
	ctx := context.Background()
	sentinel := &user.Profile{ID: 9, Email: "Admin@NYSC.gov.ng", Role: user.RoleOfficial}
	s, api, rec := newService(sentinel)

	stats, err := s.AdminStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalUsers)

	users, err := s.AdminUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.RoleOfficial, users[0].Role)
	assert.Equal(t, user.RoleGeneralUser, users[1].Role)

	err = s.PostNews(ctx, NewsPost{Title: " "})
	ce := errs.From(err)
	require.NotNil(t, ce)
	assert.Len(t, ce.Fields, 2)

	require.NoError(t, s.PostNews(ctx, NewsPost{Title: "Camp opens", Content: "Batch B camp opens Monday."}))
	assert.Equal(t, []string{"Update pushed successfully!"}, rec.Messages("admin"))
	assert.Equal(t, []string{"stats", "users", "news"}, api.Calls())
}

func TestResourcesForAnySignedInUser(t *testing.T) {
	s, _, rec := newService(&user.Profile{ID: 3, Email: "g@x.ng", Role: user.RoleGeneralUser})
	res, err := s.Resources(context.Background())
	require.NoError(t, err)
	assert.Len(t, res, 1)

	admin, _, _ := newService(&user.Profile{ID: 4, Email: "a@x.ng", Role: user.RoleAdmin})
	require.NoError(t, admin.AddResource(context.Background(), ResourceDraft{Title: "SAED Handbook", Category: "Orientation", URL: "https://x/saed.pdf"}))
	assert.Empty(t, rec.Messages("resources"))
}

func TestLoadAttachment(t *testing.T) {
	dir := t.TempDir()

	pdf := filepath.Join(dir, "letter.PDF")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4"), 0o600))
	a, err := LoadAttachment(pdf)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", a.MimeType)
	assert.Equal(t, int64(8), a.Size())

	txt := filepath.Join(dir, "letter.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hi"), 0o600))
	_, err = LoadAttachment(txt)
	assert.True(t, errs.IsCode(err, errs.ErrUnsupportedMediaType))

	empty := filepath.Join(dir, "empty.png")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = LoadAttachment(empty)
	assert.True(t, errs.IsCode(err, errs.ErrInvalidParams))

	_, err = LoadAttachment(filepath.Join(dir, "missing.jpg"))
	assert.True(t, errs.IsCode(err, errs.ErrInvalidParams))
}

func TestValidateFileType(t *testing.T) {
	assert.Nil(t, ValidateFileType("photo.JPEG", "image/jpeg"))
	assert.NotNil(t, ValidateFileType("photo.png", "image/jpeg"))
	assert.NotNil(t, ValidateFileType("noext", "image/png"))
	assert.NotNil(t, ValidateFileType("anim.gif", "image/gif"))
	assert.NotNil(t, ValidateFileSize(MaxAttachmentSize+1))
}
