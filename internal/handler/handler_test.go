package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nyscmate/internal/app/db"
	"nyscmate/internal/app/storage"
	"nyscmate/internal/configs"
	"nyscmate/internal/pkg/errs"
)

var testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	handler http.Handler
	cfg     *configs.ServerConfig
	store   *db.MemoryStore
}

func newTestServer(t *testing.T, tweak ...func(*configs.ServerConfig)) *testServer {
	t.Helper()
	cfg := &configs.ServerConfig{
		Environment:   "development",
		JWTSecret:     "test-secret",
		TokenTTL:      time.Hour,
		AuthRateLimit: 1000,
		AuthRateBurst: 1000,
	}
	for _, fn := range tweak {
		fn(cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := db.NewMemoryStore()
	deps := &AppDeps{
		Config:  cfg,
		Store:   store,
		Storage: storage.MockStorage{},
		Now:     func() time.Time { return testNow },
	}
	return &testServer{t: t, handler: Router(ctx, deps), cfg: cfg, store: store}
}

type result struct {
	code int
	body []byte
}

func (r result) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, v), string(r.body))
}

// detail returns the error body's detail when it is a plain message.
func (r result) detail(t *testing.T) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	r.decode(t, &body)
	return body.Detail
}

func (s *testServer) do(method, path, token string, body any) result {
	s.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}

	r := httptest.NewRequest(method, path, rd)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return s.serve(r)
}

func (s *testServer) serve(r *http.Request) result {
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return result{code: w.Code, body: w.Body.Bytes()}
}

// signup registers an account and returns its token.
func (s *testServer) signup(email, role string, extra map[string]string) string {
	s.t.Helper()
	body := map[string]string{"email": email, "password": "secret1", "name": "Test User", "role": role}
	for k, v := range extra {
		body[k] = v
	}
	res := s.do(http.MethodPost, "/auth/signup", "", body)
	require.Equal(s.t, http.StatusOK, res.code, string(res.body))

	var g struct {
		Token string `json:"token"`
	}
	res.decode(s.t, &g)
	require.NotEmpty(s.t, g.Token)
	return g.Token
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	res := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, string(res.body), `"status":"ok"`)
}

func TestSignup(t *testing.T) {
	s := newTestServer(t)

	t.Run("defaults to corps member", func(t *testing.T) {
		res := s.do(http.MethodPost, "/auth/signup", "", map[string]string{
			"email": " Ada@NYSC.ng ", "password": "secret1", "name": "Ada",
		})
		require.Equal(t, http.StatusOK, res.code, string(res.body))

		var g grant
		res.decode(t, &g)
		assert.Equal(t, "ada@nysc.ng", g.Email)
		assert.Equal(t, "Corps Member", string(g.Role))
		assert.Positive(t, g.ID)
		assert.NotEmpty(t, g.Token)
	})

	t.Run("duplicate email", func(t *testing.T) {
		res := s.do(http.MethodPost, "/auth/signup", "", map[string]string{
			"email": "ada@nysc.ng", "password": "secret1", "name": "Ada",
		})
		assert.Equal(t, http.StatusConflict, res.code)
		assert.Equal(t, "Email already registered", res.detail(t))
	})

	t.Run("field errors", func(t *testing.T) {
		res := s.do(http.MethodPost, "/auth/signup", "", map[string]string{
			"email": "nope", "password": "123", "name": "", "role": "Overlord",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, res.code)

		var body struct {
			Detail []struct {
				Loc []string `json:"loc"`
				Msg string   `json:"msg"`
			} `json:"detail"`
			Code int `json:"code"`
		}
		res.decode(t, &body)
		assert.Equal(t, errs.ErrValidationFailed, body.Code)
		require.Len(t, body.Detail, 4)
		assert.Equal(t, []string{"body", "email"}, body.Detail[0].Loc)
		assert.Equal(t, []string{"body", "role"}, body.Detail[3].Loc)
	})

	t.Run("unknown json field", func(t *testing.T) {
		res := s.do(http.MethodPost, "/auth/signup", "", map[string]string{"email": "x@y.ng", "admin": "true"})
		assert.Equal(t, http.StatusBadRequest, res.code)
	})
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	s.signup("ada@nysc.ng", "PCM", nil)

	res := s.do(http.MethodPost, "/auth/login", "", LoginInput{Email: "ADA@nysc.ng", Password: "secret1"})
	require.Equal(t, http.StatusOK, res.code)
	var g grant
	res.decode(t, &g)
	assert.Equal(t, "PCM", string(g.Role))
	assert.NotEmpty(t, g.Token)

	for _, in := range []LoginInput{
		{Email: "ada@nysc.ng", Password: "wrong-password"},
		{Email: "ghost@nysc.ng", Password: "secret1"},
	} {
		res := s.do(http.MethodPost, "/auth/login", "", in)
		assert.Equal(t, http.StatusUnauthorized, res.code)
		assert.Equal(t, "Invalid credentials", res.detail(t))
	}
}

func TestSocialLoginCreatesOnce(t *testing.T) {
	s := newTestServer(t)

	in := SocialLoginInput{Provider: "google", Email: "kemi@gmail.com"}
	first := s.do(http.MethodPost, "/auth/social-login", "", in)
	require.Equal(t, http.StatusOK, first.code, string(first.body))

	var a grant
	first.decode(t, &a)
	assert.Equal(t, "Social User", a.Name)
	assert.Equal(t, "Pending", a.State)
	assert.Equal(t, "Corps Member", string(a.Role))

	in.Name = "Kemi"
	second := s.do(http.MethodPost, "/auth/social-login", "", in)
	require.Equal(t, http.StatusOK, second.code)
	var b grant
	second.decode(t, &b)
	assert.Equal(t, a.ID, b.ID)

	res := s.do(http.MethodPost, "/auth/social-login", "", SocialLoginInput{Email: "kemi@gmail.com"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.code)
}

func TestMeAndProfile(t *testing.T) {
	s := newTestServer(t)

	res := s.do(http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.code)
	assert.Equal(t, "Could not validate credentials", res.detail(t))

	res = s.do(http.MethodGet, "/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, res.code)

	token := s.signup("ada@nysc.ng", "Corps Member", map[string]string{"state": "Lagos"})

	res = s.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, res.code)
	var me map[string]any
	res.decode(t, &me)
	assert.Equal(t, "Lagos", me["state"])
	assert.NotContains(t, me, "token")
	assert.NotContains(t, me, "PasswordHash")

	res = s.do(http.MethodPut, "/auth/profile", token, map[string]string{"lga": "Ikeja", "cds_group": "ICT"})
	require.Equal(t, http.StatusOK, res.code, string(res.body))
	res.decode(t, &me)
	assert.Equal(t, "Ikeja", me["lga"])
	assert.Equal(t, "ICT", me["cds_group"])
	assert.Equal(t, "ada@nysc.ng", me["email"])

	res = s.do(http.MethodPut, "/auth/profile", token, map[string]string{"name": "  "})
	assert.Equal(t, http.StatusUnprocessableEntity, res.code)

	res = s.do(http.MethodPut, "/auth/profile", token, map[string]string{"email": "evil@x.ng"})
	assert.Equal(t, http.StatusBadRequest, res.code)
}

func TestTimeline(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/timeline", "", nil).code)

	token := s.signup("ada@nysc.ng", "PCM", nil)
	res := s.do(http.MethodGet, "/api/timeline", token, nil)
	require.Equal(t, http.StatusOK, res.code)
	assert.JSONEq(t, `{"days_to_camp":5,"registration_status":"Open","deployment_state":"Pending"}`, string(res.body))

	token = s.signup("bola@nysc.ng", "PCM", map[string]string{"state": "Kano", "mobilization_date": "2026-03-24"})
	res = s.do(http.MethodGet, "/api/timeline", token, nil)
	assert.JSONEq(t, `{"days_to_camp":14,"registration_status":"Open","deployment_state":"Kano"}`, string(res.body))
}

func TestDaysToCamp(t *testing.T) {
	cases := map[string]int{
		"":           defaultDaysToCamp,
		"soon":       defaultDaysToCamp,
		"2026-03-10": 0,
		"2026-03-11": 1,
		"2026-01-01": 0,
		"2026-04-10": 31,
	}
	for in, want := range cases {
		assert.Equal(t, want, daysToCamp(in, testNow), "input %q", in)
	}
}

func TestNewsIsOpenAndNewestFirst(t *testing.T) {
	s := newTestServer(t)

	res := s.do(http.MethodGet, "/api/news", "", nil)
	require.Equal(t, http.StatusOK, res.code)
	var items []map[string]any
	res.decode(t, &items)
	assert.Len(t, items, 3)
}

func TestResources(t *testing.T) {
	s := newTestServer(t)
	cm := s.signup("cm@nysc.ng", "Corps Member", nil)
	off := s.signup("off@nysc.ng", "Official", nil)

	draft := map[string]string{"title": "Dress Code", "category": "Bye-Laws", "url": "/static/dress.pdf"}

	res := s.do(http.MethodPost, "/resources/", cm, draft)
	assert.Equal(t, http.StatusForbidden, res.code)
	assert.Equal(t, "Not authorized", res.detail(t))

	res = s.do(http.MethodPost, "/resources/", off, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, res.code)

	res = s.do(http.MethodPost, "/resources/", off, draft)
	require.Equal(t, http.StatusOK, res.code, string(res.body))
	assert.Contains(t, string(res.body), "Resource added successfully")

	res = s.do(http.MethodGet, "/resources/", "", nil)
	require.Equal(t, http.StatusOK, res.code)
	var list []map[string]any
	res.decode(t, &list)
	require.Len(t, list, 4)
	assert.Equal(t, "Dress Code", list[3]["title"])
	assert.Equal(t, "2026-03-10", list[3]["date_added"])
}

// clearanceRequest builds a multipart clearance submission.
func clearanceRequest(t *testing.T, token, month, fileName, mimeType string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("month", month))
	if fileName != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
		h.Set("Content-Type", mimeType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 letter"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPost, "/clearance/request", &buf)
	r.Header.Set("Content-Type", w.FormDataContentType())
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func TestClearanceLifecycle(t *testing.T) {
	s := newTestServer(t)
	cm := s.signup("cm@nysc.ng", "Corps Member", map[string]string{"state_code": "LA/26A/0001"})
	off := s.signup("off@nysc.ng", "Official", nil)

	res := s.serve(clearanceRequest(t, off, "March", "", ""))
	assert.Equal(t, http.StatusForbidden, res.code)
	assert.Equal(t, "Only Corps Members can request clearance", res.detail(t))

	res = s.serve(clearanceRequest(t, cm, "March", "letter.exe", "application/octet-stream"))
	assert.Equal(t, http.StatusUnsupportedMediaType, res.code)

	res = s.serve(clearanceRequest(t, cm, "", "", ""))
	assert.Equal(t, http.StatusBadRequest, res.code)

	res = s.serve(clearanceRequest(t, cm, "March", "letter.pdf", "application/pdf"))
	require.Equal(t, http.StatusOK, res.code, string(res.body))
	var created struct {
		Message string `json:"message"`
		ID      int64  `json:"id"`
	}
	res.decode(t, &created)
	assert.Equal(t, "Clearance submitted successfully", created.Message)
	assert.Positive(t, created.ID)

	res = s.serve(clearanceRequest(t, cm, "March", "", ""))
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Equal(t, "Clearance request already submitted for this month", res.detail(t))

	res = s.do(http.MethodGet, "/clearance/my-history", cm, nil)
	require.Equal(t, http.StatusOK, res.code)
	var history []map[string]any
	res.decode(t, &history)
	require.Len(t, history, 1)
	assert.Equal(t, "https://mock-storage.com/letter.pdf", history[0]["file_url"])
	assert.Equal(t, "LA/26A/0001", history[0]["state_code"])
	assert.Equal(t, "2026-03-10 09:30", history[0]["date_submitted"])
	assert.Equal(t, "Pending", history[0]["status"])

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/clearance/pending", cm, nil).code)

	res = s.do(http.MethodGet, "/clearance/pending", off, nil)
	require.Equal(t, http.StatusOK, res.code)
	var pending []map[string]any
	res.decode(t, &pending)
	assert.Len(t, pending, 1)

	path := fmt.Sprintf("/clearance/%d/action", created.ID)
	res = s.do(http.MethodPut, path, off, map[string]string{"status": "Maybe"})
	assert.Equal(t, http.StatusBadRequest, res.code)

	res = s.do(http.MethodPut, path, off, map[string]string{"status": "approved", "comment": "ok"})
	require.Equal(t, http.StatusOK, res.code)
	assert.JSONEq(t, `{"message":"Clearance Approved"}`, string(res.body))

	res = s.do(http.MethodPut, "/clearance/999/action", off, map[string]string{"status": "Rejected"})
	assert.Equal(t, http.StatusNotFound, res.code)
	assert.Equal(t, "Clearance request not found", res.detail(t))

	res = s.do(http.MethodPut, "/clearance/abc/action", off, map[string]string{"status": "Rejected"})
	assert.Equal(t, http.StatusBadRequest, res.code)

	res = s.do(http.MethodGet, "/clearance/pending", off, nil)
	res.decode(t, &pending)
	assert.Empty(t, pending)
}

func TestAdmin(t *testing.T) {
	s := newTestServer(t)
	cm := s.signup("cm@nysc.ng", "Corps Member", nil)
	off := s.signup("off@nysc.ng", "Official", nil)
	s.signup("pcm@nysc.ng", "PCM", nil)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/admin/stats", cm, nil).code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/admin/stats", "", nil).code)

	res := s.do(http.MethodGet, "/admin/stats", off, nil)
	require.Equal(t, http.StatusOK, res.code)
	assert.JSONEq(t, `{"total_users":3,"corps_members":1,"pcms":1,"active_today":3}`, string(res.body))

	res = s.do(http.MethodGet, "/admin/users", off, nil)
	require.Equal(t, http.StatusOK, res.code)
	var users []map[string]any
	res.decode(t, &users)
	assert.Len(t, users, 3)

	res = s.do(http.MethodPost, "/admin/news", off, map[string]string{"title": "Camp opens", "content": "Report by 8am"})
	require.Equal(t, http.StatusOK, res.code, string(res.body))

	res = s.do(http.MethodGet, "/api/news", "", nil)
	var news []map[string]any
	res.decode(t, &news)
	require.Len(t, news, 4)
	assert.Equal(t, "Camp opens", news[0]["title"])
	assert.Equal(t, "General", news[0]["type"])

	res = s.do(http.MethodPost, "/admin/news", off, map[string]string{"title": "No body"})
	assert.Equal(t, http.StatusBadRequest, res.code)
}

func TestAsk(t *testing.T) {
	s := newTestServer(t)

	res := s.do(http.MethodPost, "/ask", "", AskInput{Question: "When is the next camp date?"})
	require.Equal(t, http.StatusOK, res.code)
	var out AskOutput
	res.decode(t, &out)
	assert.Contains(t, out.Answer, "Orientation camp")

	res = s.do(http.MethodPost, "/ask", "", AskInput{Question: "What is the meaning of life?"})
	res.decode(t, &out)
	assert.Equal(t, defaultAnswer, out.Answer)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/ask", "", AskInput{Question: "  "}).code)
}

func TestAskMaintenance(t *testing.T) {
	s := newTestServer(t, func(c *configs.ServerConfig) { c.MaintenanceMode = true })
	res := s.do(http.MethodPost, "/ask", "", AskInput{Question: "camp?"})
	assert.Equal(t, http.StatusServiceUnavailable, res.code)
}

func TestAskLatencyHonorsCancellation(t *testing.T) {
	s := newTestServer(t, func(c *configs.ServerConfig) { c.AskLatency = time.Hour })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := httptest.NewRequest(http.MethodPost, "/ask", bytes.NewReader([]byte(`{"question":"camp"}`))).WithContext(ctx)
	r.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res := s.serve(r)
	assert.Less(t, time.Since(start), time.Second)
	assert.Empty(t, res.body)
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	s := newTestServer(t, func(c *configs.ServerConfig) {
		c.AuthRateLimit = 0.001
		c.AuthRateBurst = 1
	})

	in := LoginInput{Email: "ghost@nysc.ng", Password: "secret1"}
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/auth/login", "", in).code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodPost, "/auth/login", "", in).code)

	// Reads are not limited.
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/news", "", nil).code)
}
