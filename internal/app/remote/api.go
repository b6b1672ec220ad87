package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"nyscmate/internal/app/chat"
	"nyscmate/internal/app/feed"
	"nyscmate/internal/app/portal"
	"nyscmate/internal/app/session"
	"nyscmate/internal/app/user"
	"nyscmate/internal/pkg/errs"
)

var (
	_ session.AuthAPI = (*Client)(nil)
	_ chat.AskAPI     = (*Client)(nil)
	_ feed.API        = (*Client)(nil)
	_ portal.API      = (*Client)(nil)
)

// grantResponse is a profile with the issued token alongside its fields.
type grantResponse struct {
	Token string `json:"token"`
	user.Profile
}

func (g *grantResponse) grant() (*session.Grant, error) {
	if g.Token == "" {
		return nil, errs.Wrap(errs.ErrUnknown, fmt.Errorf("sign-in response carried no token"))
	}
	p := g.Profile
	p.Normalize()
	return &session.Grant{Credential: session.Credential(g.Token), Profile: &p}, nil
}

func (cl *Client) signIn(ctx context.Context, path string, body any) (*session.Grant, error) {
	var out grantResponse
	if err := cl.do(ctx, call{method: http.MethodPost, path: path, body: body, auth: true}, &out); err != nil {
		return nil, err
	}
	return out.grant()
}

// Login implements session.AuthAPI.
func (cl *Client) Login(ctx context.Context, email, password string) (*session.Grant, error) {
	return cl.signIn(ctx, "/auth/login", map[string]string{"email": email, "password": password})
}

// Signup implements session.AuthAPI.
func (cl *Client) Signup(ctx context.Context, d user.Draft) (*session.Grant, error) {
	return cl.signIn(ctx, "/auth/signup", d)
}

// SocialLogin implements session.AuthAPI.
func (cl *Client) SocialLogin(ctx context.Context, id session.SocialIdentity) (*session.Grant, error) {
	return cl.signIn(ctx, "/auth/social-login", id)
}

// Me implements session.AuthAPI.
func (cl *Client) Me(ctx context.Context, cred session.Credential) (*user.Profile, error) {
	var p user.Profile
	if err := cl.do(ctx, call{method: http.MethodGet, path: "/auth/me", cred: cred}, &p); err != nil {
		return nil, err
	}
	p.Normalize()
	return &p, nil
}

// UpdateProfile implements session.AuthAPI.
func (cl *Client) UpdateProfile(ctx context.Context, cred session.Credential, patch user.ProfilePatch) (*user.Profile, error) {
	var p user.Profile
	if err := cl.do(ctx, call{method: http.MethodPut, path: "/auth/profile", body: patch, cred: cred}, &p); err != nil {
		return nil, err
	}
	p.Normalize()
	return &p, nil
}

// Ask implements chat.AskAPI.
func (cl *Client) Ask(ctx context.Context, question string) (string, error) {
	var out struct {
		Answer string `json:"answer"`
	}
	if err := cl.do(ctx, call{method: http.MethodPost, path: "/ask", body: map[string]string{"question": question}}, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

// News implements feed.API.
func (cl *Client) News(ctx context.Context) ([]feed.NewsItem, error) {
	var out []feed.NewsItem
	err := cl.do(ctx, call{method: http.MethodGet, path: "/api/news"}, &out)
	return out, err
}

// Timeline implements feed.API.
func (cl *Client) Timeline(ctx context.Context) (*feed.Timeline, error) {
	var out feed.Timeline
	if err := cl.do(ctx, call{method: http.MethodGet, path: "/api/timeline"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Resources implements portal.API.
func (cl *Client) Resources(ctx context.Context) ([]portal.Resource, error) {
	var out []portal.Resource
	err := cl.do(ctx, call{method: http.MethodGet, path: "/resources/"}, &out)
	return out, err
}

// AddResource implements portal.API.
func (cl *Client) AddResource(ctx context.Context, draft portal.ResourceDraft) error {
	return cl.do(ctx, call{method: http.MethodPost, path: "/resources/", body: draft}, nil)
}

// multipartBody is a pre-encoded multipart/form-data payload.
type multipartBody struct {
	reader      io.Reader
	contentType string
}

func clearanceForm(month string, letter *portal.Attachment) (*multipartBody, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("month", month); err != nil {
		return nil, err
	}
	if letter != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, letter.Name))
		h.Set("Content-Type", letter.MimeType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(letter.Data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return &multipartBody{reader: &buf, contentType: w.FormDataContentType()}, nil
}

// RequestClearance implements portal.API.
func (cl *Client) RequestClearance(ctx context.Context, month string, letter *portal.Attachment) (int64, error) {
	form, err := clearanceForm(month, letter)
	if err != nil {
		return 0, errs.Wrap(errs.ErrFormParseFailed, err)
	}

	var out struct {
		Message string `json:"message"`
		ID      int64  `json:"id"`
	}
	if err := cl.do(ctx, call{method: http.MethodPost, path: "/clearance/request", body: form}, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// ClearanceHistory implements portal.API.
func (cl *Client) ClearanceHistory(ctx context.Context) ([]portal.Clearance, error) {
	var out []portal.Clearance
	err := cl.do(ctx, call{method: http.MethodGet, path: "/clearance/my-history"}, &out)
	return out, err
}

// PendingClearances implements portal.API.
func (cl *Client) PendingClearances(ctx context.Context) ([]portal.Clearance, error) {
	var out []portal.Clearance
	err := cl.do(ctx, call{method: http.MethodGet, path: "/clearance/pending"}, &out)
	return out, err
}

// ActOnClearance implements portal.API.
func (cl *Client) ActOnClearance(ctx context.Context, id int64, action portal.ClearanceAction) error {
	return cl.do(ctx, call{method: http.MethodPut, path: fmt.Sprintf("/clearance/%d/action", id), body: action}, nil)
}

// AdminStats implements portal.API.
func (cl *Client) AdminStats(ctx context.Context) (*portal.AdminStats, error) {
	var out portal.AdminStats
	if err := cl.do(ctx, call{method: http.MethodGet, path: "/admin/stats"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminUsers implements portal.API.
func (cl *Client) AdminUsers(ctx context.Context) ([]user.Profile, error) {
	var out []user.Profile
	err := cl.do(ctx, call{method: http.MethodGet, path: "/admin/users"}, &out)
	return out, err
}

// PostNews implements portal.API.
func (cl *Client) PostNews(ctx context.Context, post portal.NewsPost) error {
	post.Type = strings.TrimSpace(post.Type)
	return cl.do(ctx, call{method: http.MethodPost, path: "/admin/news", body: post}, nil)
}
