/*
Package portal holds the self-service and administrative tasks: the resource library,
monthly clearance, and the admin console.

Role requirements are checked against the signed-in profile before anything is sent, so a
request the remote service would refuse is never issued. The remote service still enforces
the same rules.
*/
package portal

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"nyscmate/internal/app/notify"
	"nyscmate/internal/app/pipeline"
	"nyscmate/internal/app/user"
	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
)

// Resource is a document in the resource library.
type Resource struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Category  string `json:"category"`
	URL       string `json:"url"`
	DateAdded string `json:"date_added"`
}

// ResourceDraft is a resource about to be added.
type ResourceDraft struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	URL      string `json:"url"`
}

// Clearance statuses.
const (
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusRejected = "Rejected"
)

// Clearance is one monthly clearance request.
type Clearance struct {
	ID              int64  `json:"id"`
	UserName        string `json:"user_name"`
	StateCode       string `json:"state_code"`
	Month           string `json:"month"`
	DateSubmitted   string `json:"date_submitted"`
	Status          string `json:"status"`
	FileURL         string `json:"file_url,omitempty"`
	OfficialComment string `json:"official_comment,omitempty"`
}

// ClearanceAction is an official's decision on a request.
type ClearanceAction struct {
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
}

// AdminStats is the admin console's headline numbers.
type AdminStats struct {
	TotalUsers   int `json:"total_users"`
	CorpsMembers int `json:"corps_members"`
	PCMs         int `json:"pcms"`
	ActiveToday  int `json:"active_today"`
}

// NewsPost is an update pushed to the news feed from the admin console.
type NewsPost struct {
	Title   string `json:"title"`
	Type    string `json:"type"`
	Content string `json:"content"`
	URL     string `json:"url,omitempty"`
}

// API is the remote side of the portal.
type API interface {
	Resources(ctx context.Context) ([]Resource, error)
	AddResource(ctx context.Context, draft ResourceDraft) error

	RequestClearance(ctx context.Context, month string, letter *Attachment) (int64, error)
	ClearanceHistory(ctx context.Context) ([]Clearance, error)
	PendingClearances(ctx context.Context) ([]Clearance, error)
	ActOnClearance(ctx context.Context, id int64, action ClearanceAction) error

	AdminStats(ctx context.Context) (*AdminStats, error)
	AdminUsers(ctx context.Context) ([]user.Profile, error)
	PostNews(ctx context.Context, post NewsPost) error
}

// Service runs portal tasks on behalf of the signed-in user.
type Service struct {
	api     API
	pipe    *pipeline.Pipeline
	policy  user.AdminPolicy
	profile func() *user.Profile
	sink    notify.Sink
	scope   func(context.Context) (context.Context, context.CancelFunc)
	logger  zerolog.Logger
}

// NewService returns a Service. profile reports the signed-in user, nil when signed out.
func NewService(api API, pipe *pipeline.Pipeline, policy user.AdminPolicy, profile func() *user.Profile, sink notify.Sink) *Service {
	if sink == nil {
		sink = notify.Discard
	}
	return &Service{
		api:     api,
		pipe:    pipe,
		policy:  policy,
		profile: profile,
		sink:    sink,
		scope:   context.WithCancel,
		logger:  logx.Component("portal"),
	}
}

// BindScope sets how request contexts are derived from the caller's, e.g. joining them to
// the authenticated scope.
func (s *Service) BindScope(fn func(context.Context) (context.Context, context.CancelFunc)) {
	s.scope = fn
}

// require returns the signed-in profile if allowed accepts it.
func (s *Service) require(allowed func(*user.Profile) bool) (*user.Profile, error) {
	p := s.profile()
	if p == nil {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}
	if allowed != nil && !allowed(p) {
		return nil, errs.NewError(errs.ErrForbidden)
	}
	return p, nil
}

// run issues call through the pipeline under the service's scope. A nil *CustomError is
// never turned into a non-nil error.
func run[T any](ctx context.Context, s *Service, kind pipeline.Kind, call func(context.Context) (T, error)) (T, error) {
	ctx, cancel := s.scope(ctx)
	defer cancel()

	out := pipeline.Execute(ctx, s.pipe, kind, call)
	if out.Err != nil {
		return out.Value, out.Err
	}
	return out.Value, nil
}

func (s *Service) done(topic, msg string) {
	notify.Emit(s.sink, notify.LevelSuccess, topic, msg)
}

// Resources lists the resource library. Any signed-in user may read it.
func (s *Service) Resources(ctx context.Context) ([]Resource, error) {
	if _, err := s.require(nil); err != nil {
		return nil, err
	}
	return run(ctx, s, pipeline.KindPortal, s.api.Resources)
}

// AddResource adds a document to the library. Officials and admins only.
func (s *Service) AddResource(ctx context.Context, draft ResourceDraft) error {
	if _, err := s.require(user.CanManageResources); err != nil {
		return err
	}

	draft.Title = strings.TrimSpace(draft.Title)
	draft.Category = strings.TrimSpace(draft.Category)
	draft.URL = strings.TrimSpace(draft.URL)
	if fields := missing(map[string]string{"title": draft.Title, "category": draft.Category, "url": draft.URL}); len(fields) > 0 {
		return errs.NewError(errs.ErrInvalidParams).WithFields(fields...)
	}

	_, err := run(ctx, s, pipeline.KindPortal, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.AddResource(ctx, draft)
	})
	if err != nil {
		return err
	}
	s.done("resources", "Resource added successfully")
	return nil
}

// RequestClearance submits this month's clearance with an optional letter. Corps members only.
func (s *Service) RequestClearance(ctx context.Context, month string, letter *Attachment) (int64, error) {
	if _, err := s.require(user.CanRequestClearance); err != nil {
		return 0, err
	}

	month = strings.TrimSpace(month)
	if month == "" {
		return 0, errs.NewError(errs.ErrInvalidParams).WithFields(errs.FieldError{Field: "month", Message: "Month is required"})
	}
	if letter != nil {
		if err := letter.Validate(); err != nil {
			return 0, err
		}
	}

	id, err := run(ctx, s, pipeline.KindPortal, func(ctx context.Context) (int64, error) {
		return s.api.RequestClearance(ctx, month, letter)
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("clearance_id", id).Str("month", month).Msg("Clearance submitted")
	s.done("clearance", "Clearance submitted successfully")
	return id, nil
}

// ClearanceHistory lists the signed-in user's own requests.
func (s *Service) ClearanceHistory(ctx context.Context) ([]Clearance, error) {
	if _, err := s.require(nil); err != nil {
		return nil, err
	}
	return run(ctx, s, pipeline.KindPortal, s.api.ClearanceHistory)
}

// PendingClearances lists requests awaiting review. Officials and admins only.
func (s *Service) PendingClearances(ctx context.Context) ([]Clearance, error) {
	if _, err := s.require(user.CanReviewClearance); err != nil {
		return nil, err
	}
	return run(ctx, s, pipeline.KindPortal, s.api.PendingClearances)
}

// ActOnClearance approves or rejects a request. Officials and admins only.
func (s *Service) ActOnClearance(ctx context.Context, id int64, action ClearanceAction) error {
	if _, err := s.require(user.CanReviewClearance); err != nil {
		return err
	}

	status, ok := parseStatus(action.Status)
	if !ok {
		return errs.NewError(errs.ErrInvalidParams).WithFields(
			errs.FieldError{Field: "status", Message: "Status must be Approved or Rejected"})
	}
	action.Status = status
	action.Comment = strings.TrimSpace(action.Comment)

	_, err := run(ctx, s, pipeline.KindPortal, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.ActOnClearance(ctx, id, action)
	})
	if err != nil {
		return err
	}
	s.done("clearance", "Clearance "+status)
	return nil
}

// parseStatus accepts a review decision in any case.
func parseStatus(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approved", "approve":
		return StatusApproved, true
	case "rejected", "reject":
		return StatusRejected, true
	}
	return "", false
}

// AdminStats returns the admin console numbers.
func (s *Service) AdminStats(ctx context.Context) (*AdminStats, error) {
	if _, err := s.require(s.policy.IsAdmin); err != nil {
		return nil, err
	}
	return run(ctx, s, pipeline.KindAdmin, s.api.AdminStats)
}

// AdminUsers lists every registered user.
func (s *Service) AdminUsers(ctx context.Context) ([]user.Profile, error) {
	if _, err := s.require(s.policy.IsAdmin); err != nil {
		return nil, err
	}
	users, err := run(ctx, s, pipeline.KindAdmin, s.api.AdminUsers)
	for i := range users {
		users[i].Normalize()
	}
	return users, err
}

// PostNews pushes an update to the news feed.
func (s *Service) PostNews(ctx context.Context, post NewsPost) error {
	if _, err := s.require(s.policy.IsAdmin); err != nil {
		return err
	}

	post.Title = strings.TrimSpace(post.Title)
	post.Content = strings.TrimSpace(post.Content)
	if post.Type = strings.TrimSpace(post.Type); post.Type == "" {
		post.Type = "General"
	}
	if fields := missing(map[string]string{"title": post.Title, "content": post.Content}); len(fields) > 0 {
		return errs.NewError(errs.ErrInvalidParams).WithFields(fields...)
	}

	_, err := run(ctx, s, pipeline.KindAdmin, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.PostNews(ctx, post)
	})
	if err != nil {
		return err
	}
	s.done("admin", "Update pushed successfully!")
	return nil
}

// missing lists the empty values, in key order.
func missing(values map[string]string) []errs.FieldError {
	keys := []string{"title", "category", "url", "content"}
	var out []errs.FieldError
	for _, k := range keys {
		if v, ok := values[k]; ok && v == "" {
			out = append(out, errs.FieldError{Field: k, Message: strings.ToUpper(k[:1]) + k[1:] + " is required"})
		}
	}
	return out
}
