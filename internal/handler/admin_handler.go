package handler

import (
	"net/http"
	"strings"
	"time"

	"nyscmate/internal/app/feed"
	"nyscmate/internal/app/portal"
	"nyscmate/internal/app/user"
	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
	"nyscmate/internal/pkg/req"
	"nyscmate/internal/pkg/resp"
)

// dateLayout is how the server writes calendar dates.
const dateLayout = time.DateOnly

// requireRole loads the current user and checks it against allowed.
func (d *AppDeps) requireRole(r *http.Request, allowed func(*user.Profile) bool) (*user.Profile, *errs.CustomError) {
	u, customErr := d.currentUser(r)
	if customErr != nil {
		return nil, customErr
	}
	if !allowed(&u.Profile) {
		logx.Warn("Role not allowed", "user_id", u.ID, "role", u.Role, "path", r.URL.Path)
		return nil, errs.NewError(errs.ErrForbidden)
	}
	return &u.Profile, nil
}

// requiredFields takes name/value pairs and reports the empty ones.
func requiredFields(pairs ...string) []errs.FieldError {
	var out []errs.FieldError
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			name := pairs[i]
			out = append(out, errs.FieldError{Field: name, Message: strings.ToUpper(name[:1]) + name[1:] + " is required"})
		}
	}
	return out
}

// HandleAdminStats returns the admin console's headline numbers.
func HandleAdminStats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, customErr := deps.requireRole(r, user.CanReviewClearance); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		now := deps.now()
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		stats, err := deps.Store.Stats(r.Context(), dayStart)
		if err != nil {
			logx.Error(err, "failed to compute admin stats")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}
		resp.RespondSuccess(w, r, stats)
	}
}

// HandleAdminUsers lists every registered user.
func HandleAdminUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, customErr := deps.requireRole(r, user.CanReviewClearance); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		users, err := deps.Store.ListUsers(r.Context())
		if err != nil {
			logx.Error(err, "failed to list users")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}
		resp.RespondSuccess(w, r, emptyIfNil(users))
	}
}

// HandlePostNews pushes an update to the news feed.
func HandlePostNews(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := deps.requireRole(r, user.CanReviewClearance)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var post portal.NewsPost
		if customErr := req.BindJSON(r, &post); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		item := feed.NewsItem{
			Title:   strings.TrimSpace(post.Title),
			Type:    strings.TrimSpace(post.Type),
			Content: strings.TrimSpace(post.Content),
			URL:     strings.TrimSpace(post.URL),
			Date:    deps.now().Format(dateLayout),
		}
		if item.Type == "" {
			item.Type = "General"
		}
		if fields := requiredFields("title", item.Title, "content", item.Content); len(fields) > 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrValidationRejected).WithFields(fields...))
			return
		}

		id, err := deps.Store.AddNews(r.Context(), item)
		if err != nil {
			logx.Error(err, "failed to add news", "user_id", u.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		logx.Info("News posted", "news_id", id, "user_id", u.ID)
		resp.RespondJSON(w, r, http.StatusOK, resp.Message{Message: "Update pushed successfully!", ID: id})
	}
}
