package handler

import (
	"math"
	"net/http"
	"time"

	"nyscmate/internal/app/feed"
	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
	"nyscmate/internal/pkg/resp"
)

const (
	// defaultDaysToCamp is reported when the user has no usable mobilization date.
	defaultDaysToCamp = 5

	registrationOpen = "Open"
)

// HandleNews lists the news feed, newest first.
func HandleNews(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Store.News(r.Context())
		if err != nil {
			logx.Error(err, "failed to list news")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}
		resp.RespondSuccess(w, r, emptyIfNil(items))
	}
}

// HandleTimeline reports the signed-in user's service timeline.
func HandleTimeline(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := deps.currentUser(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		deployment := u.State
		if deployment == "" {
			deployment = "Pending"
		}

		resp.RespondSuccess(w, r, feed.Timeline{
			DaysToCamp:         daysToCamp(u.MobilizationDate, deps.now()),
			RegistrationStatus: registrationOpen,
			DeploymentState:    deployment,
		})
	}
}

// daysToCamp counts whole days from now until the mobilization date (YYYY-MM-DD). Past dates
// count as zero; a missing or unparsable date gives the default.
func daysToCamp(mobilization string, now time.Time) int {
	day, err := time.ParseInLocation(time.DateOnly, mobilization, now.Location())
	if err != nil {
		return defaultDaysToCamp
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	days := int(math.Round(day.Sub(today).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}
