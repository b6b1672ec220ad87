package handler

import (
	"net/http"
	"strings"
	"time"

	"nyscmate/internal/app/user"
	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
	"nyscmate/internal/pkg/req"
	"nyscmate/internal/pkg/resp"
)

// touchThreshold is how stale last_seen_at may get before a profile read refreshes it.
const touchThreshold = 30 * time.Minute

// HandleMe returns the signed-in user's profile.
func HandleMe(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := deps.currentUser(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if now := deps.now(); now.Sub(u.LastSeenAt) > touchThreshold {
			if err := deps.Store.TouchUser(r.Context(), u.ID, now); err != nil {
				logx.Error(err, "me: failed to update last_seen_at", "user_id", u.ID)
			}
		}

		resp.RespondSuccess(w, r, u.Profile)
	}
}

// HandleUpdateProfile applies a partial profile update and returns the stored profile.
func HandleUpdateProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := deps.currentUser(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var patch user.ProfilePatch
		if customErr := req.BindJSON(r, &patch); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				resp.RespondError(w, r, errs.NewError(errs.ErrValidationFailed).WithFields(
					errs.FieldError{Field: "name", Message: "Name cannot be empty"}))
				return
			}
			patch.Name = &name
		}

		updated, err := deps.Store.UpdateProfile(r.Context(), u.ID, patch)
		if err != nil {
			logx.Error(err, "failed to update profile", "user_id", u.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		resp.RespondSuccess(w, r, updated.Profile)
	}
}
