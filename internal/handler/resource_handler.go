package handler

import (
	"net/http"
	"strings"

	"nyscmate/internal/app/portal"
	"nyscmate/internal/app/user"
	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
	"nyscmate/internal/pkg/req"
	"nyscmate/internal/pkg/resp"
)

// HandleListResources lists the resource library. No sign-in needed.
func HandleListResources(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := deps.Store.Resources(r.Context())
		if err != nil {
			logx.Error(err, "failed to list resources")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}
		resp.RespondSuccess(w, r, emptyIfNil(items))
	}
}

// HandleAddResource adds a document to the library. Officials and admins only.
func HandleAddResource(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := deps.requireRole(r, user.CanManageResources)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var draft portal.ResourceDraft
		if customErr := req.BindJSON(r, &draft); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		res := portal.Resource{
			Title:     strings.TrimSpace(draft.Title),
			Category:  strings.TrimSpace(draft.Category),
			URL:       strings.TrimSpace(draft.URL),
			DateAdded: deps.now().Format(dateLayout),
		}
		if fields := requiredFields("title", res.Title, "category", res.Category, "url", res.URL); len(fields) > 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrValidationRejected).WithFields(fields...))
			return
		}

		id, err := deps.Store.AddResource(r.Context(), res)
		if err != nil {
			logx.Error(err, "failed to add resource", "user_id", u.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		logx.Info("Resource added", "resource_id", id, "user_id", u.ID)
		resp.RespondJSON(w, r, http.StatusOK, resp.Message{Message: "Resource added successfully", ID: id})
	}
}
