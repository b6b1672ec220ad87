package handler

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"nyscmate/internal/app/db"
	"nyscmate/internal/app/portal"
	"nyscmate/internal/app/storage"
	"nyscmate/internal/app/user"
	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
	"nyscmate/internal/pkg/req"
	"nyscmate/internal/pkg/resp"
)

const (
	submittedLayout = "2006-01-02 15:04"

	// cleanupTimeout bounds the removal of an upload whose request was refused.
	cleanupTimeout = 10 * time.Second
)

// HandleRequestClearance files this month's clearance with an optional letter. Corps members only.
func HandleRequestClearance(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := deps.currentUser(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if !user.CanRequestClearance(&u.Profile) {
			resp.RespondError(w, r, errs.NewError(errs.ErrForbidden).WithMessage("Only Corps Members can request clearance"))
			return
		}

		if customErr := req.SetupMultipart(w, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		month := strings.TrimSpace(r.FormValue("month"))
		if month == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrValidationRejected).WithFields(
				errs.FieldError{Field: "month", Message: "Month is required"}))
			return
		}

		existing, err := deps.Store.ClearancesByUser(r.Context(), u.ID)
		if err != nil {
			logx.Error(err, "clearance: history lookup failed", "user_id", u.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}
		for _, c := range existing {
			if c.Month == month {
				resp.RespondError(w, r, db.AsCustomError(db.ErrDuplicateClearance, ""))
				return
			}
		}

		file, header, customErr := req.FormFile(r, "file")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var stored *storage.Object
		if file != nil {
			defer file.Close()
			if stored, customErr = deps.storeLetter(r.Context(), file, header); customErr != nil {
				resp.RespondError(w, r, customErr)
				return
			}
		}

		record := db.Clearance{
			UserID: u.ID,
			Clearance: portal.Clearance{
				UserName:      u.Name,
				StateCode:     u.StateCode,
				Month:         month,
				DateSubmitted: deps.now().Format(submittedLayout),
				Status:        portal.StatusPending,
			},
		}
		if stored != nil {
			record.FileURL = stored.URL
		}

		id, err := deps.Store.CreateClearance(r.Context(), record)
		if err != nil {
			if stored != nil {
				deps.discardLetter(stored.Key)
			}
			if err != db.ErrDuplicateClearance {
				logx.Error(err, "failed to save clearance", "user_id", u.ID)
			}
			resp.RespondError(w, r, db.AsCustomError(err, ""))
			return
		}

		logx.Info("Clearance submitted", "clearance_id", id, "user_id", u.ID, "month", month)
		resp.RespondJSON(w, r, http.StatusOK, resp.Message{Message: "Clearance submitted successfully", ID: id})
	}
}

// storeLetter validates and uploads a clearance letter. When the storage service fails the
// request still goes through with a placeholder link.
func (d *AppDeps) storeLetter(ctx context.Context, file multipart.File, header *multipart.FileHeader) (*storage.Object, *errs.CustomError) {
	if customErr := portal.ValidateFileSize(header.Size); customErr != nil {
		return nil, customErr
	}
	mimeType := header.Header.Get("Content-Type")
	if customErr := portal.ValidateFileType(header.Filename, mimeType); customErr != nil {
		return nil, customErr
	}

	obj, err := d.Storage.Upload(ctx, header.Filename, strings.ToLower(mimeType), header.Size, file)
	if err != nil {
		logx.Error(err, "clearance letter upload failed, recording placeholder link", "file_name", header.Filename)
		obj, _ = storage.MockStorage{}.Upload(ctx, header.Filename, mimeType, header.Size, nil)
		// The placeholder has nothing to delete.
		obj.Key = ""
	}
	return obj, nil
}

// discardLetter removes an upload whose clearance was refused.
func (d *AppDeps) discardLetter(key string) {
	if key == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := d.Storage.Delete(ctx, key); err != nil {
			logx.Warn("failed to delete orphaned clearance letter", "key", key, "error", err)
		}
	}()
}

// HandleClearanceHistory lists the signed-in user's own requests.
func HandleClearanceHistory(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := deps.currentUser(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		items, err := deps.Store.ClearancesByUser(r.Context(), u.ID)
		if err != nil {
			logx.Error(err, "failed to list clearance history", "user_id", u.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}
		resp.RespondSuccess(w, r, emptyIfNil(items))
	}
}

// HandlePendingClearances lists requests awaiting review. Officials and admins only.
func HandlePendingClearances(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, customErr := deps.requireRole(r, user.CanReviewClearance); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		items, err := deps.Store.PendingClearances(r.Context())
		if err != nil {
			logx.Error(err, "failed to list pending clearances")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}
		resp.RespondSuccess(w, r, emptyIfNil(items))
	}
}

// HandleClearanceAction approves or rejects a request. Officials and admins only.
func HandleClearanceAction(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, customErr := deps.requireRole(r, user.CanReviewClearance)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		id, customErr := req.PathID(r, "id")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var action portal.ClearanceAction
		if customErr := req.BindJSON(r, &action); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var status string
		switch strings.ToLower(strings.TrimSpace(action.Status)) {
		case "approved":
			status = portal.StatusApproved
		case "rejected":
			status = portal.StatusRejected
		default:
			resp.RespondError(w, r, errs.NewError(errs.ErrValidationRejected).WithFields(
				errs.FieldError{Field: "status", Message: "Status must be Approved or Rejected"}))
			return
		}

		if err := deps.Store.ActOnClearance(r.Context(), id, status, strings.TrimSpace(action.Comment)); err != nil {
			if err != db.ErrNoRows {
				logx.Error(err, "failed to record clearance action", "clearance_id", id)
			}
			resp.RespondError(w, r, db.AsCustomError(err, "Clearance request not found"))
			return
		}

		logx.Info("Clearance reviewed", "clearance_id", id, "status", status, "reviewer_id", u.ID)
		resp.RespondMessage(w, r, fmt.Sprintf("Clearance %s", status))
	}
}
