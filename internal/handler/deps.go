package handler

import (
	"net/http"
	"time"

	"nyscmate/internal/app/db"
	"nyscmate/internal/app/storage"
	"nyscmate/internal/configs"
	"nyscmate/internal/pkg/auth/jwt"
	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
)

// AppDeps are the collaborators shared by every handler.
type AppDeps struct {
	Config  *configs.ServerConfig
	Store   db.Store
	Storage storage.StorageService

	// Now is the clock. Nil means time.Now.
	Now func() time.Time
}

func (d *AppDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// currentUser loads the account behind the request's credential. A credential whose
// account no longer exists is treated like no credential at all.
func (d *AppDeps) currentUser(r *http.Request) (*db.User, *errs.CustomError) {
	payload := jwt.GetPayloadFromContext(r)
	if payload == nil {
		return nil, errs.NewError(errs.ErrUnauthorized).WithMessage("Could not validate credentials")
	}

	u, err := d.Store.UserByID(r.Context(), payload.ID)
	if err != nil {
		if err != db.ErrNoRows {
			logx.Error(err, "current_user: lookup failed", "user_id", payload.ID)
			return nil, errs.NewError(errs.ErrUnknown, err)
		}
		return nil, errs.NewError(errs.ErrUnauthorized).WithMessage("Could not validate credentials")
	}
	return u, nil
}

// issueToken signs a credential for u.
func (d *AppDeps) issueToken(u *db.User) (string, error) {
	return jwt.GenerateToken(&jwt.Payload{ID: u.ID, Email: u.Email, Role: string(u.Role)}, d.Config.JWTSecret, d.Config.TokenTTL)
}

// emptyIfNil keeps list endpoints answering [] rather than null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
