/*
Package handler provides the HTTP handlers and routing setup for the NYSC assistant development server.
*/
package handler

import (
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"nyscmate/internal/app/db"
	"nyscmate/internal/app/user"
	"nyscmate/internal/pkg/errs"
	"nyscmate/internal/pkg/logx"
	"nyscmate/internal/pkg/randx"
	"nyscmate/internal/pkg/req"
	"nyscmate/internal/pkg/resp"
)

const (
	minPasswordLen = 6
	maxPasswordLen = 72 // bcrypt ignores anything longer
)

// grant is the sign-in response: the profile fields with the token alongside.
type grant struct {
	user.Profile
	Token string `json:"token"`
}

// LoginInput is the body of POST /auth/login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SocialLoginInput is the body of POST /auth/social-login.
type SocialLoginInput struct {
	Provider string `json:"provider"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// validateDraft checks a signup draft and fills in defaults.
func validateDraft(d *user.Draft) *errs.CustomError {
	var fields []errs.FieldError

	d.Email = db.NormalizeEmail(d.Email)
	if _, err := mail.ParseAddress(d.Email); err != nil || !strings.Contains(d.Email, "@") {
		fields = append(fields, errs.FieldError{Field: "email", Message: "Enter a valid email address"})
	}

	if n := utf8.RuneCountInString(d.Password); n < minPasswordLen || n > maxPasswordLen {
		fields = append(fields, errs.FieldError{Field: "password", Message: "Password must be at least 6 characters"})
	}

	if d.Name = strings.TrimSpace(d.Name); d.Name == "" {
		fields = append(fields, errs.FieldError{Field: "name", Message: "Name is required"})
	}

	switch raw := strings.TrimSpace(string(d.Role)); {
	case raw == "":
		d.Role = user.RoleCorpsMember
	case user.IsKnownRole(raw):
		d.Role = user.ParseRole(raw)
	default:
		fields = append(fields, errs.FieldError{Field: "role", Message: "Unknown role " + raw})
	}

	if len(fields) > 0 {
		return errs.NewError(errs.ErrValidationFailed).WithFields(fields...)
	}
	return nil
}

// HandleSignup creates an account and signs it in.
func HandleSignup(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft user.Draft
		if customErr := req.BindJSON(r, &draft); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if customErr := validateDraft(&draft); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(draft.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		created, err := deps.Store.CreateUser(r.Context(), db.User{
			Profile: user.Profile{
				Email:            draft.Email,
				Name:             draft.Name,
				Role:             draft.Role,
				State:            strings.TrimSpace(draft.State),
				StateCode:        strings.TrimSpace(draft.StateCode),
				Gender:           strings.TrimSpace(draft.Gender),
				Phone:            strings.TrimSpace(draft.Phone),
				MobilizationDate: strings.TrimSpace(draft.MobilizationDate),
				PopDate:          strings.TrimSpace(draft.PopDate),
			},
			PasswordHash: string(hashedPassword),
		})
		if err != nil {
			if err == db.ErrEmailTaken {
				logx.Warn("signup conflict: email already registered", "email", draft.Email)
			} else {
				logx.Error(err, "failed to create user")
			}
			resp.RespondError(w, r, db.AsCustomError(err, ""))
			return
		}

		respondGrant(w, r, deps, created)
	}
}

// HandleLogin verifies credentials and issues a token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		u, err := deps.Store.UserByEmail(r.Context(), input.Email)
		if err != nil {
			if err != db.ErrNoRows {
				logx.Error(err, "login: user fetch failed")
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
				return
			}
			logx.Warn("login: unknown email", "email", db.NormalizeEmail(input.Email))
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(input.Password)); err != nil {
			logx.Warn("login: password mismatch", "user_id", u.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		respondGrant(w, r, deps, u)
	}
}

// HandleSocialLogin signs in with a provider identity, creating a Corps Member account on first use.
func HandleSocialLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input SocialLoginInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var fields []errs.FieldError
		if strings.TrimSpace(input.Provider) == "" {
			fields = append(fields, errs.FieldError{Field: "provider", Message: "Provider is required"})
		}
		if !strings.Contains(input.Email, "@") {
			fields = append(fields, errs.FieldError{Field: "email", Message: "Enter a valid email address"})
		}
		if len(fields) > 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrValidationFailed).WithFields(fields...))
			return
		}

		u, err := deps.Store.UserByEmail(r.Context(), input.Email)
		if err == db.ErrNoRows {
			u, err = createSocialUser(r, deps, input)
		}
		if err != nil {
			logx.Error(err, "social login failed", "provider", input.Provider)
			resp.RespondError(w, r, db.AsCustomError(err, ""))
			return
		}

		respondGrant(w, r, deps, u)
	}
}

func createSocialUser(r *http.Request, deps *AppDeps, input SocialLoginInput) (*db.User, error) {
	secret, err := randx.Secret()
	if err != nil {
		return nil, err
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Social User"
	}

	u, err := deps.Store.CreateUser(r.Context(), db.User{
		Profile: user.Profile{
			Email:    input.Email,
			Name:     name,
			Role:     user.RoleCorpsMember,
			State:    "Pending",
			PhotoURL: strings.TrimSpace(input.PhotoURL),
		},
		PasswordHash: string(hashedPassword),
	})
	if err == nil {
		logx.Info("Created account from social sign-in", "user_id", u.ID, "provider", input.Provider)
	}
	return u, err
}

// respondGrant records the sign-in and answers with the profile and a fresh token.
func respondGrant(w http.ResponseWriter, r *http.Request, deps *AppDeps, u *db.User) {
	if err := deps.Store.TouchUser(r.Context(), u.ID, deps.now()); err != nil {
		logx.Error(err, "failed to update last_seen_at", "user_id", u.ID)
	}

	token, err := deps.issueToken(u)
	if err != nil {
		logx.Error(err, "jwt generation failed", "user_id", u.ID)
		resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
		return
	}

	resp.RespondSuccess(w, r, grant{Profile: u.Profile, Token: token})
}
