package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"crudgate.org/internal/audit"
	"crudgate.org/internal/auth"
	"crudgate.org/internal/member"
	"crudgate.org/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName" validate:"omitempty,max=100"`
	Surname   string `json:"surname" validate:"omitempty,max=100"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Code     string `json:"code" validate:"required,len=6"`
	Password string `json:"password" validate:"required,min=8"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

func (a *API) handleAuth(w http.ResponseWriter, r *http.Request) {
	switch strings.TrimPrefix(r.URL.Path, "/auth/") {
	case "login":
		a.postOnly(w, r, a.login)
	case "refresh":
		a.postOnly(w, r, a.refresh)
	case "verify":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.verify(w, r)
	case "register":
		a.postOnly(w, r, a.register)
	case "forgot-password":
		a.postOnly(w, r, a.forgotPassword)
	case "reset-password":
		a.postOnly(w, r, a.resetPassword)
	case "change-password":
		a.postOnly(w, r, a.changePassword)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) postOnly(w http.ResponseWriter, r *http.Request, h http.HandlerFunc) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	h(w, r)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeValidationErrors(w, r, validationMessages(err))
		return
	}

	principal, err := a.members.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "authentication error")
		return
	}

	a.issueToken(w, r, principal, "auth.login", http.StatusOK)
}

// refresh forces a re-sign regardless of the renewal threshold. The caller
// already authenticated through withAuth.
func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	if principal == nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	a.issueToken(w, r, principal, "auth.refresh", http.StatusOK)
}

func (a *API) verify(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	if principal == nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	view, err := a.memberView(r.Context(), principal.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeData(w, http.StatusOK, map[string]any{"member": view})
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeValidationErrors(w, r, validationMessages(err))
		return
	}

	principal, err := a.members.Register(r.Context(), req.Email, req.Password, req.FirstName, req.Surname)
	if err != nil {
		if errors.Is(err, member.ErrExists) {
			writeError(w, r, http.StatusConflict, "email already registered")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "member.registered", map[string]any{
		"member_id": principal.ID,
		"email":     principal.Email,
	})
	a.issueToken(w, r, principal, "auth.register", http.StatusCreated)
}

// forgotPassword always answers 202 so callers cannot probe which emails
// exist. Delivery of the code is an external concern; the request record is
// what an integration reads.
func (a *API) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeValidationErrors(w, r, validationMessages(err))
		return
	}

	if rec, err := a.members.ByEmail(r.Context(), req.Email); err == nil {
		if _, err := a.resets.Create(r.Context(), rec.ID); err == nil {
			_ = audit.LogEvent(r.Context(), "member.reset_requested", map[string]any{
				"member_id": rec.ID,
			})
		}
	}
	writeData(w, http.StatusAccepted, map[string]any{"status": "ok"})
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeValidationErrors(w, r, validationMessages(err))
		return
	}

	if err := a.resets.Consume(r.Context(), a.members, req.Code, req.Password); err != nil {
		if errors.Is(err, member.ErrResetNotFound) {
			writeError(w, r, http.StatusBadRequest, "invalid or expired code")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "member.password_reset", nil)
	writeData(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) changePassword(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r)
	if principal == nil {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeValidationErrors(w, r, validationMessages(err))
		return
	}

	if err := a.members.CheckPassword(r.Context(), principal.ID, req.OldPassword); err != nil {
		writeError(w, r, http.StatusForbidden, "old password is incorrect")
		return
	}
	if err := a.members.SetPassword(r.Context(), principal.ID, req.NewPassword); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "member.password_changed", map[string]any{
		"member_id": principal.ID,
	})
	writeData(w, http.StatusOK, map[string]any{"status": "ok"})
}

// issueToken signs a token for the principal and writes the token envelope.
func (a *API) issueToken(w http.ResponseWriter, r *http.Request, principal *auth.Principal, event string, code int) {
	token, err := a.tokens.Issue(principal.ID, principal.Email)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	obs.TokenIssued()
	_ = audit.LogEvent(r.Context(), event, map[string]any{
		"member_id": principal.ID,
	})

	view, err := a.memberView(r.Context(), principal.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeData(w, code, map[string]any{
		"token":     token,
		"expiresIn": int64(a.tokens.Lifetime() / time.Second),
		"member":    view,
	})
}

func (a *API) memberView(ctx context.Context, id int64) (map[string]any, error) {
	rec, err := a.store.ByID(ctx, member.TypeMember, id)
	if err != nil {
		return nil, err
	}
	return a.ser.ToView(ctx, rec)
}

func validationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("Invalid value for field '%s'", fe.Field()))
		}
		return msgs
	}
	return []string{err.Error()}
}
