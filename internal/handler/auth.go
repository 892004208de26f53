package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dukerupert/brightwork/internal/apperr"
	"github.com/dukerupert/brightwork/internal/auth"
	"github.com/dukerupert/brightwork/internal/model"
)

const loginSentMessage = "If that email has an account, a sign-in link is on its way."

type AuthHandler struct {
	svc    *auth.Service
	logger *slog.Logger
}

func NewAuthHandler(svc *auth.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

func roleParam(r *http.Request) (model.Role, bool) {
	role := model.Role(r.PathValue("role"))
	return role, role.Valid()
}

// homePath is where a freshly signed-in identity lands.
func homePath(role model.Role) string {
	if role == model.RoleAdmin {
		return "/admin"
	}
	return "/portal"
}

func loginPath(role model.Role) string {
	return homePath(role) + "/login"
}

type loginRequest struct {
	Email string `json:"email"`
}

// Login handles POST /auth/{role}/login. Every well-formed request gets the
// same answer whether or not the email belongs to anyone.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "unknown role")
		return
	}

	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if !decodeJSON(w, r, &req) {
			return
		}
	} else {
		req.Email = r.FormValue("email")
	}

	res, err := h.svc.IssueMagicLink(r.Context(), req.Email, role)
	if err != nil {
		writeError(w, h.logger, "issue magic link", err)
		return
	}

	body := map[string]any{"message": loginSentMessage}
	if res.DevMode && res.DevURL != "" {
		body["dev_url"] = res.DevURL
	}
	writeJSON(w, http.StatusOK, body)
}

// Verify handles GET /auth/{role}/verify?token=. Success sets the session
// cookie and redirects home. Unknown, expired, used and wrong-role links all
// redirect to the login page with the same reason.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	ident, err := h.svc.VerifyMagicLink(r.Context(), r.URL.Query().Get("token"), role)
	if err != nil {
		reason := "invalid"
		switch {
		case errors.Is(err, apperr.ErrExpired), errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrForbidden):
			h.logger.Info("magic link rejected", "role", role, "error", err)
		default:
			h.logger.Error("verify magic link", "role", role, "error", err)
			reason = "error"
		}
		http.Redirect(w, r, loginPath(role)+"?error="+url.QueryEscape(reason), http.StatusSeeOther)
		return
	}

	sess, err := h.svc.CreateSession(r.Context(), ident.Email, role)
	if err != nil {
		h.logger.Error("create session", "role", role, "error", err)
		http.Redirect(w, r, loginPath(role)+"?error=error", http.StatusSeeOther)
		return
	}

	policy, _ := h.svc.Policy(role)
	policy.SetCookie(w, sess.Token)
	h.logger.Info("signed in", "role", role, "identity_id", ident.ID)
	http.Redirect(w, r, homePath(role), http.StatusSeeOther)
}

// Logout handles POST /auth/{role}/logout. It succeeds with or without a
// session and always clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "unknown role")
		return
	}
	policy, ok := h.svc.Policy(role)
	if !ok {
		writeMessage(w, http.StatusNotFound, "unknown role")
		return
	}

	if err := h.svc.DestroySession(r.Context(), policy.TokenFromRequest(r)); err != nil {
		h.logger.Error("destroy session", "role", role, "error", err)
	}
	policy.ClearCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// Me handles GET /api/admin/me and GET /api/portal/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"email": ac.Email,
		"role":  ac.Role,
		"id":    ac.IdentityID,
	})
}
