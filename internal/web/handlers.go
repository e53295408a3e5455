// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package web

import (
	"net/http"
	"strings"
	"time"
)

// Response messages.
const (
	msgRegistered     = "User registered successfully"
	msgLoggedIn       = "Login successful"
	msgLoggedOut      = "Logout successful"
	msgResetIssued    = "Password reset token generated successfully"
	msgPasswordUpdate = "Password updated successfully"
	msgOAuthLoggedIn  = "Google OAuth login successful"
)

// Auth event names recorded in metrics.
const (
	eventRegister       = "register"
	eventLogin          = "login"
	eventLogout         = "logout"
	eventPasswordReset  = "password_reset"
	eventPasswordUpdate = "password_update"
	eventOAuthLogin     = "oauth_login"
)

type messageResponse struct {
	Message string `json:"message"`
}

type sessionResponse struct {
	SessionToken string `json:"session_token"`
	Message      string `json:"message"`
}

type resetResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token"`
}

type whoamiResponse struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) (err error) {
	defer func() { h.metrics.RecordAuthEvent(eventRegister, err) }()

	var req struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
		Password *string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if err := required(
		field{"username", req.Username},
		field{"email", req.Email},
		field{"password", req.Password},
	); err != nil {
		return err
	}

	user, err := h.credentials.Register(r.Context(), *req.Username, *req.Email, *req.Password)
	if err != nil {
		return err
	}
	h.logger.InfoContext(r.Context(), "user registered", "user_id", user.ID.String())
	writeJSON(w, http.StatusOK, messageResponse{Message: msgRegistered})
	return nil
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) (err error) {
	defer func() { h.metrics.RecordAuthEvent(eventLogin, err) }()

	var req struct {
		Username *string `json:"username"`
		Password *string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if err := required(field{"username", req.Username}, field{"password", req.Password}); err != nil {
		return err
	}

	token, row, err := h.credentials.Login(r.Context(), *req.Username, *req.Password)
	if err != nil {
		return err
	}
	h.logger.InfoContext(r.Context(), "user logged in", "user_id", row.UserID.String())
	writeJSON(w, http.StatusOK, sessionResponse{SessionToken: token, Message: msgLoggedIn})
	return nil
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) (err error) {
	defer func() { h.metrics.RecordAuthEvent(eventLogout, err) }()

	var req struct {
		SessionToken *string `json:"session_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if err := required(field{"session_token", req.SessionToken}); err != nil {
		return err
	}

	if err := h.sessions.Revoke(r.Context(), *req.SessionToken); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msgLoggedOut})
	return nil
}

func (h *Handler) passwordReset(w http.ResponseWriter, r *http.Request) (err error) {
	defer func() { h.metrics.RecordAuthEvent(eventPasswordReset, err) }()

	var req struct {
		Identifier *string `json:"identifier"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if err := required(field{"identifier", req.Identifier}); err != nil {
		return err
	}

	token, err := h.sessions.RequestReset(r.Context(), *req.Identifier)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, resetResponse{Message: msgResetIssued, ResetToken: token})
	return nil
}

func (h *Handler) passwordUpdate(w http.ResponseWriter, r *http.Request) (err error) {
	defer func() { h.metrics.RecordAuthEvent(eventPasswordUpdate, err) }()

	var req struct {
		ResetToken  *string `json:"reset_token"`
		NewPassword *string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if err := required(field{"reset_token", req.ResetToken}, field{"new_password", req.NewPassword}); err != nil {
		return err
	}

	if err := h.sessions.ConsumeReset(r.Context(), *req.ResetToken, *req.NewPassword); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msgPasswordUpdate})
	return nil
}

func (h *Handler) googleLogin(w http.ResponseWriter, r *http.Request) error {
	target, err := h.oauth.LoginURL()
	if err != nil {
		return err
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
	return nil
}

func (h *Handler) googleCallback(w http.ResponseWriter, r *http.Request) (err error) {
	defer func() { h.metrics.RecordAuthEvent(eventOAuthLogin, err) }()

	token, row, err := h.oauth.Callback(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		return err
	}
	h.logger.InfoContext(r.Context(), "user logged in via oauth", "user_id", row.UserID.String())
	writeJSON(w, http.StatusOK, sessionResponse{SessionToken: token, Message: msgOAuthLoggedIn})
	return nil
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) error {
	row, user, err := h.sessions.Validate(r.Context(), bearerToken(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, whoamiResponse{
		UserID:    user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		ExpiresAt: row.ExpiresAt.UTC(),
	})
	return nil
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

