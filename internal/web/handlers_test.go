// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 tst-auth-svc Contributors

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ian-yc-kim/tst-auth-svc/internal/auth"
	"github.com/ian-yc-kim/tst-auth-svc/internal/auth/memory"
	"github.com/ian-yc-kim/tst-auth-svc/internal/config"
	"github.com/ian-yc-kim/tst-auth-svc/internal/identity"
	"github.com/ian-yc-kim/tst-auth-svc/internal/observability"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
	metrics *observability.Metrics
	store   *memory.Store
}

func newTestAPI(t *testing.T, google config.GoogleConfig) *testAPI {
	t.Helper()
	store := memory.New()
	hasher := auth.NewArgon2idHasher()

	sessions, err := auth.NewSessionService(store, hasher)
	require.NoError(t, err)
	credentials, err := auth.NewCredentialService(store, hasher, sessions)
	require.NoError(t, err)
	oauth, err := auth.NewOAuthService(store, sessions, identity.NewGoogle(google))
	require.NoError(t, err)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := NewHandler(Services{Credentials: credentials, Sessions: sessions, OAuth: oauth}, logger, metrics)
	require.NoError(t, err)

	return &testAPI{t: t, handler: h.Routes(), metrics: metrics, store: store}
}

func googleConfig() config.GoogleConfig {
	return config.GoogleConfig{
		ClientID:     "client-123",
		ClientSecret: "secret",
		RedirectURI:  "http://localhost:8000/google-callback",
		Scope:        "openid email",
	}
}

func (a *testAPI) do(method, target string, body any, header ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) post(target string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	return a.do(http.MethodPost, target, body)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func assertDetail(t *testing.T, rec *httptest.ResponseRecorder, status int, detail string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, detail, decode(t, rec)["detail"])
}

func (a *testAPI) register(username, email, password string) {
	a.t.Helper()
	rec := a.post("/register", map[string]string{"username": username, "email": email, "password": password})
	require.Equal(a.t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
}

func (a *testAPI) login(username, password string) string {
	a.t.Helper()
	rec := a.post("/login", map[string]string{"username": username, "password": password})
	require.Equal(a.t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	token, _ := decode(a.t, rec)["session_token"].(string)
	require.NotEmpty(a.t, token)
	return token
}

func TestRegister(t *testing.T) {
	api := newTestAPI(t, googleConfig())

	rec := api.post("/register", map[string]string{"username": "alice", "email": "alice@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"message": "User registered successfully"}, decode(t, rec))
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	t.Run("duplicate username", func(t *testing.T) {
		rec := api.post("/register", map[string]string{"username": "alice", "email": "other@example.com", "password": "secret1"})
		assertDetail(t, rec, http.StatusBadRequest, "User with this username or email already exists.")
	})

	t.Run("duplicate email", func(t *testing.T) {
		rec := api.post("/register", map[string]string{"username": "alice2", "email": "alice@example.com", "password": "secret1"})
		assertDetail(t, rec, http.StatusBadRequest, "User with this username or email already exists.")
	})
}

func TestRegister_Validation(t *testing.T) {
	api := newTestAPI(t, googleConfig())

	tests := []struct {
		name   string
		body   any
		detail string
	}{
		{"bad email", map[string]string{"username": "bob", "email": "not-an-email", "password": "secret1"}, "Email is not a valid address."},
		{"short password", map[string]string{"username": "bob", "email": "bob@example.com", "password": "12345"}, "Password must be at least 6 characters."},
		{"empty username", map[string]string{"username": "", "email": "bob@example.com", "password": "secret1"}, "Username is required."},
		{"missing field", map[string]string{"username": "bob", "email": "bob@example.com"}, "Field required: password"},
		{"malformed json", `{"username": "bob",`, "Request body must be a valid JSON object."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.post("/register", tt.body)
			assertDetail(t, rec, http.StatusUnprocessableEntity, tt.detail)
		})
	}
}

func TestLogin(t *testing.T) {
	api := newTestAPI(t, googleConfig())
	api.register("alice", "alice@example.com", "secret1")

	rec := api.post("/login", map[string]string{"username": "alice", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Login successful", body["message"])
	first, _ := body["session_token"].(string)
	assert.Len(t, first, 2*auth.TokenBytes)

	second := api.login("alice", "secret1")
	assert.NotEqual(t, first, second, "each login issues a fresh token")

	wrongPassword := api.post("/login", map[string]string{"username": "alice", "password": "wrong-password"})
	unknownUser := api.post("/login", map[string]string{"username": "mallory", "password": "secret1"})
	assertDetail(t, wrongPassword, http.StatusUnauthorized, "Invalid credentials")
	assertDetail(t, unknownUser, http.StatusUnauthorized, "Invalid credentials")
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())

	assertDetail(t, api.post("/login", `not json`), http.StatusUnprocessableEntity, "Request body must be a valid JSON object.")
}

func TestLogout(t *testing.T) {
	api := newTestAPI(t, googleConfig())
	api.register("alice", "alice@example.com", "secret1")
	token := api.login("alice", "secret1")

	rec := api.post("/logout", map[string]string{"session_token": token})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logout successful", decode(t, rec)["message"])

	again := api.post("/logout", map[string]string{"session_token": token})
	assertDetail(t, again, http.StatusBadRequest, "Invalid or missing session token")

	unknown := api.post("/logout", map[string]string{"session_token": "deadbeef"})
	assertDetail(t, unknown, http.StatusBadRequest, "Invalid or missing session token")
}

func TestPasswordResetFlow(t *testing.T) {
	api := newTestAPI(t, googleConfig())
	api.register("alice", "alice@example.com", "secret1")

	rec := api.post("/password-reset", map[string]string{"identifier": "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Password reset token generated successfully", body["message"])
	resetToken, _ := body["reset_token"].(string)
	require.True(t, strings.HasPrefix(resetToken, auth.ResetTokenPrefix), "got %q", resetToken)

	t.Run("reset token is not a session token", func(t *testing.T) {
		rec := api.post("/logout", map[string]string{"session_token": resetToken})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("short new password", func(t *testing.T) {
		rec := api.post("/password-update", map[string]string{"reset_token": resetToken, "new_password": "123"})
		assertDetail(t, rec, http.StatusUnprocessableEntity, "Password must be at least 6 characters.")
	})

	rec = api.post("/password-update", map[string]string{"reset_token": resetToken, "new_password": "newsecret"})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, "Password updated successfully", decode(t, rec)["message"])

	oldLogin := api.post("/login", map[string]string{"username": "alice", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, oldLogin.Code)
	api.login("alice", "newsecret")

	reuse := api.post("/password-update", map[string]string{"reset_token": resetToken, "new_password": "another1"})
	assertDetail(t, reuse, http.StatusBadRequest, "Invalid or expired reset token")
}

func TestPasswordReset_ByUsername(t *testing.T) {
	api := newTestAPI(t, googleConfig())
	api.register("alice", "alice@example.com", "secret1")

	rec := api.post("/password-reset", map[string]string{"identifier": "alice"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPasswordReset_UnknownUser(t *testing.T) {
	api := newTestAPI(t, googleConfig())

	rec := api.post("/password-reset", map[string]string{"identifier": "nobody@example.com"})
	assertDetail(t, rec, http.StatusNotFound, "User not found")
}

func TestPasswordUpdate_InvalidToken(t *testing.T) {
	api := newTestAPI(t, googleConfig())

	rec := api.post("/password-update", map[string]string{"reset_token": "reset:nope", "new_password": "newsecret"})
	assertDetail(t, rec, http.StatusBadRequest, "Invalid or expired reset token")
}

func TestGoogleLogin(t *testing.T) {
	api := newTestAPI(t, googleConfig())

	rec := api.do(http.MethodGet, "/google-login", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	location := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, identity.GoogleAuthURL+"?"), "got %q", location)
	assert.Contains(t, location, "client_id=client-123")
	assert.Contains(t, location, "response_type=code")
}

func TestGoogleLogin_Misconfigured(t *testing.T) {
	api := newTestAPI(t, config.GoogleConfig{})

	rec := api.do(http.MethodGet, "/google-login", nil)
	assertDetail(t, rec, http.StatusInternalServerError, "Failed to initiate Google OAuth login process.")
}

func TestGoogleCallback(t *testing.T) {
	api := newTestAPI(t, googleConfig())

	t.Run("missing code", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/google-callback", nil)
		assertDetail(t, rec, http.StatusBadRequest, "Authorization code is missing.")
	})

	t.Run("exchange failure", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/google-callback?code=bogus", nil)
		assertDetail(t, rec, http.StatusInternalServerError, "Failed to exchange code for tokens.")
	})

	t.Run("account not linked", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/google-callback?code="+identity.StubValidCode, nil)
		assertDetail(t, rec, http.StatusBadRequest, "User not found for the provided Google account.")
	})

	t.Run("linked account", func(t *testing.T) {
		api.register("testuser", identity.StubEmail, "secret1")

		rec := api.do(http.MethodGet, "/google-callback?code="+identity.StubValidCode, nil)
		require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
		body := decode(t, rec)
		assert.Equal(t, "Google OAuth login successful", body["message"])
		token, _ := body["session_token"].(string)

		session := api.do(http.MethodGet, "/session", nil, "Authorization", "Bearer "+token)
		require.Equal(t, http.StatusOK, session.Code)
		assert.Equal(t, "testuser", decode(t, session)["username"])
	})
}

func TestGoogleCallback_Misconfigured(t *testing.T) {
	api := newTestAPI(t, config.GoogleConfig{ClientID: "client-123"})

	rec := api.do(http.MethodGet, "/google-callback?code="+identity.StubValidCode, nil)
	assertDetail(t, rec, http.StatusInternalServerError, "Google OAuth configuration is incomplete.")
}

func TestSession(t *testing.T) {
	api := newTestAPI(t, googleConfig())
	api.register("alice", "alice@example.com", "secret1")
	token := api.login("alice", "secret1")

	rec := api.do(http.MethodGet, "/session", nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "alice@example.com", body["email"])
	assert.NotEmpty(t, body["user_id"])
	assert.NotEmpty(t, body["expires_at"])

	t.Run("missing header", func(t *testing.T) {
		rec := api.do(http.MethodGet, "/session", nil)
		assertDetail(t, rec, http.StatusUnauthorized, "Invalid or expired session token")
		assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("revoked token", func(t *testing.T) {
		require.Equal(t, http.StatusOK, api.post("/logout", map[string]string{"session_token": token}).Code)
		rec := api.do(http.MethodGet, "/session", nil, "Authorization", "Bearer "+token)
		assertDetail(t, rec, http.StatusUnauthorized, "Invalid or expired session token")
		assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	})
}

func TestRequestID(t *testing.T) {
	api := newTestAPI(t, googleConfig())

	rec := api.do(http.MethodGet, "/session", nil)
	assert.Len(t, rec.Header().Get(RequestIDHeader), 26, "minted ULID")

	rec = api.do(http.MethodGet, "/session", nil, RequestIDHeader, "client-supplied")
	assert.Equal(t, "client-supplied", rec.Header().Get(RequestIDHeader))
}

func TestMetricsRecorded(t *testing.T) {
	api := newTestAPI(t, googleConfig())
	api.register("alice", "alice@example.com", "secret1")
	api.post("/login", map[string]string{"username": "alice", "password": "wrong-password"})

	assert.InDelta(t, 1, testutil.ToFloat64(api.metrics.RequestsTotal.WithLabelValues("/register", http.MethodPost, "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(api.metrics.RequestsTotal.WithLabelValues("/login", http.MethodPost, "401")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(api.metrics.AuthEventsTotal.WithLabelValues(eventRegister, observability.OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(api.metrics.AuthEventsTotal.WithLabelValues(eventLogin, observability.OutcomeFailure)), 0)
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t, googleConfig())

	assertDetail(t, api.do(http.MethodGet, "/nope", nil), http.StatusNotFound, "Not Found")
	assertDetail(t, api.do(http.MethodGet, "/login", nil), http.StatusMethodNotAllowed, "Method Not Allowed")
}

func TestNewHandler_RequiresServices(t *testing.T) {
	_, err := NewHandler(Services{}, nil, nil)
	assert.Error(t, err)
}

func TestHandler_StoreFailureIsInternal(t *testing.T) {
	api := newTestAPI(t, googleConfig())
	api.register("alice", "alice@example.com", "secret1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"username":"alice","password":"secret1"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	assertDetail(t, rec, http.StatusInternalServerError, msgInternal)
}
