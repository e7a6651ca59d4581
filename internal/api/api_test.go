package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/bananaclick/internal/api"
	"github.com/mcoot/bananaclick/internal/api/apierr"
	"github.com/mcoot/bananaclick/internal/api/response"
	"github.com/mcoot/bananaclick/internal/factory"
	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/services/auth"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	app := factory.NewTestApp()
	t.Cleanup(func() { _ = app.Close() })

	return &testServer{
		handler: api.NewRouter(app.RouterConfig(logger)),
		app:     app,
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[apierr.ErrorResponse](t, rr).Error.Code
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	health := decode[response.Health](t, rr)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 0, health.Connections)
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	// Register
	registerBody := map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "secret123",
	}
	rr := ts.request(http.MethodPost, "/api/auth/register", registerBody, "")
	require.Equal(t, http.StatusCreated, rr.Code)

	registerResp := decode[response.AuthResponse](t, rr)
	assert.NotEmpty(t, registerResp.Token)
	assert.Equal(t, "player", registerResp.User.Role)
	assert.Equal(t, int64(0), registerResp.User.BananaCount)

	// Login
	loginBody := map[string]string{
		"email":    "alice@example.com",
		"password": "secret123",
	}
	rr = ts.request(http.MethodPost, "/api/auth/login", loginBody, "")
	require.Equal(t, http.StatusOK, rr.Code)

	loginResp := decode[response.AuthResponse](t, rr)
	assert.Equal(t, registerResp.User.ID, loginResp.User.ID)
	assert.True(t, loginResp.User.IsActive)
	assert.NotContains(t, rr.Body.String(), "password")
}

func TestRegisterIgnoresRequestedRole(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]string{
		"username": "sneaky",
		"email":    "sneaky@example.com",
		"password": "secret123",
		"role":     "admin",
	}
	rr := ts.request(http.MethodPost, "/api/auth/register", body, "")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "player", decode[response.AuthResponse](t, rr).User.Role)
}

func TestRegisterErrors(t *testing.T) {
	ts := newTestServer(t)
	register(t, ts, "alice")

	rr := ts.request(http.MethodPost, "/api/auth/register", map[string]string{
		"username": "alice2", "email": "alice@example.com", "password": "secret123",
	}, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeEmailTaken, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/auth/register", map[string]string{
		"username": "bob", "email": "bob@example.com", "password": "pw",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.request(http.MethodPost, "/api/auth/register", map[string]string{"username": "bob"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoginFailures(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "alice")

	rr := ts.request(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeInvalidCredentials, errorCode(t, rr))

	_, err := ts.app.AccountService.SetBlocked(context.Background(), model.AccountID(alice.User.ID), true)
	require.NoError(t, err)

	rr = ts.request(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	}, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, apierr.CodeAccountBlocked, errorCode(t, rr))
}

func TestGetMeAndLogout(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "alice")

	rr := ts.request(http.MethodGet, "/api/users/me", nil, alice.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice", decode[response.User](t, rr).Username)

	rr = ts.request(http.MethodPost, "/api/auth/logout", nil, alice.Token)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, "/api/users/me", nil, alice.Token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/users/me", "/api/users/rankings", "/api/users", "/api/shop"} {
		rr := ts.request(http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}

	rr := ts.request(http.MethodGet, "/api/users/me", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestDeletedAccountTokenIsRejected(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "alice")

	require.NoError(t, ts.app.AccountService.Delete(context.Background(), model.AccountID(alice.User.ID)))

	rr := ts.request(http.MethodGet, "/api/users/me", nil, alice.Token)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "alice")

	checks := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/users"},
		{http.MethodGet, "/api/users/active"},
		{http.MethodPost, "/api/users"},
		{http.MethodGet, "/api/users/" + alice.User.ID},
		{http.MethodPut, "/api/users/" + alice.User.ID},
		{http.MethodDelete, "/api/users/" + alice.User.ID},
		{http.MethodPatch, "/api/users/" + alice.User.ID + "/block"},
	}
	for _, c := range checks {
		rr := ts.request(c.method, c.path, map[string]any{}, alice.Token)
		assert.Equal(t, http.StatusForbidden, rr.Code, "%s %s", c.method, c.path)
	}
}

func TestAdminManagesUsers(t *testing.T) {
	ts := newTestServer(t)
	adminToken := loginAdmin(t, ts)

	// Create
	rr := ts.request(http.MethodPost, "/api/users", map[string]string{
		"username": "bob", "email": "bob@example.com", "password": "secret123", "role": "player",
	}, adminToken)
	require.Equal(t, http.StatusCreated, rr.Code)
	bob := decode[response.UserMessage](t, rr).User

	// List
	rr = ts.request(http.MethodGet, "/api/users", nil, adminToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]response.User](t, rr), 2)

	// Update
	rr = ts.request(http.MethodPut, "/api/users/"+bob.ID, map[string]any{"username": "robert"}, adminToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "robert", decode[response.UserMessage](t, rr).User.Username)

	rr = ts.request(http.MethodPut, "/api/users/"+bob.ID, map[string]any{"role": "wizard"}, adminToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Block
	rr = ts.request(http.MethodPatch, "/api/users/"+bob.ID+"/block", map[string]any{"isBlocked": true}, adminToken)
	require.Equal(t, http.StatusOK, rr.Code)
	blocked := decode[response.UserMessage](t, rr)
	assert.True(t, blocked.User.IsBlocked)
	assert.Equal(t, "User blocked successfully", blocked.Message)

	rr = ts.request(http.MethodPatch, "/api/users/"+bob.ID+"/block", map[string]any{}, adminToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Active list holds the logged-in admin only
	rr = ts.request(http.MethodGet, "/api/users/active", nil, adminToken)
	require.Equal(t, http.StatusOK, rr.Code)
	active := decode[[]response.User](t, rr)
	require.Len(t, active, 1)
	assert.Equal(t, "admin", active[0].Role)

	// Delete
	rr = ts.request(http.MethodDelete, "/api/users/"+bob.ID, nil, adminToken)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = ts.request(http.MethodGet, "/api/users/"+bob.ID, nil, adminToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRankings(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "alice")
	bob := register(t, ts, "bob")

	_, err := ts.app.Storage.IncrementScore(context.Background(), model.AccountID(bob.User.ID), 7)
	require.NoError(t, err)

	rr := ts.request(http.MethodGet, "/api/users/rankings", nil, alice.Token)
	require.Equal(t, http.StatusOK, rr.Code)

	rankings := decode[[]model.RankingPayload](t, rr)
	require.Len(t, rankings, 2)
	assert.Equal(t, "bob", rankings[0].Username)
	assert.Equal(t, int64(7), rankings[0].BananaCount)
	assert.Equal(t, "alice", rankings[1].Username)
}

func TestShop(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "alice")

	rr := ts.request(http.MethodGet, "/api/shop", nil, alice.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	catalog := decode[response.Catalog](t, rr)
	require.Len(t, catalog.Upgrades, 3)
	assert.Equal(t, "click", catalog.Upgrades[0].Upgrade)
	assert.Equal(t, int64(10), catalog.Upgrades[0].Price)
	assert.False(t, catalog.Upgrades[0].Affordable)

	rr = ts.request(http.MethodPost, "/api/shop/click", nil, alice.Token)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeInsufficientFunds, errorCode(t, rr))

	_, err := ts.app.Storage.IncrementScore(context.Background(), model.AccountID(alice.User.ID), 12)
	require.NoError(t, err)

	rr = ts.request(http.MethodPost, "/api/shop/click", nil, alice.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	purchase := decode[response.Purchase](t, rr)
	assert.Equal(t, 2, purchase.Level)
	assert.Equal(t, int64(2), purchase.BananaCount)

	rr = ts.request(http.MethodPost, "/api/shop/rocket", nil, alice.Token)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// admins have no bananas to spend
	rr = ts.request(http.MethodGet, "/api/shop", nil, loginAdmin(t, ts))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

// Helper functions

func register(t *testing.T, ts *testServer, username string) response.AuthResponse {
	t.Helper()

	body := map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	}
	rr := ts.request(http.MethodPost, "/api/auth/register", body, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[response.AuthResponse](t, rr)
}

func loginAdmin(t *testing.T, ts *testServer) string {
	t.Helper()

	_, err := ts.app.AuthService.EnsureAdmin(context.Background(), auth.AdminConfig{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "adminpassword",
	})
	require.NoError(t, err)

	rr := ts.request(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "admin@example.com", "password": "adminpassword",
	}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	return decode[response.AuthResponse](t, rr).Token
}
