package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/realtime"
)

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws"},
		{"http://localhost:8080/", "ws://localhost:8080/ws"},
		{"https://bananas.example.com", "wss://bananas.example.com/ws"},
	}
	for _, tt := range tests {
		c := &Config{ServerURL: tt.server}
		assert.Equal(t, tt.want, c.WebSocketURL(), tt.server)
	}
}

func TestTokenFileRoundTrip(t *testing.T) {
	c := &Config{TokenFile: filepath.Join(t.TempDir(), "nested", "token")}

	require.NoError(t, c.LoadToken())
	assert.Empty(t, c.Token)

	require.NoError(t, c.SaveToken("abc123"))

	loaded := &Config{TokenFile: c.TokenFile}
	require.NoError(t, loaded.LoadToken())
	assert.Equal(t, "abc123", loaded.Token)

	require.NoError(t, loaded.ClearToken())
	assert.Empty(t, loaded.Token)
	again := &Config{TokenFile: c.TokenFile}
	require.NoError(t, again.LoadToken())
	assert.Empty(t, again.Token)

	// clearing twice is fine
	require.NoError(t, loaded.ClearToken())
}

func TestClientSendsBearerAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/me", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u1","username":"alice","bananaCount":42}`))
	}))
	defer srv.Close()

	var trace bytes.Buffer
	c := NewClient(srv.URL+"/", "tok", &trace)

	var u User
	require.NoError(t, c.Get("/users/me", &u))
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, int64(42), u.BananaCount)
	assert.Contains(t, trace.String(), "GET "+srv.URL+"/api/users/me -> 200")
}

func TestClientReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"INSUFFICIENT_FUNDS","message":"Not enough bananas"}}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "", nil).Post("/shop/click", nil, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "INSUFFICIENT_FUNDS", apiErr.Code)
	assert.Equal(t, "Not enough bananas (INSUFFICIENT_FUNDS)", err.Error())
}

func TestClientNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "", nil).Get("/health", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func envelope(t *testing.T, event string, payload any) realtime.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return realtime.Envelope{Event: event, Data: data}
}

func TestSummarizeEvent(t *testing.T) {
	tests := []struct {
		name string
		env  realtime.Envelope
		want string
	}{
		{
			name: "banana count",
			env:  envelope(t, model.EventBananaCountUpdated, model.BananaCountPayload{BananaCount: 7}),
			want: "7 bananas",
		},
		{
			name: "rankings keep the top three",
			env: envelope(t, model.EventRankingsUpdated, []RankingEntry{
				{Username: "a", BananaCount: 9},
				{Username: "b", BananaCount: 5},
				{Username: "c", BananaCount: 3},
				{Username: "d", BananaCount: 1},
			}),
			want: "1. a (9), 2. b (5), 3. c (3)",
		},
		{
			name: "active users",
			env:  envelope(t, model.EventActiveUsers, []PresenceEntry{{Username: "a"}, {Username: "b"}}),
			want: "2 online: a, b",
		},
		{
			name: "blocked",
			env:  envelope(t, model.EventAccountStatus, model.AccountStatusPayload{Blocked: true}),
			want: "account blocked",
		},
		{
			name: "connect error",
			env:  envelope(t, model.EventConnectError, model.ConnectErrorPayload{Message: "Authentication failed"}),
			want: "Authentication failed",
		},
		{
			name: "unknown event falls back to raw data",
			env:  realtime.Envelope{Event: "mystery", Data: json.RawMessage(`{"x":1}`)},
			want: `{"x":1}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, summarizeEvent(tt.env))
		})
	}
}
