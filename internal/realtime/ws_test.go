package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/bananaclick/internal/model"
)

func readEvent(ctx context.Context, t *testing.T, conn *websocket.Conn, event string) Envelope {
	t.Helper()
	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Event == event {
			return env
		}
	}
}

func (s *ControllerSuite) TestServeWSRoundTrip() {
	alice := s.createAccount("a", model.RolePlayer, 3, nil)
	srv := httptest.NewServer(http.HandlerFunc(s.controller.ServeWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	s.Require().NoError(err)
	defer func() { _ = conn.CloseNow() }()

	s.Require().NoError(conn.Write(ctx, websocket.MessageText, s.authFrame(alice)))
	initial := readEvent(ctx, s.T(), conn, model.EventBananaCountUpdated)
	s.Equal(int64(3), decode[model.BananaCountPayload](s.T(), initial).BananaCount)

	click, err := EncodeFrame(model.EventBananaClick, model.ClickEvent{Amount: 1})
	s.Require().NoError(err)
	s.Require().NoError(conn.Write(ctx, websocket.MessageText, click))

	updated := readEvent(ctx, s.T(), conn, model.EventBananaCountUpdated)
	s.Equal(int64(4), decode[model.BananaCountPayload](s.T(), updated).BananaCount)

	s.Require().NoError(conn.Close(websocket.StatusNormalClosure, ""))
	s.Eventually(func() bool { return !s.registry.IsOnline("a") }, 2*time.Second, 10*time.Millisecond)
}

func (s *ControllerSuite) TestServeWSRejectsBadToken() {
	srv := httptest.NewServer(http.HandlerFunc(s.controller.ServeWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	s.Require().NoError(err)
	defer func() { _ = conn.CloseNow() }()

	frame, err := EncodeAuthFrame("garbage")
	s.Require().NoError(err)
	s.Require().NoError(conn.Write(ctx, websocket.MessageText, frame))

	readEvent(ctx, s.T(), conn, model.EventConnectError)
	_, _, err = conn.Read(ctx)
	s.Equal(websocket.StatusPolicyViolation, websocket.CloseStatus(err))
	s.Equal(0, s.registry.Len())
}
