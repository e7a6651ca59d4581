package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/coder/websocket"
)

// wsTransport adapts a websocket connection to Transport
type wsTransport struct {
	conn *websocket.Conn
}

// NewWSTransport wraps an accepted or dialed websocket connection
func NewWSTransport(conn *websocket.Conn) Transport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	return data, err
}

func (t *wsTransport) Write(ctx context.Context, frame []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, frame)
}

func (t *wsTransport) Ping(ctx context.Context) error {
	return t.conn.Ping(ctx)
}

func (t *wsTransport) Close(code websocket.StatusCode, reason string) error {
	return t.conn.Close(code, reason)
}

// ServeWS upgrades GET /ws and serves the connection until it ends
func (c *Controller) ServeWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{
		OriginPatterns: c.cfg.AllowedOrigins,
	}
	if slices.Contains(c.cfg.AllowedOrigins, "*") {
		opts.InsecureSkipVerify = true
	}

	// the server's read/write timeouts would otherwise cut long-lived sockets
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		c.logger.Warn("websocket accept error",
			slog.String("remote_addr", r.RemoteAddr),
			slog.Any("error", err))
		return
	}
	conn.SetReadLimit(c.cfg.ReadLimit)

	_ = c.Serve(r.Context(), NewWSTransport(conn))
}
