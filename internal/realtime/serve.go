package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/mcoot/bananaclick/internal/model"
)

// Transport is a message-oriented duplex connection
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, frame []byte) error
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
}

// Serve runs one connection from handshake to teardown. It returns when the
// peer goes away, the transport fails, or the controller shuts down. The
// error is the handshake failure, if any.
func (c *Controller) Serve(ctx context.Context, t Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.shutdownCtx, cancel)
	defer stop()

	sess := c.NewSession()

	hsCtx, hsCancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	frame, err := t.Read(hsCtx)
	hsCancel()
	if err == nil {
		_, err = c.Authenticate(sess, frame)
	}
	if err != nil {
		c.logger.Info("handshake refused", slog.String("conn_id", sess.ID()), slog.Any("error", err))
		sess.close()
		c.refuse(ctx, t, err)
		return err
	}

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		c.writePump(ctx, cancel, t, sess)
	}()

	if err := c.Connect(ctx, sess); err != nil {
		c.logger.Error("failed to activate session", slog.String("conn_id", sess.ID()), slog.Any("error", err))
		cancel()
	}

	for ctx.Err() == nil {
		frame, err := t.Read(ctx)
		if err != nil {
			break
		}
		c.HandleFrame(ctx, sess, frame)
	}

	c.Disconnect(context.WithoutCancel(ctx), sess)
	cancel()
	<-pumpDone
	_ = t.Close(websocket.StatusNormalClosure, "")
	return nil
}

// refuse tells the peer why the handshake failed and closes the transport
func (c *Controller) refuse(ctx context.Context, t Transport, cause error) {
	frame, err := EncodeFrame(model.EventConnectError, model.ConnectErrorPayload{
		Message: "authentication error: " + cause.Error(),
	})
	if err == nil {
		wctx, wcancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.WriteTimeout)
		_ = t.Write(wctx, frame)
		wcancel()
	}
	_ = t.Close(websocket.StatusPolicyViolation, "authentication failed")
}

// writePump drains the session queue and sends heartbeats. A failed write
// cancels the connection so the read loop ends too.
func (c *Controller) writePump(ctx context.Context, cancel context.CancelFunc, t Transport, sess *Session) {
	var tick <-chan time.Time
	if c.cfg.PingInterval > 0 {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case frame, ok := <-sess.Outbound():
			if !ok {
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
			err := t.Write(wctx, frame)
			wcancel()
			if err != nil {
				c.logger.Debug("write failed", slog.String("conn_id", sess.ID()), slog.Any("error", err))
				cancel()
				return
			}

		case <-tick:
			pctx, pcancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
			err := t.Ping(pctx)
			pcancel()
			if err != nil {
				c.logger.Debug("heartbeat failed", slog.String("conn_id", sess.ID()), slog.Any("error", err))
				cancel()
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
