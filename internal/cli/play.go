package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/realtime"
)

func newPlayCmd() *cobra.Command {
	var interval time.Duration
	var count int
	var factory bool

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Connect and click bananas",
		Long: `Open a realtime connection, send banana clicks at a fixed interval and
print every event the server pushes back.

Clicks stop after --count clicks (0 clicks forever). Press Ctrl+C to disconnect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return errors.New("--interval must be positive")
			}
			source := model.SourceClick
			if factory {
				source = model.SourceFactory
			}
			return play(cmd.Context(), interval, count, source)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 250*time.Millisecond, "Delay between clicks")
	cmd.Flags().IntVar(&count, "count", 0, "Number of clicks to send (0 for unlimited)")
	cmd.Flags().BoolVar(&factory, "factory", false, "Send factory ticks instead of manual clicks")

	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream realtime events without clicking",
		Long: `Open a realtime connection and print events as they arrive.

Events include:
  - banana-count-updated: your banana total changed
  - rankings-updated: the leaderboard changed
  - active-users: who is online (admins only)
  - account-status: your account was blocked or unblocked

Press Ctrl+C to disconnect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			conn, err := dialRealtime(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = conn.CloseNow() }()

			return streamRealtime(ctx, conn)
		},
	}
}

func play(parent context.Context, interval time.Duration, count int, source model.ClickSource) error {
	ctx, stop := signalContext(parent)
	defer stop()

	conn, err := dialRealtime(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.CloseNow() }()

	frame, err := realtime.EncodeFrame(model.EventBananaClick, model.ClickEvent{Source: source})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	gctx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		// the server hanging up stops the clicker too
		defer cancel()
		return streamRealtime(gctx, conn)
	})
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for sent := 0; count == 0 || sent < count; sent++ {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
			if err := conn.Write(gctx, websocket.MessageText, frame); err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("sending click: %w", err)
			}
		}
		// let the last update arrive before hanging up
		select {
		case <-gctx.Done():
			return nil
		case <-time.After(interval):
		}
		return conn.Close(websocket.StatusNormalClosure, "")
	})
	return g.Wait()
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// dialRealtime connects to the websocket endpoint and sends the auth frame
func dialRealtime(ctx context.Context) (*websocket.Conn, error) {
	if cfg.Token == "" {
		return nil, errors.New("not logged in: run 'clickctl auth login' first")
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, cfg.WebSocketURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}

	auth, err := realtime.EncodeAuthFrame(cfg.Token)
	if err != nil {
		_ = conn.CloseNow()
		return nil, err
	}
	if err := conn.Write(dialCtx, websocket.MessageText, auth); err != nil {
		_ = conn.CloseNow()
		return nil, fmt.Errorf("sending auth frame: %w", err)
	}

	if cfg.Verbose {
		fmt.Fprintf(os.Stderr, "Connected to %s\n", cfg.WebSocketURL())
	}
	return conn, nil
}

// RealtimeEvent is one pushed event as printed in JSON output
type RealtimeEvent struct {
	Time  time.Time       `json:"time"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// streamRealtime prints events until the connection closes or ctx is done
func streamRealtime(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				if cfg.Output != "json" {
					fmt.Println("Disconnected")
				}
				return nil
			case websocket.StatusPolicyViolation:
				return errors.New("server refused the connection")
			}
			return fmt.Errorf("stream error: %w", err)
		}

		var env realtime.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("malformed frame: %w", err)
		}
		printRealtimeEvent(env)

		if env.Event == model.EventConnectError {
			var p model.ConnectErrorPayload
			_ = json.Unmarshal(env.Data, &p)
			return fmt.Errorf("connection refused: %s", p.Message)
		}
	}
}

func printRealtimeEvent(env realtime.Envelope) {
	now := time.Now()

	if cfg.Output == "json" {
		line, _ := json.Marshal(RealtimeEvent{Time: now, Event: env.Event, Data: env.Data})
		fmt.Println(string(line))
		return
	}

	fmt.Printf("[%s] %s: %s\n", now.Format(time.TimeOnly), env.Event, summarizeEvent(env))
}

func summarizeEvent(env realtime.Envelope) string {
	switch env.Event {
	case model.EventBananaCountUpdated:
		var p model.BananaCountPayload
		if json.Unmarshal(env.Data, &p) == nil {
			return fmt.Sprintf("%d bananas", p.BananaCount)
		}
	case model.EventRankingsUpdated:
		var p []RankingEntry
		if json.Unmarshal(env.Data, &p) == nil {
			parts := make([]string, 0, min(len(p), 3))
			for i, e := range p[:min(len(p), 3)] {
				parts = append(parts, fmt.Sprintf("%d. %s (%d)", i+1, e.Username, e.BananaCount))
			}
			return strings.Join(parts, ", ")
		}
	case model.EventActiveUsers:
		var p []PresenceEntry
		if json.Unmarshal(env.Data, &p) == nil {
			names := make([]string, len(p))
			for i, e := range p {
				names[i] = e.Username
			}
			return fmt.Sprintf("%d online: %s", len(p), strings.Join(names, ", "))
		}
	case model.EventAccountStatus:
		var p model.AccountStatusPayload
		if json.Unmarshal(env.Data, &p) == nil {
			if p.Blocked {
				return "account blocked"
			}
			return "account unblocked"
		}
	case model.EventConnectError:
		var p model.ConnectErrorPayload
		if json.Unmarshal(env.Data, &p) == nil {
			return p.Message
		}
	}
	display := strings.ReplaceAll(string(env.Data), "\n", " ")
	if len(display) > 100 {
		display = display[:100] + "..."
	}
	return display
}
