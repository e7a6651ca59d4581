// Package realtime is the live score channel: it authenticates websocket
// connections, applies banana-click events and fans out leaderboard and
// presence snapshots.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/mcoot/bananaclick/internal/dependencies/clock"
	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/services/presence"
	"github.com/mcoot/bananaclick/internal/storage"
)

// Authenticator verifies a bearer token
type Authenticator interface {
	Authenticate(token string) (model.Identity, error)
}

// ScoreLedger applies click events
type ScoreLedger interface {
	ApplyClick(ctx context.Context, id model.AccountID, event model.ClickEvent) (int64, int64, error)
}

// Ranker computes leaderboard snapshots
type Ranker interface {
	ComputeTop(ctx context.Context, n int) (model.RankingSnapshot, error)
}

// Controller drives every connection through its lifecycle. It holds no
// per-connection state of its own; that lives in Session.
type Controller struct {
	auth       Authenticator
	storage    storage.Storage
	presence   *presence.Registry
	ledger     ScoreLedger
	ranking    Ranker
	hub        *Hub
	dispatcher *Dispatcher
	clock      clock.Clock
	cfg        Config
	logger     *slog.Logger

	nextConn atomic.Uint64

	// closing every live connection on shutdown
	shutdownCtx context.Context
	shutdown    context.CancelFunc
}

// Deps groups the collaborators a Controller needs
type Deps struct {
	Auth     Authenticator
	Storage  storage.Storage
	Presence *presence.Registry
	Ledger   ScoreLedger
	Ranking  Ranker
	Hub      *Hub
	Clock    clock.Clock
}

// NewController creates a new Controller
func NewController(deps Deps, cfg Config, logger *slog.Logger) *Controller {
	hub := deps.Hub
	if hub == nil {
		hub = NewHub()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		auth:        deps.Auth,
		storage:     deps.Storage,
		presence:    deps.Presence,
		ledger:      deps.Ledger,
		ranking:     deps.Ranking,
		hub:         hub,
		dispatcher:  NewDispatcher(hub, logger),
		clock:       deps.Clock,
		cfg:         cfg.withDefaults(),
		logger:      logger.With(slog.String("component", "realtime")),
		shutdownCtx: ctx,
		shutdown:    cancel,
	}
}

// Hub returns the controller's connection set
func (c *Controller) Hub() *Hub {
	return c.hub
}

// Shutdown ends every connection served by this controller
func (c *Controller) Shutdown() {
	c.shutdown()
}

// NewSession allocates a session for an incoming connection
func (c *Controller) NewSession() *Session {
	id := fmt.Sprintf("c%d", c.nextConn.Add(1))
	return NewSession(id, c.cfg, c.clock.Now())
}

// Authenticate checks a handshake frame and binds the identity to sess.
// On failure nothing is registered anywhere.
func (c *Controller) Authenticate(sess *Session, frame []byte) (model.Identity, error) {
	token, err := parseAuthFrame(frame)
	if err != nil {
		return model.Identity{}, err
	}
	identity, err := c.auth.Authenticate(token)
	if err != nil {
		return model.Identity{}, err
	}
	if err := sess.Authenticate(identity); err != nil {
		return model.Identity{}, err
	}
	return identity, nil
}

// Connect activates an authenticated session: it joins the hub, registers
// presence, marks the account active and pushes the initial snapshots.
func (c *Controller) Connect(ctx context.Context, sess *Session) error {
	if err := sess.activate(); err != nil {
		return err
	}
	identity := sess.Identity()
	logger := c.logger.With(slog.String("conn_id", sess.ID()), slog.String("account_id", string(identity.ID)))

	var (
		score   int64
		blocked bool
	)
	account, err := c.storage.GetAccount(ctx, identity.ID)
	switch {
	case err == nil:
		score = account.Score
		blocked = account.Blocked
	case errors.Is(err, model.ErrAccountNotFound):
		logger.Warn("connected identity has no account")
	default:
		logger.Error("failed to load account", slog.Any("error", err))
	}

	c.hub.Add(sess)
	c.presence.Register(identity, sess.ID(), score)
	if err := c.storage.SetActive(ctx, identity.ID, true, c.clock.Now()); err != nil && !errors.Is(err, model.ErrAccountNotFound) {
		logger.Error("failed to mark account active", slog.Any("error", err))
	}

	logger.Info("client connected",
		slog.String("role", string(identity.Role)),
		slog.Int("connections", c.hub.Len()))

	c.broadcastPresence()
	c.broadcastRankings(ctx)
	c.dispatcher.Unicast(sess, model.EventBananaCountUpdated, model.BananaCountPayload{BananaCount: score})
	if blocked {
		c.dispatcher.Unicast(sess, model.EventAccountStatus, model.AccountStatusPayload{Blocked: true})
	}
	return nil
}

// HandleFrame decodes one inbound frame and dispatches it
func (c *Controller) HandleFrame(ctx context.Context, sess *Session, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.logger.Warn("malformed frame", slog.String("conn_id", sess.ID()), slog.Any("error", err))
		return
	}

	switch env.Event {
	case model.EventBananaClick:
		var event model.ClickEvent
		if err := json.Unmarshal(env.Data, &event); err != nil {
			c.logger.Warn("malformed click", slog.String("conn_id", sess.ID()), slog.Any("error", err))
			return
		}
		c.HandleClick(ctx, sess, event)
	default:
		c.logger.Debug("unknown event", slog.String("conn_id", sess.ID()), slog.String("event", env.Event))
	}
}

// HandleClick applies one banana-click. Only players earn bananas; events
// from any other role are ignored without touching the ledger.
func (c *Controller) HandleClick(ctx context.Context, sess *Session, event model.ClickEvent) {
	if sess.State() != StateActive {
		return
	}
	identity := sess.Identity()
	if identity.Role != model.RolePlayer {
		return
	}

	source := event.Source
	if source == "" {
		source = model.SourceClick
	}
	if !sess.allow(source, c.clock.Now()) {
		c.logger.Debug("click rate limited",
			slog.String("conn_id", sess.ID()),
			slog.String("source", string(source)))
		return
	}

	total, applied, err := c.ledger.ApplyClick(ctx, identity.ID, event)
	if err != nil {
		if errors.Is(err, model.ErrAccountBlocked) {
			c.dispatcher.Unicast(sess, model.EventAccountStatus, model.AccountStatusPayload{Blocked: true})
			return
		}
		c.logger.Warn("click rejected",
			slog.String("conn_id", sess.ID()),
			slog.String("account_id", string(identity.ID)),
			slog.Any("error", err))
		return
	}

	c.logger.Debug("click applied",
		slog.String("account_id", string(identity.ID)),
		slog.Int64("applied", applied),
		slog.Int64("total", total))

	c.presence.UpdateScore(identity.ID, total)
	c.dispatcher.Unicast(sess, model.EventBananaCountUpdated, model.BananaCountPayload{BananaCount: total})
	c.broadcastRankings(ctx)
	c.broadcastPresence()
}

// Disconnect tears a session down. It is safe to call more than once; only
// the first call after activation has any effect on presence.
func (c *Controller) Disconnect(ctx context.Context, sess *Session) {
	prev := sess.close()
	c.hub.Remove(sess)
	if prev != StateActive {
		return
	}

	identity := sess.Identity()
	logger := c.logger.With(slog.String("conn_id", sess.ID()), slog.String("account_id", string(identity.ID)))

	// A newer connection for the same identity keeps the entry and the
	// account stays active.
	if c.presence.Release(identity.ID, sess.ID()) {
		err := c.storage.SetActive(ctx, identity.ID, false, c.clock.Now())
		if err != nil && !errors.Is(err, model.ErrAccountNotFound) {
			logger.Error("failed to mark account inactive", slog.Any("error", err))
		}
	}

	logger.Info("client disconnected", slog.Int("connections", c.hub.Len()))
	c.broadcastPresence()
}

// Refresh recomputes and broadcasts both snapshots
func (c *Controller) Refresh(ctx context.Context) {
	c.broadcastRankings(ctx)
	c.broadcastPresence()
}

// NotifyAccountStatus tells the account's live connection, if any, that it
// was blocked or unblocked
func (c *Controller) NotifyAccountStatus(id model.AccountID, blocked bool) bool {
	entry, ok := c.presence.Get(id)
	if !ok {
		return false
	}
	conn, ok := c.hub.Get(entry.ConnID)
	if !ok {
		return false
	}
	return c.dispatcher.Unicast(conn, model.EventAccountStatus, model.AccountStatusPayload{Blocked: blocked})
}

// NotifyScore pushes a score changed outside the click path, such as a shop
// purchase, to the account's live connection
func (c *Controller) NotifyScore(id model.AccountID, total int64) bool {
	c.presence.UpdateScore(id, total)
	entry, ok := c.presence.Get(id)
	if !ok {
		return false
	}
	conn, ok := c.hub.Get(entry.ConnID)
	if !ok {
		return false
	}
	return c.dispatcher.Unicast(conn, model.EventBananaCountUpdated, model.BananaCountPayload{BananaCount: total})
}

func (c *Controller) broadcastRankings(ctx context.Context) {
	snapshot, err := c.ranking.ComputeTop(ctx, c.cfg.TopN)
	if err != nil {
		c.logger.Error("failed to compute rankings", slog.Any("error", err))
		return
	}
	c.dispatcher.NotifyAll(model.EventRankingsUpdated, model.RankingPayloads(snapshot))
}

func (c *Controller) broadcastPresence() {
	c.dispatcher.NotifyRole(model.RoleAdmin, model.EventActiveUsers, model.PresencePayloads(c.presence.ListOnline()))
}
