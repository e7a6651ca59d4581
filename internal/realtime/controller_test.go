package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/bananaclick/internal/dependencies/mocks"
	"github.com/mcoot/bananaclick/internal/dependencies/random"
	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/services/ledger"
	"github.com/mcoot/bananaclick/internal/services/presence"
	"github.com/mcoot/bananaclick/internal/services/ranking"
	"github.com/mcoot/bananaclick/internal/services/token"
	"github.com/mcoot/bananaclick/internal/storage/memory"
	"github.com/mcoot/bananaclick/internal/storage/storagetest"
	"github.com/mcoot/bananaclick/internal/testutil"
)

type ControllerSuite struct {
	suite.Suite
	ctx        context.Context
	clock      *mocks.MockClock
	storage    *memory.Storage
	registry   *presence.Registry
	codec      *token.Codec
	ledger     *spyLedger
	controller *Controller
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.storage = memory.New()
	s.registry = presence.NewRegistry(s.clock)

	key, err := token.GenerateKey()
	s.Require().NoError(err)
	s.codec, err = token.NewCodec(key, time.Hour, s.clock, random.New())
	s.Require().NoError(err)

	logger := testutil.NopLogger()
	s.ledger = &spyLedger{inner: ledger.New(s.storage, s.clock, ledger.DefaultConfig(), logger)}

	cfg := DefaultConfig()
	cfg.ClickBurst = 3
	cfg.PingInterval = 0
	s.controller = NewController(Deps{
		Auth:     s.codec,
		Storage:  s.storage,
		Presence: s.registry,
		Ledger:   s.ledger,
		Ranking:  ranking.New(s.storage, s.registry, s.clock),
		Clock:    s.clock,
	}, cfg, logger)
}

func (s *ControllerSuite) TearDownTest() {
	s.controller.Shutdown()
}

func (s *ControllerSuite) createAccount(id string, role model.Role, score int64, mutate func(*model.Account)) model.Identity {
	a := storagetest.NewAccount(id, "user-"+id, score)
	a.Role = role
	if mutate != nil {
		mutate(a)
	}
	s.Require().NoError(s.storage.CreateAccount(s.ctx, a))
	return a.Identity()
}

func (s *ControllerSuite) authFrame(identity model.Identity) []byte {
	tok, _, err := s.codec.Issue(identity)
	s.Require().NoError(err)
	frame, err := EncodeAuthFrame(tok)
	s.Require().NoError(err)
	return frame
}

// connect runs the handshake and activation for identity
func (s *ControllerSuite) connect(identity model.Identity) *Session {
	sess := s.controller.NewSession()
	_, err := s.controller.Authenticate(sess, s.authFrame(identity))
	s.Require().NoError(err)
	s.Require().Equal(StateAuthenticated, sess.State())
	s.Require().NoError(s.controller.Connect(s.ctx, sess))
	s.Require().Equal(StateActive, sess.State())
	return sess
}

func (s *ControllerSuite) score(id model.AccountID) int64 {
	a, err := s.storage.GetAccount(s.ctx, id)
	s.Require().NoError(err)
	return a.Score
}

func (s *ControllerSuite) TestConnectSendsInitialSnapshots() {
	admin := s.createAccount("admin", model.RoleAdmin, 0, nil)
	alice := s.createAccount("a", model.RolePlayer, 10, nil)

	adminSess := s.connect(admin)
	drain(s.T(), adminSess)

	aliceSess := s.connect(alice)
	got := drain(s.T(), aliceSess)
	s.Equal([]string{model.EventRankingsUpdated, model.EventBananaCountUpdated}, events(got))
	s.Equal(int64(10), decode[model.BananaCountPayload](s.T(), got[1]).BananaCount)

	adminFrames := drain(s.T(), adminSess)
	s.Equal(1, countEvent(adminFrames, model.EventActiveUsers))
	users := decode[[]model.PresencePayload](s.T(), lastEvent(s.T(), adminFrames, model.EventActiveUsers))
	s.Len(users, 2)

	s.True(s.registry.IsOnline("a"))
	a, err := s.storage.GetAccount(s.ctx, "a")
	s.Require().NoError(err)
	s.True(a.Active)
}

// A at 10 sends a delta of 5: A sees 15, rankings show 15 and online.
func (s *ControllerSuite) TestClickScenario() {
	alice := s.createAccount("a", model.RolePlayer, 10, func(a *model.Account) { a.Upgrades.ClickLevel = 5 })
	bob := s.createAccount("b", model.RolePlayer, 12, nil)

	aliceSess := s.connect(alice)
	bobSess := s.connect(bob)
	drain(s.T(), aliceSess)
	drain(s.T(), bobSess)

	s.controller.HandleClick(s.ctx, aliceSess, model.ClickEvent{Amount: 5})

	got := drain(s.T(), aliceSess)
	count := decode[model.BananaCountPayload](s.T(), lastEvent(s.T(), got, model.EventBananaCountUpdated))
	s.Equal(int64(15), count.BananaCount)

	rankings := decode[[]model.RankingPayload](s.T(), lastEvent(s.T(), got, model.EventRankingsUpdated))
	s.Require().Len(rankings, 2)
	s.Equal("a", rankings[0].ID)
	s.Equal(int64(15), rankings[0].BananaCount)
	s.True(rankings[0].Online)

	// everyone gets rankings, only the clicker gets the count
	bobFrames := drain(s.T(), bobSess)
	s.Equal([]string{model.EventRankingsUpdated}, events(bobFrames))

	s.Equal(int64(15), s.score("a"))
	entry, ok := s.registry.Get("a")
	s.Require().True(ok)
	s.Equal(int64(15), entry.CachedScore)
}

func (s *ControllerSuite) TestFinalScoreIsInitialPlusAppliedDeltas() {
	alice := s.createAccount("a", model.RolePlayer, 7, func(a *model.Account) { a.Upgrades.ClickLevel = 2 })
	sess := s.connect(alice)

	for i := 0; i < 3; i++ {
		s.controller.HandleClick(s.ctx, sess, model.ClickEvent{Amount: 2})
		s.clock.Advance(time.Second)
	}
	s.Equal(int64(7+3*2), s.score("a"))
}

func (s *ControllerSuite) TestAdminClickIsIgnored() {
	admin := s.createAccount("admin", model.RoleAdmin, 0, nil)
	alice := s.createAccount("a", model.RolePlayer, 0, nil)

	aliceSess := s.connect(alice)
	adminSess := s.connect(admin)
	drain(s.T(), aliceSess)
	drain(s.T(), adminSess)

	s.controller.HandleClick(s.ctx, adminSess, model.ClickEvent{Amount: 1})

	s.Equal(int64(0), s.ledger.calls.Load())
	s.Empty(drain(s.T(), adminSess))
	s.Empty(drain(s.T(), aliceSess))
	s.Equal(int64(0), s.score("admin"))
}

func (s *ControllerSuite) TestBlockedAccountNeverChanges() {
	alice := s.createAccount("a", model.RolePlayer, 10, func(a *model.Account) { a.Blocked = true })

	sess := s.connect(alice)
	got := drain(s.T(), sess)
	s.True(decode[model.AccountStatusPayload](s.T(), lastEvent(s.T(), got, model.EventAccountStatus)).Blocked)

	s.controller.HandleClick(s.ctx, sess, model.ClickEvent{Amount: 1})

	got = drain(s.T(), sess)
	s.Equal([]string{model.EventAccountStatus}, events(got))
	s.Equal(int64(10), s.score("a"))
}

func (s *ControllerSuite) TestImplausibleClaimIsDropped() {
	alice := s.createAccount("a", model.RolePlayer, 10, nil)
	sess := s.connect(alice)
	drain(s.T(), sess)

	s.controller.HandleClick(s.ctx, sess, model.ClickEvent{Amount: 1_000_000})

	s.Empty(drain(s.T(), sess))
	s.Equal(int64(10), s.score("a"))
}

func (s *ControllerSuite) TestClicksAreRateLimited() {
	alice := s.createAccount("a", model.RolePlayer, 0, nil)
	sess := s.connect(alice)

	// burst of 3 with the clock frozen
	for i := 0; i < 5; i++ {
		s.controller.HandleClick(s.ctx, sess, model.ClickEvent{Amount: 1})
	}
	s.Equal(int64(3), s.score("a"))
	s.Equal(int64(3), s.ledger.calls.Load())

	s.clock.Advance(time.Second)
	s.controller.HandleClick(s.ctx, sess, model.ClickEvent{Amount: 1})
	s.Equal(int64(4), s.score("a"))
}

func (s *ControllerSuite) TestDisconnectRemovesPresenceAndNotifiesAdminsOnce() {
	admin := s.createAccount("admin", model.RoleAdmin, 0, nil)
	alice := s.createAccount("a", model.RolePlayer, 0, nil)
	bob := s.createAccount("b", model.RolePlayer, 0, nil)

	adminSess := s.connect(admin)
	aliceSess := s.connect(alice)
	bobSess := s.connect(bob)
	drain(s.T(), adminSess)
	drain(s.T(), bobSess)

	s.controller.Disconnect(s.ctx, aliceSess)

	s.False(s.registry.IsOnline("a"))
	s.Equal(StateDisconnected, aliceSess.State())

	adminFrames := drain(s.T(), adminSess)
	s.Equal([]string{model.EventActiveUsers}, events(adminFrames))
	users := decode[[]model.PresencePayload](s.T(), adminFrames[0])
	s.Len(users, 2)

	s.Empty(drain(s.T(), bobSess))

	a, err := s.storage.GetAccount(s.ctx, "a")
	s.Require().NoError(err)
	s.False(a.Active)

	// a second disconnect is a no-op
	s.controller.Disconnect(s.ctx, aliceSess)
	s.Empty(drain(s.T(), adminSess))
}

func (s *ControllerSuite) TestNewerConnectionSurvivesOlderDisconnect() {
	alice := s.createAccount("a", model.RolePlayer, 0, nil)

	first := s.connect(alice)
	second := s.connect(alice)

	s.controller.Disconnect(s.ctx, first)

	entry, ok := s.registry.Get("a")
	s.Require().True(ok)
	s.Equal(second.ID(), entry.ConnID)

	a, err := s.storage.GetAccount(s.ctx, "a")
	s.Require().NoError(err)
	s.True(a.Active)
}

func (s *ControllerSuite) TestMissingAccountIsTolerated() {
	ghost := model.Identity{ID: "ghost", Username: "ghost", Role: model.RolePlayer}

	sess := s.connect(ghost)
	got := drain(s.T(), sess)
	count := decode[model.BananaCountPayload](s.T(), lastEvent(s.T(), got, model.EventBananaCountUpdated))
	s.Equal(int64(0), count.BananaCount)
	s.True(s.registry.IsOnline("ghost"))
}

func (s *ControllerSuite) TestAuthenticateRefusesBadTokens() {
	alice := s.createAccount("a", model.RolePlayer, 0, nil)
	frame := s.authFrame(alice)

	s.clock.Advance(time.Hour)
	sess := s.controller.NewSession()
	_, err := s.controller.Authenticate(sess, frame)
	s.ErrorIs(err, token.ErrInvalidToken)
	s.Equal(StateConnecting, sess.State())

	empty, err := EncodeAuthFrame("")
	s.Require().NoError(err)
	_, err = s.controller.Authenticate(sess, empty)
	s.ErrorIs(err, token.ErrMissingToken)

	_, err = s.controller.Authenticate(sess, []byte("not json"))
	s.ErrorIs(err, ErrBadHandshake)

	s.Equal(0, s.registry.Len())
	s.Equal(0, s.controller.Hub().Len())
}

func (s *ControllerSuite) TestNotifyAccountStatus() {
	alice := s.createAccount("a", model.RolePlayer, 0, nil)
	sess := s.connect(alice)
	drain(s.T(), sess)

	s.True(s.controller.NotifyAccountStatus("a", true))
	got := drain(s.T(), sess)
	s.Require().Len(got, 1)
	s.True(decode[model.AccountStatusPayload](s.T(), got[0]).Blocked)

	s.False(s.controller.NotifyAccountStatus("nobody", true))
}

func (s *ControllerSuite) TestNotifyScore() {
	alice := s.createAccount("a", model.RolePlayer, 50, nil)
	sess := s.connect(alice)
	drain(s.T(), sess)

	s.True(s.controller.NotifyScore("a", 40))
	got := drain(s.T(), sess)
	s.Require().Len(got, 1)
	s.Equal(int64(40), decode[model.BananaCountPayload](s.T(), got[0]).BananaCount)

	entry, ok := s.registry.Get("a")
	s.Require().True(ok)
	s.Equal(int64(40), entry.CachedScore)

	s.False(s.controller.NotifyScore("nobody", 1))
}

func (s *ControllerSuite) TestRefreshBroadcastsBothSnapshots() {
	admin := s.createAccount("admin", model.RoleAdmin, 0, nil)
	alice := s.createAccount("a", model.RolePlayer, 0, nil)
	adminSess := s.connect(admin)
	aliceSess := s.connect(alice)
	drain(s.T(), adminSess)
	drain(s.T(), aliceSess)

	s.controller.Refresh(s.ctx)

	s.ElementsMatch([]string{model.EventRankingsUpdated, model.EventActiveUsers}, events(drain(s.T(), adminSess)))
	s.Equal([]string{model.EventRankingsUpdated}, events(drain(s.T(), aliceSess)))
}

func (s *ControllerSuite) TestHandleFrame() {
	alice := s.createAccount("a", model.RolePlayer, 0, nil)
	sess := s.connect(alice)
	drain(s.T(), sess)

	frame, err := EncodeFrame(model.EventBananaClick, model.ClickEvent{Amount: 1})
	s.Require().NoError(err)
	s.controller.HandleFrame(s.ctx, sess, frame)
	s.controller.HandleFrame(s.ctx, sess, []byte(`{"event":"something-else"}`))
	s.controller.HandleFrame(s.ctx, sess, []byte(`garbage`))

	s.Equal(int64(1), s.score("a"))
}

// Serve

func (s *ControllerSuite) serve(t *fakeTransport) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- s.controller.Serve(s.ctx, t)
	}()
	return done
}

func (s *ControllerSuite) TestServeRefusesExpiredTokenBeforeRegistration() {
	alice := s.createAccount("a", model.RolePlayer, 0, nil)
	frame := s.authFrame(alice)
	s.clock.Advance(2 * time.Hour)

	t := newFakeTransport()
	t.in <- frame
	done := s.serve(t)

	refusal := t.next(s.T(), model.EventConnectError)
	s.Contains(decode[model.ConnectErrorPayload](s.T(), refusal).Message, "authentication error")

	select {
	case err := <-done:
		s.ErrorIs(err, token.ErrInvalidToken)
	case <-time.After(2 * time.Second):
		s.FailNow("serve did not return")
	}

	code, closed := t.code()
	s.True(closed)
	s.Equal(websocket.StatusPolicyViolation, code)
	s.Equal(0, s.registry.Len())
	s.Equal(0, s.controller.Hub().Len())

	a, err := s.storage.GetAccount(s.ctx, "a")
	s.Require().NoError(err)
	s.False(a.Active)
}

func (s *ControllerSuite) TestServeFullLifecycle() {
	alice := s.createAccount("a", model.RolePlayer, 10, func(a *model.Account) { a.Upgrades.ClickLevel = 5 })

	t := newFakeTransport()
	t.in <- s.authFrame(alice)
	done := s.serve(t)

	initial := t.next(s.T(), model.EventBananaCountUpdated)
	s.Equal(int64(10), decode[model.BananaCountPayload](s.T(), initial).BananaCount)

	click, err := EncodeFrame(model.EventBananaClick, model.ClickEvent{Amount: 5})
	s.Require().NoError(err)
	t.in <- click

	updated := t.next(s.T(), model.EventBananaCountUpdated)
	s.Equal(int64(15), decode[model.BananaCountPayload](s.T(), updated).BananaCount)

	t.hangUp()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(2 * time.Second):
		s.FailNow("serve did not return")
	}

	s.False(s.registry.IsOnline("a"))
	s.Equal(0, s.controller.Hub().Len())
	s.Equal(int64(15), s.score("a"))
}

func (s *ControllerSuite) TestShutdownEndsServe() {
	alice := s.createAccount("a", model.RolePlayer, 0, nil)

	t := newFakeTransport()
	t.in <- s.authFrame(alice)
	done := s.serve(t)
	t.next(s.T(), model.EventBananaCountUpdated)

	s.controller.Shutdown()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.FailNow("serve did not return")
	}
	s.False(s.registry.IsOnline("a"))
}
