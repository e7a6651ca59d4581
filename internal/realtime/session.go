package realtime

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mcoot/bananaclick/internal/model"
)

// ErrInvalidTransition is returned when a session is moved out of order
var ErrInvalidTransition = errors.New("invalid session state transition")

// State is the lifecycle position of a connection
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Session is the server side of one connection. It owns the outbound queue
// drained by the transport's write pump.
type Session struct {
	id          string
	connectedAt time.Time

	mu       sync.Mutex
	state    State
	identity model.Identity
	send     chan []byte

	clicks  *rate.Limiter
	factory *rate.Limiter
}

// Ensure Session implements Conn
var _ Conn = (*Session)(nil)

// NewSession creates a session in the connecting state
func NewSession(id string, cfg Config, now time.Time) *Session {
	return &Session{
		id:          id,
		connectedAt: now,
		state:       StateConnecting,
		send:        make(chan []byte, cfg.SendBuffer),
		clicks:      rate.NewLimiter(rate.Limit(cfg.ClicksPerSecond), cfg.ClickBurst),
		factory:     rate.NewLimiter(rate.Limit(cfg.FactoryTicksPerSecond), cfg.FactoryBurst),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Identity() model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Send queues a frame for the write pump. Never blocks.
func (s *Session) Send(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return false
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// Outbound is the queue the write pump drains. It is closed on disconnect.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// Authenticate binds the verified identity: Connecting → Authenticated
func (s *Session) Authenticate(identity model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, s.state, StateAuthenticated)
	}
	s.identity = identity
	s.state = StateAuthenticated
	return nil
}

// activate moves Authenticated → Active
func (s *Session) activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, s.state, StateActive)
	}
	s.state = StateActive
	return nil
}

// close moves to Disconnected and returns the state it left. Closing twice
// returns StateDisconnected the second time.
func (s *Session) close() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	if prev != StateDisconnected {
		s.state = StateDisconnected
		close(s.send)
	}
	return prev
}

// allow applies the per-connection rate limit for source at now
func (s *Session) allow(source model.ClickSource, now time.Time) bool {
	if source == model.SourceFactory {
		return s.factory.AllowN(now, 1)
	}
	return s.clicks.AllowN(now, 1)
}
