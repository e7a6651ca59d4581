package realtime

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/services/ledger"
)

// spyLedger counts calls through to a real ledger
type spyLedger struct {
	inner *ledger.Ledger
	calls atomic.Int64
}

func (s *spyLedger) ApplyClick(ctx context.Context, id model.AccountID, event model.ClickEvent) (int64, int64, error) {
	s.calls.Add(1)
	return s.inner.ApplyClick(ctx, id, event)
}

// drain returns every frame queued on sess without blocking
func drain(t *testing.T, sess *Session) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		select {
		case frame, ok := <-sess.Outbound():
			if !ok {
				return out
			}
			var env Envelope
			require.NoError(t, json.Unmarshal(frame, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func events(envs []Envelope) []string {
	out := make([]string, len(envs))
	for i, e := range envs {
		out[i] = e.Event
	}
	return out
}

func countEvent(envs []Envelope, event string) int {
	n := 0
	for _, e := range envs {
		if e.Event == event {
			n++
		}
	}
	return n
}

func lastEvent(t *testing.T, envs []Envelope, event string) Envelope {
	t.Helper()
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Event == event {
			return envs[i]
		}
	}
	t.Fatalf("no %s frame in %v", event, events(envs))
	return Envelope{}
}

func decode[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

// fakeTransport is an in-memory Transport driven by the test
type fakeTransport struct {
	in      chan []byte
	written chan []byte

	mu        sync.Mutex
	closed    bool
	closeCode websocket.StatusCode
	done      chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:      make(chan []byte, 16),
		written: make(chan []byte, 256),
		done:    make(chan struct{}),
	}
}

func (f *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-f.in:
		return frame, nil
	case <-f.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) Write(ctx context.Context, frame []byte) error {
	select {
	case f.written <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTransport) Ping(ctx context.Context) error {
	return nil
}

func (f *fakeTransport) Close(code websocket.StatusCode, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.closeCode = code
	}
	return nil
}

// hangUp simulates the peer going away
func (f *fakeTransport) hangUp() {
	close(f.done)
}

func (f *fakeTransport) code() (websocket.StatusCode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCode, f.closed
}

// next waits for the next written frame with the given event
func (f *fakeTransport) next(t *testing.T, event string) Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case frame := <-f.written:
			var env Envelope
			require.NoError(t, json.Unmarshal(frame, &env))
			if env.Event == event {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", event)
			return Envelope{}
		}
	}
}
