package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/bananaclick/internal/dependencies/mocks"
	"github.com/mcoot/bananaclick/internal/dependencies/random"
	"github.com/mcoot/bananaclick/internal/realtime"
	"github.com/mcoot/bananaclick/internal/services/auth"
	"github.com/mcoot/bananaclick/internal/services/token"
	"github.com/mcoot/bananaclick/internal/storage/memory"
	"github.com/mcoot/bananaclick/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
}

// NewTestApp creates an App configured for testing with a mocked clock.
// Token IDs still come from crypto randomness so revocation stays unique.
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	rnd := random.New()

	key, err := token.GenerateKey()
	if err != nil {
		panic(err)
	}
	codec, err := token.NewCodec(key, token.DefaultConfig().TTL, mockClock, rnd)
	if err != nil {
		panic(err)
	}

	rtCfg := realtime.DefaultConfig()
	rtCfg.PingInterval = 0

	app := newWithDependencies(store, mockClock, rnd, codec, Config{
		AuthConfig:     auth.Config{BcryptCost: bcrypt.MinCost},
		RealtimeConfig: &rtCfg,
	}, testutil.NopLogger())

	return &TestApp{
		App:       app,
		MockClock: mockClock,
	}
}
