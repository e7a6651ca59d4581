package presence

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/bananaclick/internal/dependencies/mocks"
	"github.com/mcoot/bananaclick/internal/model"
)

type RegistrySuite struct {
	suite.Suite
	clock    *mocks.MockClock
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.registry = NewRegistry(s.clock)
}

func identity(id string, role model.Role) model.Identity {
	return model.Identity{ID: model.AccountID(id), Username: "user-" + id, Role: role}
}

func (s *RegistrySuite) TestRegisterAndGet() {
	s.registry.Register(identity("a", model.RolePlayer), "conn-1", 10)

	entry, ok := s.registry.Get("a")
	s.Require().True(ok)
	s.Equal("conn-1", entry.ConnID)
	s.Equal(int64(10), entry.CachedScore)
	s.Equal(s.clock.Now(), entry.ConnectedAt)
	s.True(s.registry.IsOnline("a"))
	s.Equal(1, s.registry.Len())
}

func (s *RegistrySuite) TestDuplicateRegisterLastWins() {
	s.registry.Register(identity("a", model.RolePlayer), "conn-1", 10)
	s.registry.Register(identity("a", model.RolePlayer), "conn-2", 12)

	entry, ok := s.registry.Get("a")
	s.Require().True(ok)
	s.Equal("conn-2", entry.ConnID)
	s.Equal(1, s.registry.Len())
}

func (s *RegistrySuite) TestReleaseOnlyRemovesCurrentConnection() {
	s.registry.Register(identity("a", model.RolePlayer), "conn-1", 0)
	s.registry.Register(identity("a", model.RolePlayer), "conn-2", 0)

	s.False(s.registry.Release("a", "conn-1"))
	s.True(s.registry.IsOnline("a"))

	s.True(s.registry.Release("a", "conn-2"))
	s.False(s.registry.IsOnline("a"))
}

func (s *RegistrySuite) TestUnregister() {
	s.registry.Register(identity("a", model.RolePlayer), "conn-1", 0)

	s.True(s.registry.Unregister("a"))
	s.False(s.registry.Unregister("a"))
	s.Equal(0, s.registry.Len())
}

func (s *RegistrySuite) TestUpdateScoreAndTouch() {
	s.registry.Register(identity("a", model.RolePlayer), "conn-1", 0)

	s.clock.Advance(time.Second)
	s.registry.UpdateScore("a", 42)
	entry, _ := s.registry.Get("a")
	s.Equal(int64(42), entry.CachedScore)
	s.Equal(s.clock.Now(), entry.LastSeenAt)

	s.clock.Advance(time.Second)
	s.registry.Touch("a")
	entry, _ = s.registry.Get("a")
	s.Equal(int64(42), entry.CachedScore)
	s.Equal(s.clock.Now(), entry.LastSeenAt)

	// unknown ids are ignored
	s.registry.UpdateScore("missing", 1)
	s.False(s.registry.IsOnline("missing"))
}

func (s *RegistrySuite) TestListOnlineOrderedByConnectTime() {
	s.registry.Register(identity("c", model.RolePlayer), "conn-c", 0)
	s.clock.Advance(time.Second)
	s.registry.Register(identity("a", model.RoleAdmin), "conn-a", 0)
	s.clock.Advance(time.Second)
	s.registry.Register(identity("b", model.RolePlayer), "conn-b", 0)

	entries := s.registry.ListOnline()
	s.Require().Len(entries, 3)
	s.Equal(model.AccountID("c"), entries[0].Identity.ID)
	s.Equal(model.AccountID("a"), entries[1].Identity.ID)
	s.Equal(model.AccountID("b"), entries[2].Identity.ID)
}

func (s *RegistrySuite) TestListOnlineIsSnapshot() {
	s.registry.Register(identity("a", model.RolePlayer), "conn-1", 1)

	entries := s.registry.ListOnline()
	entries[0].CachedScore = 999
	s.registry.Unregister("a")

	s.Len(entries, 1)
	s.Equal(0, s.registry.Len())
}

func (s *RegistrySuite) TestConcurrentAccess() {
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("acc-%d", i)
			conn := fmt.Sprintf("conn-%d", i)
			s.registry.Register(identity(id, model.RolePlayer), conn, 0)
			s.registry.UpdateScore(model.AccountID(id), int64(i))
			_ = s.registry.ListOnline()
			if i%2 == 0 {
				s.registry.Release(model.AccountID(id), conn)
			}
		}(i)
	}
	wg.Wait()
	s.Equal(10, s.registry.Len())
}
