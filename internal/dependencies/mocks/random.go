package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/bananaclick/internal/dependencies/random"
)

// MockRandom hands out queued strings, then falls back to a counter so
// every identifier stays unique
type MockRandom struct {
	mu      sync.Mutex
	queue   []string
	counter int
}

var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a MockRandom with an empty queue
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// String returns the next queued value, or "rand-N" once the queue is empty
func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) > 0 {
		next := r.queue[0]
		r.queue = r.queue[1:]
		return next
	}
	r.counter++
	return fmt.Sprintf("rand-%d", r.counter)
}

// QueueString queues values for String
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, values...)
}
