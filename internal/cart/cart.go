package cart

import (
	"context"
	"sync"
	"time"

	"esnafpos/internal/domain"
)

// Store holds pending cart lines per session id. Carts are ephemeral: they
// live only until checkout or an explicit clear, and may expire with the
// session.
type Store interface {
	Get(ctx context.Context, sessionID string) ([]domain.CartLine, error)
	Save(ctx context.Context, sessionID string, lines []domain.CartLine) error
	Clear(ctx context.Context, sessionID string) error
}

// MemoryStore keeps carts in process memory. Entries older than the TTL are
// dropped lazily on access.
type MemoryStore struct {
	mu  sync.Mutex
	ttl time.Duration

	carts map[string]memoryCart
}

type memoryCart struct {
	lines   []domain.CartLine
	touched time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &MemoryStore{ttl: ttl, carts: make(map[string]memoryCart)}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.carts[sessionID]
	if !ok {
		return nil, nil
	}
	if time.Since(entry.touched) > s.ttl {
		delete(s.carts, sessionID)
		return nil, nil
	}

	lines := make([]domain.CartLine, len(entry.lines))
	copy(lines, entry.lines)
	return lines, nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, lines []domain.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]domain.CartLine, len(lines))
	copy(kept, lines)
	s.carts[sessionID] = memoryCart{lines: kept, touched: time.Now()}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, sessionID)
	return nil
}
