package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps carts in process memory. Used for local runs
// without a database and in tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]Cart
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{carts: make(map[string]Cart)}
}

func (m *MemoryRepository) GetCart(ctx context.Context, sessionID string) (*Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.carts[sessionID]
	if !ok {
		return nil, nil
	}
	cp := c.clone()
	return &cp, nil
}

func (m *MemoryRepository) UpsertCart(ctx context.Context, c *Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.UpdatedAt = time.Now().UTC()
	m.carts[c.SessionID] = c.clone()
	return nil
}

func (m *MemoryRepository) ClearCart(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.carts, sessionID)
	return nil
}
