package store

import (
	"context"
	"sync"

	"github.com/samber/oops"
)

// Memory keeps users in process memory. Used for local runs without a database
// and by tests.
type Memory struct {
	mu    sync.RWMutex
	users map[string]*User

	// FailSave, when set, is consulted before every write; a non-nil result
	// aborts the write.
	FailSave func(u *User) error
}

func NewMemory() *Memory {
	return &Memory{users: make(map[string]*User)}
}

func (m *Memory) FindByUsername(_ context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[Key(username)]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (m *Memory) Save(ctx context.Context, u *User) error {
	return m.SaveMany(ctx, u)
}

func (m *Memory) SaveMany(_ context.Context, users ...*User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		for _, u := range users {
			if err := m.FailSave(u); err != nil {
				return oops.Wrapf(err, "save user %s", u.Username)
			}
		}
	}
	for _, u := range users {
		m.users[Key(u.Username)] = u.Clone()
	}
	return nil
}

func (m *Memory) Close() error { return nil }

// Len reports how many users are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}
