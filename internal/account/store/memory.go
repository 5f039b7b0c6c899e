package store

import (
	"context"
	"sync"

	"tally/internal/account/models"
	"tally/pkg/platform/sentinel"
)

// Memory is an in-memory user store for unit tests and single-process
// deployments.
type Memory struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewMemory() *Memory {
	return &Memory{users: make(map[string]*models.User)}
}

func (m *Memory) InsertUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; ok {
		return sentinel.ErrConflict
	}
	user.Version = 1
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *Memory) FindUser(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *stored
	return &clone, nil
}

func (m *Memory) UpdateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.users[user.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != user.Version {
		return sentinel.ErrConflict
	}
	user.Version++
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *Memory) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(m.users, id)
	return nil
}
