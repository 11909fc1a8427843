package storage

import (
	"context"
	"sync"
	"time"

	"github.com/andyleap/donna/internal/models"
)

type MemoryStorage struct {
	flows map[string]*models.FlowState
	users map[int64]models.User
	mu    sync.Mutex

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewMemoryStorage returns an in-process store. Expired flows are swept
// every cleanupInterval; zero disables the sweeper.
func NewMemoryStorage(cleanupInterval time.Duration) *MemoryStorage {
	storage := &MemoryStorage{
		flows: make(map[string]*models.FlowState),
		users: make(map[int64]models.User),
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go storage.cleanupRoutine(cleanupInterval)
	}

	return storage
}

func (m *MemoryStorage) SaveFlow(ctx context.Context, flow *models.FlowState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flows[flow.State] = flow
	return nil
}

func (m *MemoryStorage) GetFlow(ctx context.Context, state string) (*models.FlowState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	flow, exists := m.flows[state]
	if !exists {
		return nil, nil
	}

	if flow.Expired(m.now()) {
		delete(m.flows, state)
		return nil, nil
	}

	return flow, nil
}

func (m *MemoryStorage) DeleteFlow(ctx context.Context, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.flows, state)
	return nil
}

// FlowCount returns the number of pending flows, expired ones included.
func (m *MemoryStorage) FlowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.flows)
}

func (m *MemoryStorage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, exists := m.users[userID]
	if !exists {
		return nil, nil
	}
	return copyUser(&user), nil
}

func (m *MemoryStorage) SaveUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[user.ID] = *copyUser(user)
	return nil
}

func (m *MemoryStorage) UserExists(ctx context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.users[userID]
	return exists, nil
}

func (m *MemoryStorage) CountUsers(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

// Close stops the background sweeper.
func (m *MemoryStorage) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryStorage) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stop:
			return
		}
	}
}

func (m *MemoryStorage) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for state, flow := range m.flows {
		if flow.Expired(now) {
			delete(m.flows, state)
		}
	}
}

// copyUser keeps callers from mutating stored state through shared pointers.
func copyUser(user *models.User) *models.User {
	out := *user
	if user.Credential != nil {
		cred := user.Credential.Clone()
		out.Credential = &cred
	}
	return &out
}
