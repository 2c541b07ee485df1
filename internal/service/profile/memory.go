package profile

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. A single lock covers the
// uniqueness check and the write, which makes InsertIfAbsent atomic.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	byEmail  map[string]string
	byUserID map[string]string
	now      func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*Profile),
		byEmail:  make(map[string]string),
		byUserID: make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.profiles[id]
	if !exists {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *MemoryStore) FindByEmail(ctx context.Context, email string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.byEmail[NormalizeEmail(email)]
	if !exists {
		return nil, ErrNotFound
	}
	return m.profiles[id].Clone(), nil
}

func (m *MemoryStore) FindByUserID(ctx context.Context, userID string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, exists := m.byUserID[userID]
	if !exists {
		return nil, ErrNotFound
	}
	return m.profiles[id].Clone(), nil
}

func (m *MemoryStore) InsertIfAbsent(ctx context.Context, p *Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	email := NormalizeEmail(p.Email)
	if _, exists := m.profiles[p.ID]; exists {
		return ErrConflict
	}
	if _, exists := m.byEmail[email]; exists {
		return ErrConflict
	}
	if _, exists := m.byUserID[p.UserID]; exists {
		return ErrConflict
	}

	stored := p.Clone()
	stored.Email = strings.TrimSpace(stored.Email)
	stored.SetName(stored.FirstName, stored.LastName)
	m.profiles[stored.ID] = stored
	m.byEmail[email] = stored.ID
	m.byUserID[stored.UserID] = stored.ID
	return nil
}

func (m *MemoryStore) ListByFullName(ctx context.Context, fullName string) ([]Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := FoldName(fullName)
	var out []Profile
	for _, p := range m.profiles {
		if p.NameKey() == key {
			out = append(out, *p.Clone())
		}
	}
	sortByCreation(out)
	return out, nil
}

func (m *MemoryStore) UpdateName(ctx context.Context, id string, update NameUpdate) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.profiles[id]
	if !exists {
		return nil, ErrNotFound
	}
	applyNameUpdate(p, update, m.now())
	return p.Clone(), nil
}

func (m *MemoryStore) SetStatus(ctx context.Context, id string, status Status) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.profiles[id]
	if !exists {
		return nil, ErrNotFound
	}
	if err := applyStatus(p, status, m.now()); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Len returns the number of stored profiles.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles)
}

// Clear removes all profiles (useful for test cleanup).
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles = make(map[string]*Profile)
	m.byEmail = make(map[string]string)
	m.byUserID = make(map[string]string)
}

// sortByCreation orders profiles oldest first, breaking ties by ID.
func sortByCreation(ps []Profile) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.Before(ps[j].CreatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)
