package db

import (
	"context"
	"slices"
	"sync"
	"time"

	"nyscmate/internal/app/feed"
	"nyscmate/internal/app/portal"
	"nyscmate/internal/app/user"
)

// MemoryStore keeps everything in process memory. Lists come back in insertion order, except
// news, which is newest first.
type MemoryStore struct {
	mu         sync.RWMutex
	users      []*User
	resources  []portal.Resource
	clearances []*Clearance
	news       []feed.NewsItem
	nextID     int64
	now        func() time.Time
}

// NewMemoryStore returns a store seeded with the stock news and resources.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{now: time.Now}
	day := m.now().Format("2006-01-02")
	for _, r := range seedResources {
		r.ID = m.id()
		r.DateAdded = day
		m.resources = append(m.resources, r)
	}
	for _, n := range seedNews {
		n.ID = m.id()
		m.news = append([]feed.NewsItem{n}, m.news...)
	}
	return m
}

// id hands out the next id. Caller holds mu or owns m exclusively.
func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryStore) CreateUser(_ context.Context, u User) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u.Email = NormalizeEmail(u.Email)
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return nil, ErrEmailTaken
		}
	}
	u.ID = m.id()
	stored := u
	m.users = append(m.users, &stored)
	out := stored
	return &out, nil
}

func (m *MemoryStore) UserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	email = NormalizeEmail(email)
	for _, u := range m.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrNoRows
}

func (m *MemoryStore) UserByID(_ context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if u := m.user(id); u != nil {
		out := *u
		return &out, nil
	}
	return nil, ErrNoRows
}

// user finds a user by id. Caller holds mu.
func (m *MemoryStore) user(id int64) *User {
	for _, u := range m.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (m *MemoryStore) UpdateProfile(_ context.Context, id int64, patch user.ProfilePatch) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.user(id)
	if u == nil {
		return nil, ErrNoRows
	}
	u.Profile = *patch.Apply(&u.Profile)
	out := *u
	return &out, nil
}

func (m *MemoryStore) TouchUser(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.user(id)
	if u == nil {
		return ErrNoRows
	}
	u.LastSeenAt = at
	return nil
}

func (m *MemoryStore) ListUsers(context.Context) ([]user.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]user.Profile, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u.Profile)
	}
	return out, nil
}

func (m *MemoryStore) Stats(_ context.Context, dayStart time.Time) (*portal.AdminStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := &portal.AdminStats{TotalUsers: len(m.users)}
	for _, u := range m.users {
		switch u.Role {
		case user.RoleCorpsMember:
			s.CorpsMembers++
		case user.RolePCM:
			s.PCMs++
		}
		if !u.LastSeenAt.Before(dayStart) {
			s.ActiveToday++
		}
	}
	return s, nil
}

func (m *MemoryStore) Resources(context.Context) ([]portal.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.resources), nil
}

func (m *MemoryStore) AddResource(_ context.Context, r portal.Resource) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r.ID = m.id()
	m.resources = append(m.resources, r)
	return r.ID, nil
}

func (m *MemoryStore) CreateClearance(_ context.Context, c Clearance) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.clearances {
		if existing.UserID == c.UserID && existing.Month == c.Month {
			return 0, ErrDuplicateClearance
		}
	}
	c.ID = m.id()
	m.clearances = append(m.clearances, &c)
	return c.ID, nil
}

func (m *MemoryStore) ClearancesByUser(_ context.Context, userID int64) ([]portal.Clearance, error) {
	return m.clearancesWhere(func(c *Clearance) bool { return c.UserID == userID }), nil
}

func (m *MemoryStore) PendingClearances(context.Context) ([]portal.Clearance, error) {
	return m.clearancesWhere(func(c *Clearance) bool { return c.Status == portal.StatusPending }), nil
}

func (m *MemoryStore) clearancesWhere(keep func(*Clearance) bool) []portal.Clearance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []portal.Clearance{}
	for _, c := range m.clearances {
		if keep(c) {
			out = append(out, c.Clearance)
		}
	}
	return out
}

func (m *MemoryStore) ActOnClearance(_ context.Context, id int64, status, comment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.clearances {
		if c.ID == id {
			c.Status = status
			c.OfficialComment = comment
			return nil
		}
	}
	return ErrNoRows
}

func (m *MemoryStore) News(context.Context) ([]feed.NewsItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.news), nil
}

func (m *MemoryStore) AddNews(_ context.Context, n feed.NewsItem) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n.ID = m.id()
	m.news = append([]feed.NewsItem{n}, m.news...)
	return n.ID, nil
}

func (m *MemoryStore) Close() {}
