/*
Package session owns the signed-in identity of the client.

It holds the durable credential/profile pair (Store), and the state machine (Gate) that resolves
that pair into Loading, Unauthenticated or Authenticated and serializes every transition.
*/
package session

import (
	"sync"
	"time"

	"nyscmate/internal/app/user"
	"nyscmate/internal/pkg/errs"
)

// Credential is the opaque bearer token proving an authenticated session.
// It is never parsed; printing it with %s or %v yields a redacted form.
type Credential string

// String implements fmt.Stringer with a redacted value.
func (c Credential) String() string {
	if c == "" {
		return ""
	}
	return "[redacted]"
}

// GoString keeps the token out of %#v output.
func (c Credential) GoString() string {
	return c.String()
}

// Token returns the raw bearer value. Only the HTTP layer calls it.
func (c Credential) Token() string {
	return string(c)
}

// Record is the paired credential and last-known profile as persisted.
type Record struct {
	Credential Credential
	Profile    *user.Profile
	SavedAt    time.Time
}

func (r *Record) clone() *Record {
	if r == nil {
		return nil
	}
	return &Record{Credential: r.Credential, Profile: r.Profile.Clone(), SavedAt: r.SavedAt}
}

// Store is the durable holder of the credential/profile pair, plus named blob slots for
// other client-local state. All methods are synchronous and safe for concurrent use;
// a reader never observes a credential without its paired profile.
type Store interface {
	// Save replaces the pair atomically.
	Save(cred Credential, profile *user.Profile) error

	// Load returns the stored pair, or nil when the store is empty.
	Load() (*Record, error)

	// Clear removes the pair. Blobs are kept.
	Clear() error

	// GetBlob returns the blob stored under key, or nil when absent.
	GetBlob(key string) ([]byte, error)

	// PutBlob stores data under key, replacing any previous value.
	PutBlob(key string, data []byte) error

	Close() error
}

func validatePair(cred Credential, profile *user.Profile) error {
	if cred == "" || profile == nil {
		return errs.NewError(errs.ErrInvalidParams)
	}
	return nil
}

// MemoryStore is a Store that lives as long as the process. Used for ephemeral runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	record *Record
	blobs  map[string][]byte
	now    func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte), now: time.Now}
}

func (m *MemoryStore) Save(cred Credential, profile *user.Profile) error {
	if err := validatePair(cred, profile); err != nil {
		return err
	}
	rec := &Record{Credential: cred, Profile: profile.Clone(), SavedAt: m.now()}

	m.mu.Lock()
	m.record = rec
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load() (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.record.clone(), nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.record = nil
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetBlob(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryStore) PutBlob(key string, data []byte) error {
	m.mu.Lock()
	m.blobs[key] = append([]byte(nil), data...)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
