// package store persists per-provider authorization material.
//
// Tokens and the ephemeral state/verifier pair of a pending login are
// stored under provider-qualified keys; a single global slot names the
// provider whose redirect round-trip is in flight.
package store

import (
	"fmt"
	"sync"

	"github.com/desertthunder/mtx/internal/shared"
)

// Well-known key prefixes. The full key is the prefix plus the provider
// name, e.g. "tokenspotify".
const (
	KeyToken    = "token"
	KeyState    = "state"
	KeyVerifier = "verifier"

	keyWaiting = "waiting"
)

// Store is a key/value credential store. Get reports presence instead
// of returning an error so callers can treat lookup failures as absent
// values.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

// ProviderKey qualifies a key prefix with a provider name.
func ProviderKey(prefix, provider string) string {
	return prefix + provider
}

// MemoryStore is an in-memory Store for tests and ephemeral sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// PendingSlot is the single-slot register naming the provider waiting
// for an authorization redirect. Only one login round-trip may be in
// flight at a time; Claim is check-and-set so a second login cannot
// silently overwrite the pending session.
type PendingSlot struct {
	mu    sync.Mutex
	store Store
}

// NewPendingSlot wraps a Store's "waiting" key in a PendingSlot.
func NewPendingSlot(s Store) *PendingSlot {
	return &PendingSlot{store: s}
}

// Claim marks provider as pending. Claiming an occupied slot fails
// with [shared.ErrLoginPending], even for the provider holding it; a
// caller restarting a login must clear the slot first so the old
// session is never overwritten silently.
func (p *PendingSlot) Claim(provider string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if current, ok := p.store.Get(keyWaiting); ok && current != "" {
		return fmt.Errorf("%w: %s", shared.ErrLoginPending, current)
	}
	return p.store.Set(keyWaiting, provider)
}

// Current returns the pending provider name, if any.
func (p *PendingSlot) Current() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, ok := p.store.Get(keyWaiting)
	if !ok || current == "" {
		return "", false
	}
	return current, true
}

// Clear empties the slot. Clearing an empty slot is a no-op.
func (p *PendingSlot) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Remove(keyWaiting)
}
