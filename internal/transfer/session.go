package transfer

import (
	"fmt"
	"sync"

	"github.com/desertthunder/mtx/internal/providers"
	"github.com/desertthunder/mtx/internal/shared"
)

// Session tracks which provider is the source and which is the target
// of the next transfer. A provider cannot play both roles at once:
// picking the current target as the new source drops the target, and
// picking the current source as the target is rejected.
type Session struct {
	mu       sync.Mutex
	adapters map[string]providers.Adapter
	source   string
	target   string
}

// NewSession creates a Session over the given adapters.
func NewSession(adapters ...providers.Adapter) *Session {
	s := &Session{adapters: make(map[string]providers.Adapter, len(adapters))}
	for _, a := range adapters {
		s.adapters[a.Name()] = a
	}
	return s
}

// Adapter looks a registered provider up by name.
func (s *Session) Adapter(name string) (providers.Adapter, error) {
	a, ok := s.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", shared.ErrProviderNotFound, name)
	}
	return a, nil
}

// SetSource selects the source provider. Selecting the current target
// moves it into the source role and leaves the target unset. An empty
// name clears both roles.
func (s *Session) SetSource(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		s.source = ""
		s.target = ""
		return nil
	}
	if _, ok := s.adapters[name]; !ok {
		return fmt.Errorf("%w: %q", shared.ErrProviderNotFound, name)
	}
	if name == s.target {
		s.target = ""
	}
	s.source = name
	return nil
}

// SetTarget selects the target provider, which must differ from the
// source. An empty name clears the target.
func (s *Session) SetTarget(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		s.target = ""
		return nil
	}
	if _, ok := s.adapters[name]; !ok {
		return fmt.Errorf("%w: %q", shared.ErrProviderNotFound, name)
	}
	if name == s.source {
		return fmt.Errorf("%w: %q", shared.ErrSameProvider, name)
	}
	s.target = name
	return nil
}

// Source returns the selected source adapter.
func (s *Session) Source() (providers.Adapter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.adapters[s.source]
	return a, ok && s.source != ""
}

// Target returns the selected target adapter.
func (s *Session) Target() (providers.Adapter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.adapters[s.target]
	return a, ok && s.target != ""
}

// Ready reports whether both roles are selected.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source != "" && s.target != ""
}

// Reset clears both roles.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = ""
	s.target = ""
}
