package transfer

import (
	"errors"
	"testing"

	"github.com/desertthunder/mtx/internal/shared"
)

func namedAdapter(name string) *mockAdapter {
	m := newMockAdapter()
	m.name = name
	return m
}

func TestSession(t *testing.T) {
	newTestSession := func() *Session {
		return NewSession(namedAdapter("spotify"), namedAdapter("tidal"))
	}

	t.Run("AdapterLookup", func(t *testing.T) {
		s := newTestSession()
		a, err := s.Adapter("tidal")
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if a.Name() != "tidal" {
			t.Errorf("expected tidal, got %s", a.Name())
		}
		if _, err := s.Adapter("deezer"); !errors.Is(err, shared.ErrProviderNotFound) {
			t.Errorf("expected ErrProviderNotFound, got %v", err)
		}
	})

	t.Run("SourceAndTargetRoles", func(t *testing.T) {
		s := newTestSession()
		if s.Ready() {
			t.Error("a fresh session must not be ready")
		}
		if err := s.SetSource("spotify"); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if err := s.SetTarget("tidal"); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if !s.Ready() {
			t.Error("both roles set, session must be ready")
		}
		src, ok := s.Source()
		if !ok || src.Name() != "spotify" {
			t.Errorf("expected spotify source, got %v %v", src, ok)
		}
		tgt, ok := s.Target()
		if !ok || tgt.Name() != "tidal" {
			t.Errorf("expected tidal target, got %v %v", tgt, ok)
		}
	})

	t.Run("TargetMustDifferFromSource", func(t *testing.T) {
		s := newTestSession()
		if err := s.SetSource("spotify"); err != nil {
			t.Fatal(err)
		}
		if err := s.SetTarget("spotify"); !errors.Is(err, shared.ErrSameProvider) {
			t.Errorf("expected ErrSameProvider, got %v", err)
		}
	})

	t.Run("PickingTargetAsSourceDropsTarget", func(t *testing.T) {
		s := newTestSession()
		if err := s.SetSource("spotify"); err != nil {
			t.Fatal(err)
		}
		if err := s.SetTarget("tidal"); err != nil {
			t.Fatal(err)
		}
		if err := s.SetSource("tidal"); err != nil {
			t.Fatal(err)
		}
		src, _ := s.Source()
		if src.Name() != "tidal" {
			t.Errorf("expected tidal source, got %s", src.Name())
		}
		if _, ok := s.Target(); ok {
			t.Error("target must be unset after its adapter became the source")
		}
	})

	t.Run("EmptySourceClearsBothRoles", func(t *testing.T) {
		s := newTestSession()
		if err := s.SetSource("spotify"); err != nil {
			t.Fatal(err)
		}
		if err := s.SetTarget("tidal"); err != nil {
			t.Fatal(err)
		}
		if err := s.SetSource(""); err != nil {
			t.Fatal(err)
		}
		if _, ok := s.Source(); ok {
			t.Error("source must be cleared")
		}
		if _, ok := s.Target(); ok {
			t.Error("target must be cleared with the source")
		}
	})

	t.Run("UnknownProviderRejected", func(t *testing.T) {
		s := newTestSession()
		if err := s.SetSource("deezer"); !errors.Is(err, shared.ErrProviderNotFound) {
			t.Errorf("expected ErrProviderNotFound, got %v", err)
		}
		if err := s.SetTarget("deezer"); !errors.Is(err, shared.ErrProviderNotFound) {
			t.Errorf("expected ErrProviderNotFound, got %v", err)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		s := newTestSession()
		if err := s.SetSource("spotify"); err != nil {
			t.Fatal(err)
		}
		if err := s.SetTarget("tidal"); err != nil {
			t.Fatal(err)
		}
		s.Reset()
		if s.Ready() {
			t.Error("session must not be ready after reset")
		}
	})
}
