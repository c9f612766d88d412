package ui

import (
	"context"
	"testing"

	"github.com/desertthunder/mtx/internal/auth"
	"github.com/desertthunder/mtx/internal/library"
	"github.com/desertthunder/mtx/internal/providers"
)

type stubSource struct {
	root *library.Group
}

func (s *stubSource) Name() string                 { return "stub" }
func (s *stubSource) Credential() *auth.Credential { return nil }
func (s *stubSource) Authenticated() bool          { return true }
func (s *stubSource) BatchLimit() int              { return 2 }

func (s *stubSource) Library(ctx context.Context) (*library.Group, error) {
	return s.root, nil
}

func (s *stubSource) Query(ctx context.Context, kind library.Kind, item library.Item) ([]string, error) {
	return nil, nil
}

func (s *stubSource) PushBatch(ctx context.Context, kind library.Kind, containerID string, ids []string) error {
	return nil
}

func (s *stubSource) CreateContainer(ctx context.Context, meta providers.ContainerMeta) (string, error) {
	return meta.Name, nil
}

func TestFetchLibraryResolvesRootChildren(t *testing.T) {
	tracks := library.NewGroup(library.KindTracks, "Liked Songs", nil)
	root := library.NewAll([]*library.Group{tracks}, func(r *library.Group) error {
		r.AddChild(library.NewPlaylistGroup("Road Trip", "", true, nil))
		return nil
	})

	m := NewModel(context.Background(), &stubSource{root: root}, nil)
	msg, ok := m.fetchLibrary()().(libraryFetchedMsg)
	if !ok {
		t.Fatal("expected a libraryFetchedMsg")
	}
	if msg.err != nil {
		t.Fatalf("unexpected error %v", msg.err)
	}

	children := msg.root.Children()
	if len(children) != 2 {
		t.Fatalf("expected favourites plus the playlist, got %d children", len(children))
	}
	if children[1].Kind() != library.KindPlaylist || children[1].Name() != "Road Trip" {
		t.Errorf("playlist child missing, got %s (%s)", children[1].Name(), children[1].Kind())
	}
}
