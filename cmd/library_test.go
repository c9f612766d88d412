package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/desertthunder/mtx/internal/auth"
	"github.com/desertthunder/mtx/internal/library"
	"github.com/desertthunder/mtx/internal/providers"
	"github.com/desertthunder/mtx/internal/transfer"
	"github.com/urfave/cli/v3"
)

// stubAdapter serves a fixed library; queries resolve to the item name.
type stubAdapter struct {
	root *library.Group
}

func (s *stubAdapter) Name() string                 { return "stub" }
func (s *stubAdapter) Credential() *auth.Credential { return nil }
func (s *stubAdapter) Authenticated() bool          { return true }
func (s *stubAdapter) BatchLimit() int              { return 2 }

func (s *stubAdapter) Library(ctx context.Context) (*library.Group, error) {
	return s.root, nil
}

func (s *stubAdapter) Query(ctx context.Context, kind library.Kind, item library.Item) ([]string, error) {
	return []string{item.Name}, nil
}

func (s *stubAdapter) PushBatch(ctx context.Context, kind library.Kind, containerID string, ids []string) error {
	return nil
}

func (s *stubAdapter) CreateContainer(ctx context.Context, meta providers.ContainerMeta) (string, error) {
	return meta.Name, nil
}

// stubLibrary builds a root whose favourites are inline but whose
// playlist child only appears once the root's own routine has run,
// mirroring how providers defer their playlist listing.
func stubLibrary() *library.Group {
	tracks := library.NewGroup(library.KindTracks, "Liked Songs", []library.Item{
		library.NewItem("Space Song", []string{"Beach House"}, nil),
	})
	return library.NewAll([]*library.Group{tracks}, func(root *library.Group) error {
		root.AddChild(library.NewPlaylistGroup("Road Trip", "summer", true, func(g *library.Group) error {
			g.Add(library.NewItem("Myth", []string{"Beach House"}, nil))
			return nil
		}))
		return nil
	})
}

func stubApp(t *testing.T) (*cli.Command, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	r := NewRunner(RunnerOpts{
		Session: transfer.NewSession(&stubAdapter{root: stubLibrary()}),
		Output:  buf,
	})
	return &cli.Command{Name: "mtx", Commands: r.register()}, buf
}

func TestLibraryListIncludesPlaylists(t *testing.T) {
	app, buf := stubApp(t)

	if err := app.Run(context.Background(), []string{"mtx", "library", "list", "stub"}); err != nil {
		t.Fatalf("library list failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Liked Songs") {
		t.Errorf("favourites missing from listing:\n%s", out)
	}
	if !strings.Contains(out, "Road Trip") {
		t.Errorf("playlist missing from listing, root routine did not run:\n%s", out)
	}
}

func TestTransferRunReachesPlaylists(t *testing.T) {
	app, buf := stubApp(t)

	err := app.Run(context.Background(), []string{
		"mtx", "transfer", "run",
		"--source", "stub", "--target", "file",
		"--group", "Road Trip",
	})
	if err != nil {
		t.Fatalf("transfer run failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Road Trip: Completed (0 missing)") {
		t.Errorf("playlist transfer did not complete:\n%s", out)
	}
}
