// package providers implements the per-service adapters the fetch and
// transfer engines are generic over.
//
// Spotify, Tidal, local JSON file
package providers

import (
	"context"

	"github.com/desertthunder/mtx/internal/auth"
	"github.com/desertthunder/mtx/internal/library"
)

// ContainerMeta describes a playlist to create on a target provider.
type ContainerMeta struct {
	Name        string
	Description string
	Open        bool
}

// Adapter defines the operations a streaming provider must support to
// act as a source or target of a transfer.
type Adapter interface {
	// Name returns the provider identifier, also used as the key a
	// matched item's resolved id is stored under.
	Name() string

	// Credential returns the static OAuth client settings, nil for
	// providers that need no authorization (local files).
	Credential() *auth.Credential

	// Authenticated reports whether the provider can be called.
	Authenticated() bool

	// Library assembles the provider's root group: favourites plus one
	// child group per playlist, each carrying its lazy fetch routine.
	Library(ctx context.Context) (*library.Group, error)

	// Query resolves one item against the provider's catalog, returning
	// push-ready identifiers, best match first. Zero results means the
	// item does not exist on the provider.
	Query(ctx context.Context, kind library.Kind, item library.Item) ([]string, error)

	// PushBatch adds one batch of resolved identifiers to the user's
	// library, or to the container when kind is a playlist.
	PushBatch(ctx context.Context, kind library.Kind, containerID string, ids []string) error

	// CreateContainer creates a playlist and returns its id.
	CreateContainer(ctx context.Context, meta ContainerMeta) (string, error)

	// BatchLimit returns the provider's maximum push batch size.
	BatchLimit() int
}
