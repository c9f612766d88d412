// package library defines the normalized in-memory model of a music
// library: items, groups of items, and the transfer records that track
// moving a group's items to another provider.
package library

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/desertthunder/mtx/internal/shared"
)

// Kind enumerates the group types providers expose.
type Kind string

const (
	KindArtists  Kind = "artists"
	KindAlbums   Kind = "albums"
	KindTracks   Kind = "tracks"
	KindPlaylist Kind = "playlist"
	KindAll      Kind = "all"
)

// FetchFunc populates a group, appending items page by page and marking
// it ready on the last page. It runs at most once per group.
type FetchFunc func(*Group) error

// Group is a named, typed, ordered collection of items with a one-shot
// lazy fetch routine. Once the routine finishes the group is
// permanently ready and no further items are appended.
type Group struct {
	mu          sync.Mutex
	kind        Kind
	name        string
	description string
	open        bool
	items       []Item
	children    []*Group
	selected    bool
	ready       bool
	fetchErr    error
	routine     FetchFunc
	callbacks   []func()
}

// NewGroup creates a group whose items are already known. Its fetch
// routine only marks it ready.
func NewGroup(kind Kind, name string, items []Item) *Group {
	g := &Group{kind: kind, name: name, items: append([]Item(nil), items...)}
	g.routine = func(g *Group) error {
		g.Complete()
		return nil
	}
	return g
}

// NewLazyGroup creates an empty group populated by routine on first
// fetch.
func NewLazyGroup(kind Kind, name string, routine FetchFunc) *Group {
	return &Group{kind: kind, name: name, routine: routine}
}

// NewPlaylistGroup creates a playlist group carrying its description
// and visibility, populated by routine on first fetch.
func NewPlaylistGroup(name, description string, open bool, routine FetchFunc) *Group {
	g := NewLazyGroup(KindPlaylist, name, routine)
	g.description = description
	g.open = open
	return g
}

// NewAll builds the root group aggregating every top-level group of a
// provider. The routine typically paginates playlists, adding one child
// per playlist, and completes the root once every child exists; the
// children then populate independently. A nil routine marks the root
// ready immediately.
func NewAll(children []*Group, routine FetchFunc) *Group {
	g := &Group{kind: KindAll, children: append([]*Group(nil), children...)}
	if routine == nil {
		g.ready = true
		g.routine = nil
	} else {
		g.routine = routine
	}
	return g
}

// Kind returns the group type.
func (g *Group) Kind() Kind { return g.kind }

// Name returns the group name. The root group renders its child count,
// e.g. "ALL (3 GROUPS)".
func (g *Group) Name() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.kind == KindAll {
		label := "GROUPS"
		if len(g.children) == 1 {
			label = "GROUP"
		}
		return fmt.Sprintf("ALL (%d %s)", len(g.children), label)
	}
	return g.name
}

// Description returns the playlist description, empty for other kinds.
func (g *Group) Description() string { return g.description }

// Open reports playlist visibility.
func (g *Group) Open() bool { return g.open }

// Items returns a snapshot of the group's items.
func (g *Group) Items() []Item {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Item(nil), g.items...)
}

// Len returns the current item count.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.items)
}

// Add appends items in order. Items arriving after the group became
// ready are dropped; readiness is terminal.
func (g *Group) Add(items ...Item) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ready {
		return
	}
	g.items = append(g.items, items...)
}

// AddChild appends a child group to the root.
func (g *Group) AddChild(child *Group) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.children = append(g.children, child)
}

// Children returns a snapshot of the child groups.
func (g *Group) Children() []*Group {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Group(nil), g.children...)
}

// Ready reports whether population finished.
func (g *Group) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

// FetchErr returns the error the fetch routine failed with, if any.
func (g *Group) FetchErr() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetchErr
}

// Complete marks the group ready exactly once and fires every pending
// readiness callback.
func (g *Group) Complete() {
	g.mu.Lock()
	if g.ready {
		g.mu.Unlock()
		return
	}
	g.ready = true
	callbacks := g.callbacks
	g.callbacks = nil
	g.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// OnReady registers fn to run once the group becomes ready. When the
// group is already ready fn runs synchronously. Each registration fires
// at most once.
func (g *Group) OnReady(fn func()) {
	g.mu.Lock()
	if g.ready {
		g.mu.Unlock()
		fn()
		return
	}
	g.callbacks = append(g.callbacks, fn)
	g.mu.Unlock()
}

// Fetch runs the one-shot fetch routine. Subsequent calls perform no
// work and return the first run's error, so triggering a ready group
// never issues a request. A failed routine leaves the group not-ready.
func (g *Group) Fetch() error {
	g.mu.Lock()
	routine := g.routine
	g.routine = nil
	if routine == nil {
		err := g.fetchErr
		g.mu.Unlock()
		return err
	}
	g.mu.Unlock()

	if err := routine(g); err != nil {
		g.mu.Lock()
		g.fetchErr = err
		g.mu.Unlock()
		return err
	}
	return nil
}

// Select marks the group chosen for transfer; selecting triggers the
// fetch routine, deselecting only clears the flag.
func (g *Group) Select(selected bool) error {
	g.mu.Lock()
	g.selected = selected
	g.mu.Unlock()
	if selected {
		return g.Fetch()
	}
	return nil
}

// Selected reports whether the group is chosen for transfer.
func (g *Group) Selected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.selected
}

// SetItemSelected toggles one item's selection.
func (g *Group) SetItemSelected(i int, selected bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i >= 0 && i < len(g.items) {
		g.items[i].Selected = selected
	}
}

// SelectAllItems toggles every item's selection.
func (g *Group) SelectAllItems(selected bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.items {
		g.items[i].Selected = selected
	}
}

// SelectedItems returns a snapshot of the currently selected items.
func (g *Group) SelectedItems() []Item {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Item, 0, len(g.items))
	for _, it := range g.items {
		if it.Selected {
			out = append(out, it)
		}
	}
	return out
}

type groupJSON struct {
	Type        Kind   `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Open        bool   `json:"open,omitempty"`
	Items       []Item `json:"items"`
}

// MarshalJSON serializes the group with its type tag so it can be
// restored later.
func (g *Group) MarshalJSON() ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return json.Marshal(groupJSON{
		Type:        g.kind,
		Name:        g.name,
		Description: g.description,
		Open:        g.open,
		Items:       g.items,
	})
}

// GroupFromJSON restores a concrete (non-root) group from its JSON
// form. Restored groups carry their items and become ready on fetch.
func GroupFromJSON(data []byte) (*Group, error) {
	var raw groupJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode group: %w", err)
	}

	switch raw.Type {
	case KindArtists, KindAlbums, KindTracks:
		for i := range raw.Items {
			raw.Items[i].Selected = true
		}
		return NewGroup(raw.Type, raw.Name, raw.Items), nil
	case KindPlaylist:
		for i := range raw.Items {
			raw.Items[i].Selected = true
		}
		g := NewGroup(KindPlaylist, raw.Name, raw.Items)
		g.description = raw.Description
		g.open = raw.Open
		return g, nil
	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownGroupKind, raw.Type)
	}
}

// GroupsFromJSON restores a list of groups from a JSON array.
func GroupsFromJSON(data []byte) ([]*Group, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}

	groups := make([]*Group, 0, len(raws))
	for _, raw := range raws {
		g, err := GroupFromJSON(raw)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}
