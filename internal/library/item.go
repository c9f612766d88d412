package library

import "fmt"

// Identifier keys shared across providers. Provider names themselves
// are also used as keys to hold that provider's resolved id for an
// item, e.g. Identifiers["spotify"] = "4uLU6hMC...".
const (
	IDISRC = "isrc"
	IDUPC  = "upc"
)

// Item is a single semantic unit of a library: a track, an album or an
// artist. Identifiers carries provider-neutral matching keys (ISRC,
// UPC) plus per-provider resolved ids. Items are immutable except for
// the matched id, which is written at most once per provider.
type Item struct {
	Name        string            `json:"name"`
	Artists     []string          `json:"artists,omitempty"`
	Identifiers map[string]string `json:"identifiers,omitempty"`
	Selected    bool              `json:"-"`
}

// NewItem creates a selected Item with the given identifiers.
func NewItem(name string, artists []string, identifiers map[string]string) Item {
	if identifiers == nil {
		identifiers = map[string]string{}
	}
	return Item{Name: name, Artists: artists, Identifiers: identifiers, Selected: true}
}

// Identifier returns the identifier stored under key, reporting absence.
func (it Item) Identifier(key string) (string, bool) {
	v, ok := it.Identifiers[key]
	return v, ok
}

// Match returns the id resolved on the given provider. The second
// return distinguishes "never queried" from a recorded empty id, which
// marks a failed match that must not be re-queried.
func (it Item) Match(provider string) (string, bool) {
	v, ok := it.Identifiers[provider]
	return v, ok
}

// SetMatch records the id resolved on the given provider. The write
// happens at most once; later calls are ignored. Reports whether the
// id was recorded.
func (it *Item) SetMatch(provider, id string) bool {
	if it.Identifiers == nil {
		it.Identifiers = map[string]string{}
	}
	if _, ok := it.Identifiers[provider]; ok {
		return false
	}
	it.Identifiers[provider] = id
	return true
}

// Label renders the item for display, appending the first artist when
// one is known.
func (it Item) Label() string {
	if len(it.Artists) > 0 {
		return fmt.Sprintf("%s (%s)", it.Name, it.Artists[0])
	}
	return it.Name
}

func (it Item) clone() Item {
	out := it
	out.Artists = append([]string(nil), it.Artists...)
	out.Identifiers = make(map[string]string, len(it.Identifiers))
	for k, v := range it.Identifiers {
		out.Identifiers[k] = v
	}
	return out
}
