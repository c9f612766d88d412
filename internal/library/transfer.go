package library

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/desertthunder/mtx/internal/shared"
)

// Status enumerates the phases of a transfer. Completed and Aborted are
// terminal; a transfer reaches a terminal status exactly once and is
// never mutated afterward.
type Status int

const (
	StatusFetching Status = iota + 1
	StatusMatching
	StatusPushing
	StatusCompleted
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusFetching:
		return "fetching"
	case StatusMatching:
		return "matching"
	case StatusPushing:
		return "pushing"
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	default:
		return ""
	}
}

// Transfer wraps a source group for the duration of a transfer,
// tracking the frozen item subset, progress, and the items missing on
// the target. All mutation is serialized behind its mutex; the engine
// that created a transfer is its only writer.
type Transfer struct {
	mu          sync.Mutex
	id          string
	kind        Kind
	name        string
	description string
	open        bool
	items       []Item
	missing     []Item
	missed      map[int]struct{}
	transferred int
	status      Status
	callbacks   []func()
}

// NewTransfer creates a transfer over group in the fetching phase. Once
// the group becomes ready the transfer freezes the selected subset of
// its items and moves to matching.
func NewTransfer(group *Group) *Transfer {
	t := &Transfer{
		id:          shared.GenerateID(),
		kind:        group.Kind(),
		name:        group.Name(),
		description: group.Description(),
		open:        group.Open(),
		items:       group.Items(),
		missed:      map[int]struct{}{},
		status:      StatusFetching,
	}
	group.OnReady(func() {
		t.freeze(group.SelectedItems())
	})
	return t
}

// freeze pins the item set to the selected subset observed at group
// readiness. Items are deep-copied so later match writes never race
// with readers of the group.
func (t *Transfer) freeze(items []Item) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusFetching {
		return
	}
	t.items = make([]Item, len(items))
	for i, it := range items {
		t.items[i] = it.clone()
	}
	t.status = StatusMatching
}

// ID returns the transfer's unique id.
func (t *Transfer) ID() string { return t.id }

// Kind returns the wrapped group's type.
func (t *Transfer) Kind() Kind { return t.kind }

// Name returns the wrapped group's name.
func (t *Transfer) Name() string { return t.name }

// Description returns the playlist description, empty for other kinds.
func (t *Transfer) Description() string { return t.description }

// Open reports playlist visibility.
func (t *Transfer) Open() bool { return t.open }

// Status returns the current phase.
func (t *Transfer) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Done reports whether the transfer reached a terminal status.
func (t *Transfer) Done() bool {
	s := t.Status()
	return s == StatusCompleted || s == StatusAborted
}

// Len returns the frozen item count.
func (t *Transfer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Items returns a snapshot of the frozen items.
func (t *Transfer) Items() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Item(nil), t.items...)
}

// Item returns the item at index i.
func (t *Transfer) Item(i int) (Item, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.items) {
		return Item{}, false
	}
	return t.items[i], true
}

// Transferred returns the number of accounted items.
func (t *Transfer) Transferred() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transferred
}

// Missing returns the items that could not be matched or pushed on the
// target, in the order they were recorded.
func (t *Transfer) Missing() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Item(nil), t.missing...)
}

// RecordMatch stores the target-resolved id for item i. Ignored after a
// terminal status; the id itself is written at most once per provider.
func (t *Transfer) RecordMatch(i int, provider, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminal() || i < 0 || i >= len(t.items) {
		return
	}
	t.items[i].SetMatch(provider, id)
}

// RecordMiss marks item i missing after a failed match: an empty id is
// recorded so the item is never re-queried, the item joins the missing
// list once, and it counts as accounted.
func (t *Transfer) RecordMiss(i int, provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminal() || i < 0 || i >= len(t.items) {
		return
	}
	t.items[i].SetMatch(provider, "")
	if _, seen := t.missed[i]; seen {
		return
	}
	t.missed[i] = struct{}{}
	t.missing = append(t.missing, t.items[i])
	t.transferred++
}

// MarkBatchMissing adds every item of a failed push batch to the
// missing list. Items already missing are not added twice.
func (t *Transfer) MarkBatchMissing(indexes []int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminal() {
		return
	}
	for _, i := range indexes {
		if i < 0 || i >= len(t.items) {
			continue
		}
		if _, seen := t.missed[i]; seen {
			continue
		}
		t.missed[i] = struct{}{}
		t.missing = append(t.missing, t.items[i])
	}
}

// Advance accounts n items as processed, whether their batch push
// succeeded or failed.
func (t *Transfer) Advance(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.terminal() {
		return
	}
	t.transferred += n
}

// BeginPush moves the transfer from matching to pushing.
func (t *Transfer) BeginPush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusMatching {
		t.status = StatusPushing
	}
}

// Complete marks the transfer completed and fires readiness callbacks.
// No-op if already terminal.
func (t *Transfer) Complete() { t.finish(StatusCompleted) }

// Abort abandons the whole transfer after a precondition failure and
// fires readiness callbacks. No-op if already terminal.
func (t *Transfer) Abort() { t.finish(StatusAborted) }

func (t *Transfer) finish(s Status) {
	t.mu.Lock()
	if t.terminal() {
		t.mu.Unlock()
		return
	}
	t.status = s
	callbacks := t.callbacks
	t.callbacks = nil
	t.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// OnReady registers fn to run once the transfer reaches a terminal
// status; fn runs synchronously when the transfer is already terminal.
// Each registration fires at most once.
func (t *Transfer) OnReady(fn func()) {
	t.mu.Lock()
	if t.terminal() {
		t.mu.Unlock()
		fn()
		return
	}
	t.callbacks = append(t.callbacks, fn)
	t.mu.Unlock()
}

func (t *Transfer) terminal() bool {
	return t.status == StatusCompleted || t.status == StatusAborted
}

// StatusLine renders the transfer state for display.
func (t *Transfer) StatusLine() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.status {
	case StatusFetching:
		return fmt.Sprintf("Fetching (%d items)", len(t.items))
	case StatusMatching:
		return fmt.Sprintf("Matching (%d items)", len(t.items))
	case StatusPushing:
		return fmt.Sprintf("Transferring (%d items)", t.transferred)
	case StatusCompleted:
		return fmt.Sprintf("Completed (%d missing)", len(t.missing))
	default:
		return "Transfer Aborted"
	}
}

// MarshalJSON serializes the transfer as a restorable group.
func (t *Transfer) MarshalJSON() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return json.Marshal(groupJSON{
		Type:        t.kind,
		Name:        t.name,
		Description: t.description,
		Open:        t.open,
		Items:       t.items,
	})
}
