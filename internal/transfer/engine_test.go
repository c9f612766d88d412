package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/mtx/internal/auth"
	"github.com/desertthunder/mtx/internal/library"
	"github.com/desertthunder/mtx/internal/providers"
	"github.com/desertthunder/mtx/internal/shared"
	"golang.org/x/time/rate"
)

// mockAdapter is a scriptable in-memory target provider.
type mockAdapter struct {
	mu            sync.Mutex
	name          string
	batchLimit    int
	cred          *auth.Credential
	authenticated bool

	matches     map[string][]string // item name -> resolved ids
	queryErrs   map[string]error    // item name -> error
	rateLimited map[string]int      // item name -> 429s before success

	containerID  string
	containerErr error

	queries     []string
	pushes      [][]string
	failBatches map[int]error // push call index -> error
	containers  []providers.ContainerMeta
}

func newMockAdapter() *mockAdapter {
	return &mockAdapter{
		name:          "mock",
		batchLimit:    2,
		authenticated: true,
		matches:       map[string][]string{},
		queryErrs:     map[string]error{},
		rateLimited:   map[string]int{},
		containerID:   "container1",
		failBatches:   map[int]error{},
	}
}

func (m *mockAdapter) Name() string                 { return m.name }
func (m *mockAdapter) Credential() *auth.Credential { return m.cred }
func (m *mockAdapter) Authenticated() bool          { return m.authenticated }
func (m *mockAdapter) BatchLimit() int              { return m.batchLimit }

func (m *mockAdapter) Library(ctx context.Context) (*library.Group, error) {
	return nil, errors.New("mock has no library")
}

func (m *mockAdapter) Query(ctx context.Context, kind library.Kind, item library.Item) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if left := m.rateLimited[item.Name]; left > 0 {
		m.rateLimited[item.Name] = left - 1
		return nil, shared.ErrRateLimited
	}
	m.queries = append(m.queries, item.Name)
	if err := m.queryErrs[item.Name]; err != nil {
		return nil, err
	}
	return m.matches[item.Name], nil
}

func (m *mockAdapter) PushBatch(ctx context.Context, kind library.Kind, containerID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := len(m.pushes)
	m.pushes = append(m.pushes, append([]string(nil), ids...))
	return m.failBatches[call]
}

func (m *mockAdapter) CreateContainer(ctx context.Context, meta providers.ContainerMeta) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers = append(m.containers, meta)
	if m.containerErr != nil {
		return "", m.containerErr
	}
	return m.containerID, nil
}

func (m *mockAdapter) queryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

func (m *mockAdapter) pushed() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.pushes))
	copy(out, m.pushes)
	return out
}

func fastEngine(target providers.Adapter) *Engine {
	return New(target, Options{
		Limiter:     rate.NewLimiter(rate.Inf, 1),
		BackoffBase: time.Millisecond,
		Jitter:      time.Microsecond,
		Workers:     2,
	})
}

func trackGroup(names ...string) *library.Group {
	items := make([]library.Item, len(names))
	for i, n := range names {
		items[i] = library.NewItem(n, nil, nil)
	}
	g := library.NewGroup(library.KindTracks, "Tracks", items)
	g.Select(true)
	return g
}

func runOne(t *testing.T, e *Engine, g *library.Group) *library.Transfer {
	t.Helper()
	transfers, done := e.Run(context.Background(), g)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("transfer did not finish")
	}
	if len(transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(transfers))
	}
	return transfers[0]
}

func TestEngineRun(t *testing.T) {
	t.Run("AllMatchedAndPushed", func(t *testing.T) {
		mock := newMockAdapter()
		for i, n := range []string{"a", "b", "c"} {
			mock.matches[n] = []string{fmt.Sprintf("id%d", i)}
		}

		tr := runOne(t, fastEngine(mock), trackGroup("a", "b", "c"))

		if tr.Status() != library.StatusCompleted {
			t.Fatalf("expected completed, got %s", tr.Status())
		}
		if tr.Transferred() != 3 || len(tr.Missing()) != 0 {
			t.Errorf("expected 3 transferred and none missing, got %d/%d", tr.Transferred(), len(tr.Missing()))
		}

		pushes := mock.pushed()
		if len(pushes) != 2 || len(pushes[0]) != 2 || len(pushes[1]) != 1 {
			t.Errorf("expected batches of 2 then 1, got %v", pushes)
		}
		if pushes[0][0] != "id0" || pushes[0][1] != "id1" || pushes[1][0] != "id2" {
			t.Errorf("batches must keep item order, got %v", pushes)
		}
	})

	t.Run("FailedBatchGoesMissing", func(t *testing.T) {
		mock := newMockAdapter()
		for _, n := range []string{"a", "b", "c", "d", "e", "f"} {
			mock.matches[n] = []string{n + "-id"}
		}
		mock.failBatches[1] = errors.New("push rejected")

		tr := runOne(t, fastEngine(mock), trackGroup("a", "b", "c", "d", "e", "f"))

		if tr.Status() != library.StatusCompleted {
			t.Fatalf("a failed batch must not abort the transfer, got %s", tr.Status())
		}
		missing := tr.Missing()
		if len(missing) != 2 {
			t.Fatalf("expected the failed batch missing, got %d", len(missing))
		}
		if missing[0].Name != "c" || missing[1].Name != "d" {
			t.Errorf("unexpected missing items %v", missing)
		}
		if tr.Transferred() != 6 {
			t.Errorf("every item must be accounted, got %d", tr.Transferred())
		}
	})

	t.Run("NoMatchRecordedAsMiss", func(t *testing.T) {
		mock := newMockAdapter()
		mock.matches["a"] = []string{"a-id"}
		// "b" resolves to nothing, "c" errors out.
		mock.queryErrs["c"] = errors.New("catalog unavailable")

		tr := runOne(t, fastEngine(mock), trackGroup("a", "b", "c"))

		if tr.Status() != library.StatusCompleted {
			t.Fatalf("expected completed, got %s", tr.Status())
		}
		if got := len(tr.Missing()); got != 2 {
			t.Errorf("expected 2 missing, got %d", got)
		}
		if tr.Transferred() != 3 {
			t.Errorf("expected all items accounted, got %d", tr.Transferred())
		}
		pushes := mock.pushed()
		if len(pushes) != 1 || len(pushes[0]) != 1 || pushes[0][0] != "a-id" {
			t.Errorf("only the match must be pushed, got %v", pushes)
		}
	})

	t.Run("RateLimitedQueryRetries", func(t *testing.T) {
		mock := newMockAdapter()
		mock.matches["a"] = []string{"a-id"}
		mock.rateLimited["a"] = 2

		tr := runOne(t, fastEngine(mock), trackGroup("a"))

		if tr.Status() != library.StatusCompleted || len(tr.Missing()) != 0 {
			t.Errorf("rate limited lookups must retry to success, got %s with %d missing", tr.Status(), len(tr.Missing()))
		}
	})

	t.Run("AlreadyMatchedItemsSkipQueries", func(t *testing.T) {
		mock := newMockAdapter()
		mock.matches["b"] = []string{"b-id"}

		items := []library.Item{
			library.NewItem("a", nil, map[string]string{"mock": "cached-id"}),
			library.NewItem("b", nil, nil),
		}
		g := library.NewGroup(library.KindTracks, "Tracks", items)
		g.Select(true)

		tr := runOne(t, fastEngine(mock), g)

		if mock.queryCount() != 1 {
			t.Errorf("pre-resolved items must not be re-queried, got %d queries", mock.queryCount())
		}
		pushes := mock.pushed()
		if len(pushes) != 1 || len(pushes[0]) != 2 || pushes[0][0] != "cached-id" {
			t.Errorf("cached match must be pushed, got %v", pushes)
		}
		if tr.Status() != library.StatusCompleted {
			t.Errorf("expected completed, got %s", tr.Status())
		}
	})

	t.Run("PlaylistCreatesContainerFirst", func(t *testing.T) {
		mock := newMockAdapter()
		mock.matches["a"] = []string{"a-id"}

		g := library.NewPlaylistGroup("Road Trip", "summer", true, nil)
		g.Add(library.NewItem("a", nil, nil))
		g.Complete()
		g.Select(true)

		tr := runOne(t, fastEngine(mock), g)

		if tr.Status() != library.StatusCompleted {
			t.Fatalf("expected completed, got %s", tr.Status())
		}
		if len(mock.containers) != 1 {
			t.Fatalf("expected one container, got %d", len(mock.containers))
		}
		meta := mock.containers[0]
		if meta.Name != "Road Trip" || meta.Description != "summer" || !meta.Open {
			t.Errorf("container metadata must come from the playlist, got %+v", meta)
		}
	})

	t.Run("ContainerFailureAbortsBeforeQueries", func(t *testing.T) {
		mock := newMockAdapter()
		mock.containerErr = errors.New("quota exceeded")

		g := library.NewPlaylistGroup("Mix", "", false, nil)
		g.Add(library.NewItem("a", nil, nil))
		g.Complete()
		g.Select(true)

		tr := runOne(t, fastEngine(mock), g)

		if tr.Status() != library.StatusAborted {
			t.Fatalf("container failure must abort, got %s", tr.Status())
		}
		if mock.queryCount() != 0 {
			t.Error("no item work must happen after an aborted container")
		}
		if len(mock.pushed()) != 0 {
			t.Error("nothing must be pushed after an abort")
		}
	})

	t.Run("UnauthenticatedTargetAborts", func(t *testing.T) {
		mock := newMockAdapter()
		mock.cred = &auth.Credential{ClientID: "x"}
		mock.authenticated = false

		tr := runOne(t, fastEngine(mock), trackGroup("a"))
		if tr.Status() != library.StatusAborted {
			t.Errorf("expected aborted, got %s", tr.Status())
		}
		if mock.queryCount() != 0 {
			t.Error("no queries must run against an unauthenticated target")
		}
	})

	t.Run("FetchFailureAborts", func(t *testing.T) {
		mock := newMockAdapter()
		g := library.NewLazyGroup(library.KindTracks, "Tracks", func(*library.Group) error {
			return errors.New("source unavailable")
		})
		if err := g.Select(true); err == nil {
			t.Fatal("selecting must surface the fetch error")
		}

		tr := runOne(t, fastEngine(mock), g)
		if tr.Status() != library.StatusAborted {
			t.Errorf("expected aborted, got %s", tr.Status())
		}
	})

	t.Run("RootExpandsToSelectedChildren", func(t *testing.T) {
		mock := newMockAdapter()
		mock.matches["a"] = []string{"a-id"}

		picked := trackGroup("a")
		skipped := library.NewGroup(library.KindAlbums, "Albums", nil)
		root := library.NewAll([]*library.Group{picked, skipped}, nil)

		transfers, done := fastEngine(mock).Run(context.Background(), root)
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("transfers did not finish")
		}

		if len(transfers) != 1 {
			t.Fatalf("only selected children transfer, got %d", len(transfers))
		}
		if transfers[0].Kind() != library.KindTracks {
			t.Errorf("unexpected transfer kind %s", transfers[0].Kind())
		}
	})
}
