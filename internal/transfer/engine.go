// package transfer drives whole transfers: it resolves each source
// item against the target provider, then pushes the matches in batches
// sized to what the target accepts.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtx/internal/library"
	"github.com/desertthunder/mtx/internal/providers"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Limiter     *rate.Limiter
	Logger      *log.Logger
	BackoffBase time.Duration
	Jitter      time.Duration
	Workers     int // concurrent match lookups per transfer
}

// Engine runs transfers against a single target provider.
type Engine struct {
	target      providers.Adapter
	limiter     *rate.Limiter
	logger      *log.Logger
	backoffBase time.Duration
	jitter      time.Duration
	workers     int
}

// New creates an Engine pushing into target.
func New(target providers.Adapter, opts Options) *Engine {
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Limit(5), 1)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.Jitter <= 0 {
		opts.Jitter = opts.BackoffBase / 2
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Engine{
		target:      target,
		limiter:     opts.Limiter,
		logger:      shared.WithLogger(opts.Logger, "target", target.Name()),
		backoffBase: opts.BackoffBase,
		jitter:      opts.Jitter,
		workers:     opts.Workers,
	}
}

// Run starts one transfer per selected group under root, or a single
// transfer when root has no children. It returns the transfers
// immediately along with a channel closed once every one has finished.
func (e *Engine) Run(ctx context.Context, root *library.Group) ([]*library.Transfer, <-chan struct{}) {
	groups := root.Children()
	if len(groups) == 0 {
		groups = []*library.Group{root}
	} else {
		selected := make([]*library.Group, 0, len(groups))
		for _, g := range groups {
			if g.Selected() {
				selected = append(selected, g)
			}
		}
		groups = selected
	}

	transfers := make([]*library.Transfer, len(groups))
	for i, g := range groups {
		transfers[i] = library.NewTransfer(g)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var eg errgroup.Group
		for i := range groups {
			g, t := groups[i], transfers[i]
			eg.Go(func() error {
				e.run(ctx, g, t)
				return nil
			})
		}
		eg.Wait()
	}()
	return transfers, done
}

func (e *Engine) run(ctx context.Context, g *library.Group, t *library.Transfer) {
	logger := shared.WithLogger(e.logger, "transfer", t.Name())

	if cred := e.target.Credential(); cred != nil && !e.target.Authenticated() {
		logger.Error("target not authenticated", "err", shared.ErrNotAuthenticated)
		t.Abort()
		return
	}

	if err := g.Fetch(); err != nil {
		logger.Error("fetch failed", "err", err)
		t.Abort()
		return
	}

	containerID := ""
	if t.Kind() == library.KindPlaylist {
		meta := providers.ContainerMeta{Name: t.Name(), Description: t.Description(), Open: t.Open()}
		var err error
		containerID, err = e.createContainer(ctx, meta)
		if err != nil {
			logger.Error("container creation failed", "err", fmt.Errorf("%w: %v", shared.ErrContainerCreation, err))
			t.Abort()
			return
		}
	}

	if err := e.match(ctx, t); err != nil {
		logger.Error("matching aborted", "err", err)
		t.Abort()
		return
	}

	t.BeginPush()
	if err := e.push(ctx, t, containerID); err != nil {
		logger.Error("push aborted", "err", err)
		t.Abort()
		return
	}

	t.Complete()
	logger.Info("transfer completed", "items", t.Len(), "missing", len(t.Missing()))
}

// match resolves every unresolved item concurrently under the worker
// limit. Lookup failures and empty results both count as misses.
func (e *Engine) match(ctx context.Context, t *library.Transfer) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers)

	for i, item := range t.Items() {
		if _, ok := item.Match(e.target.Name()); ok {
			continue
		}
		eg.Go(func() error {
			if err := e.limiter.Wait(ctx); err != nil {
				return err
			}
			e.matchItem(ctx, t, i, item)
			return ctx.Err()
		})
	}
	return eg.Wait()
}

func (e *Engine) matchItem(ctx context.Context, t *library.Transfer, i int, item library.Item) {
	var ids []string
	err := e.withRetry(ctx, func(ctx context.Context) error {
		var qerr error
		ids, qerr = e.target.Query(ctx, t.Kind(), item)
		return qerr
	})
	if err != nil || len(ids) == 0 {
		if err != nil {
			e.logger.Warn("lookup failed", "item", item.Label(), "err", err)
		}
		t.RecordMiss(i, e.target.Name())
		return
	}
	t.RecordMatch(i, e.target.Name(), ids[0])
}

type batch struct {
	indexes []int
	ids     []string
}

// push sends matched ids in order, in batches of the target's limit. A
// failed batch marks its items missing and the transfer moves on.
func (e *Engine) push(ctx context.Context, t *library.Transfer, containerID string) error {
	limit := e.target.BatchLimit()
	var batches []batch
	var cur batch
	for i, item := range t.Items() {
		id, ok := item.Match(e.target.Name())
		if !ok || id == "" {
			continue
		}
		cur.indexes = append(cur.indexes, i)
		cur.ids = append(cur.ids, id)
		if len(cur.ids) == limit {
			batches = append(batches, cur)
			cur = batch{}
		}
	}
	if len(cur.ids) > 0 {
		batches = append(batches, cur)
	}

	for _, b := range batches {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		err := e.withRetry(ctx, func(ctx context.Context) error {
			return e.target.PushBatch(ctx, t.Kind(), containerID, b.ids)
		})
		if err != nil {
			e.logger.Warn("batch push failed", "size", len(b.ids), "err", err)
			t.MarkBatchMissing(b.indexes)
		}
		t.Advance(len(b.indexes))
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) createContainer(ctx context.Context, meta providers.ContainerMeta) (string, error) {
	var id string
	err := e.withRetry(ctx, func(ctx context.Context) error {
		var cerr error
		id, cerr = e.target.CreateContainer(ctx, meta)
		return cerr
	})
	return id, err
}

// withRetry runs fn, backing off and retrying for as long as the
// target keeps rate limiting. Any other error is final.
func (e *Engine) withRetry(ctx context.Context, fn func(context.Context) error) error {
	backoff := retry.WithJitter(e.jitter, retry.NewExponential(e.backoffBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, shared.ErrRateLimited) {
			e.logger.Debug("rate limited, backing off")
			return retry.RetryableError(err)
		}
		return err
	})
}
