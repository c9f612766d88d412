// package fetch implements cursor pagination with retry against
// provider APIs, assembling pages of items into library groups.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtx/internal/library"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

// TokenSource supplies the bearer token for requests and drops it when
// a provider rejects it. [auth.Authorizer] implements it.
type TokenSource interface {
	Token() (string, bool)
	Invalidate()
}

// Page is one mapped response page: the items it carried in server
// order and the URL of the next page, empty on the last one.
type Page struct {
	Next  string
	Items []library.Item
}

// Mapper converts one raw response body into a Page.
type Mapper func(body []byte) (Page, error)

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Client      *http.Client
	Limiter     *rate.Limiter
	Logger      *log.Logger
	Header      http.Header   // extra headers sent on every request
	BackoffBase time.Duration // first rate-limit retry delay
	Jitter      time.Duration
	Repaint     func() // progress hook, fired after each successful page
}

// Engine walks cursor-bearing endpoints. One engine is shared by all
// fetches of a provider so pacing and headers are uniform.
type Engine struct {
	client      *http.Client
	limiter     *rate.Limiter
	logger      *log.Logger
	header      http.Header
	backoffBase time.Duration
	jitter      time.Duration
	repaint     func()
}

// New creates an Engine from opts.
func New(opts Options) *Engine {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
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
	return &Engine{
		client:      opts.Client,
		limiter:     opts.Limiter,
		logger:      opts.Logger,
		header:      opts.Header,
		backoffBase: opts.BackoffBase,
		jitter:      opts.Jitter,
		repaint:     opts.Repaint,
	}
}

// Fetch walks the pages starting at initialURL, appending mapped items
// to group in page order, and marks the group ready after the last
// page. On failure the group is left not-ready and the error surfaced;
// rate-limit responses are retried on the same URL and never surface.
func (e *Engine) Fetch(ctx context.Context, group *library.Group, initialURL string, tokens TokenSource, mapper Mapper) error {
	err := e.Walk(ctx, initialURL, tokens, func(body []byte) (string, error) {
		page, err := mapper(body)
		if err != nil {
			return "", err
		}
		if len(page.Items) > 0 {
			group.Add(page.Items...)
		}
		return page.Next, nil
	})
	if err != nil {
		return err
	}
	group.Complete()
	return nil
}

// Walk requests url, hands the body to handle, and follows the returned
// next URL until it is empty. Each page request retries indefinitely
// with growing backoff while the provider answers 429; the attempt
// counter resets after every successful page. Any other failure aborts
// the walk. The repaint hook fires after each successful page.
func (e *Engine) Walk(ctx context.Context, url string, tokens TokenSource, handle func(body []byte) (next string, err error)) error {
	for url != "" {
		body, err := e.page(ctx, url, tokens)
		if err != nil {
			return err
		}

		next, err := handle(body)
		if err != nil {
			return fmt.Errorf("failed to map page %s: %w", url, err)
		}
		if e.repaint != nil {
			e.repaint()
		}
		url = next
	}
	return nil
}

// page requests a single URL, retrying only on rate limiting. The
// backoff between attempts is exponential with jitter, so delays are
// monotonically non-decreasing in expectation.
func (e *Engine) page(ctx context.Context, url string, tokens TokenSource) ([]byte, error) {
	var body []byte
	backoff := retry.WithJitter(e.jitter, retry.NewExponential(e.backoffBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}

		data, err := e.get(ctx, url, tokens)
		if err != nil {
			if errors.Is(err, shared.ErrRateLimited) {
				e.logger.Warn("rate limited, backing off", "url", url)
				return retry.RetryableError(err)
			}
			return err
		}
		body = data
		return nil
	})
	return body, err
}

func (e *Engine) get(ctx context.Context, url string, tokens TokenSource) ([]byte, error) {
	token, ok := tokens.Token()
	if !ok {
		return nil, shared.ErrNotAuthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	for key, values := range e.header {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return nil, shared.ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized:
		io.Copy(io.Discard, resp.Body)
		tokens.Invalidate()
		return nil, fmt.Errorf("%w: %s", shared.ErrUnauthorized, url)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("%w: status %d: %s", shared.ErrRequestFailed, resp.StatusCode, payload)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}
