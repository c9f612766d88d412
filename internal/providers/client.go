package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/mtx/internal/fetch"
	"github.com/desertthunder/mtx/internal/shared"
)

// apiClient performs authenticated JSON requests for an adapter,
// mapping provider status codes onto the shared error taxonomy so the
// engines can decide what to retry.
type apiClient struct {
	http   *http.Client
	tokens fetch.TokenSource
	header http.Header
}

func newAPIClient(httpClient *http.Client, tokens fetch.TokenSource, header http.Header) *apiClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &apiClient{http: httpClient, tokens: tokens, header: header}
}

// do issues one request. A non-nil body is sent as JSON; a non-nil
// result receives the decoded response. 429 maps to
// [shared.ErrRateLimited], 401 invalidates the token and maps to
// [shared.ErrUnauthorized], other failures carry the response payload.
func (c *apiClient) do(ctx context.Context, method, url string, body, result any) error {
	token, ok := c.tokens.Token()
	if !ok {
		return shared.ErrNotAuthenticated
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range c.header {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return shared.ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized:
		io.Copy(io.Discard, resp.Body)
		c.tokens.Invalidate()
		return fmt.Errorf("%w: %s", shared.ErrUnauthorized, url)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: status %d: %s", shared.ErrRequestFailed, resp.StatusCode, payload)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return nil
}
