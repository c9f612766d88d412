package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/mtx/internal/auth"
	"github.com/desertthunder/mtx/internal/shared"
)

// CallbackHandler receives the OAuth redirect and completes the code
// exchange for whichever provider has a login pending.
//
// It only processes one callback to prevent replay attacks.
type CallbackHandler struct {
	resolve    func() (*auth.Authorizer, bool)
	resultChan chan error
	once       sync.Once
	mu         sync.Mutex
	hit        bool
}

// NewCallbackHandler creates a handler. resolve returns the authorizer
// whose login is currently pending, if any.
func NewCallbackHandler(resolve func() (*auth.Authorizer, bool)) *CallbackHandler {
	return &CallbackHandler{
		resolve:    resolve,
		resultChan: make(chan error, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP validates the redirect parameters and runs the exchange,
// reporting the outcome on the result channel and as an HTML page.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	authorizer, ok := h.resolve()
	if !ok {
		h.send(shared.ErrNoLoginPending)
		http.Error(w, "No login in progress", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	if code := query.Get("code"); code == "" {
		err := fmt.Errorf("%w: %s - %s", shared.ErrExchangeFailed, query.Get("error"), query.Get("error_description"))
		h.send(err)
		h.renderFailure(w, "Authorization was denied.")
		return
	}

	err := authorizer.Exchange(r.Context(), query.Get("code"), query.Get("state"))
	h.send(err)
	if err != nil {
		h.renderFailure(w, "Token exchange failed.")
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, callbackPage, "✓ Authorization Successful", "You can close this window and return to the terminal.")
}

func (h *CallbackHandler) renderFailure(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusBadRequest)
	fmt.Fprintf(w, callbackPage, "Authorization Failed", detail)
}

func (h *CallbackHandler) send(err error) {
	h.once.Do(func() {
		h.resultChan <- err
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving login completion.
//
// The channel receives exactly one value and is then closed.
func (h *CallbackHandler) Result() <-chan error {
	return h.resultChan
}

const callbackPage = `
<!DOCTYPE html>
<html>
<head>
    <title>mtx</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #333; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%s</h1>
        <p>%s</p>
    </div>
</body>
</html>
`
