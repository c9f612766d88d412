package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtx/internal/auth"
	"github.com/desertthunder/mtx/internal/providers"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/desertthunder/mtx/internal/store"
	"github.com/desertthunder/mtx/internal/transfer"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	store       store.Store
	pending     *store.PendingSlot
	authorizers map[string]*auth.Authorizer
	session     *transfer.Session
	logger      *log.Logger
	output      io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	Store       store.Store
	Pending     *store.PendingSlot
	Authorizers map[string]*auth.Authorizer
	Session     *transfer.Session
	Logger      *log.Logger
	Output      io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	if opts.Pending == nil {
		opts.Pending = store.NewPendingSlot(opts.Store)
	}
	if opts.Authorizers == nil {
		opts.Authorizers = map[string]*auth.Authorizer{}
	}

	return &Runner{
		config:      opts.Config,
		store:       opts.Store,
		pending:     opts.Pending,
		authorizers: opts.Authorizers,
		session:     opts.Session,
		logger:      opts.Logger,
		output:      opts.Output,
	}
}

// SetLogger swaps the Runner's logger.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, libraryCommand, transferCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// authorizer looks up the OAuth authorizer for the named provider.
func (r *Runner) authorizer(provider string) (*auth.Authorizer, error) {
	a, ok := r.authorizers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", shared.ErrProviderNotFound, provider)
	}
	return a, nil
}

// adapter looks up the named provider adapter from the session.
func (r *Runner) adapter(provider string) (providers.Adapter, error) {
	return r.session.Adapter(provider)
}

// engine builds a transfer engine pushing into target, tuned from config.
func (r *Runner) engine(target providers.Adapter) *transfer.Engine {
	limit := r.config.Transfer.RateLimit
	if limit <= 0 {
		limit = 5
	}
	return transfer.New(target, transfer.Options{
		Limiter: rate.NewLimiter(rate.Limit(limit), 1),
		Logger:  r.logger,
		Workers: r.config.Transfer.Workers,
	})
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
