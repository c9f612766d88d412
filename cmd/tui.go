package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/desertthunder/mtx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for library transfer.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.session.SetSource(cmd.String("source")); err != nil {
		return err
	}
	if err := r.session.SetTarget(cmd.String("target")); err != nil {
		return err
	}

	source, _ := r.session.Source()
	target, _ := r.session.Target()
	if cred := source.Credential(); cred != nil && !source.Authenticated() {
		return fmt.Errorf("%w: run `mtx auth login %s` first", shared.ErrNotAuthenticated, source.Name())
	}
	if cred := target.Credential(); cred != nil && !target.Authenticated() {
		return fmt.Errorf("%w: run `mtx auth login %s` first", shared.ErrNotAuthenticated, target.Name())
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/mtx-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, source, r.engine(target))
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
