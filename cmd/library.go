package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/desertthunder/mtx/internal/library"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/urfave/cli/v3"
)

// LibraryList fetches a provider's library and prints its groups, and
// optionally every item inside them.
func (r *Runner) LibraryList(ctx context.Context, cmd *cli.Command) error {
	provider := cmd.StringArg("provider")
	if provider == "" {
		return fmt.Errorf("%w: provider", shared.ErrMissingArgument)
	}

	adapter, err := r.adapter(provider)
	if err != nil {
		return err
	}
	if cred := adapter.Credential(); cred != nil && !adapter.Authenticated() {
		return fmt.Errorf("%w: run `mtx auth login %s` first", shared.ErrNotAuthenticated, provider)
	}

	root, err := adapter.Library(ctx)
	if err != nil {
		return err
	}
	// The root's own routine resolves the playlist children.
	if err := root.Fetch(); err != nil {
		return fmt.Errorf("fetching %q: %w", root.Name(), err)
	}

	children := root.Children()
	if cmd.Bool("items") {
		for _, g := range children {
			if err := g.Fetch(); err != nil {
				r.logger.Warn("group fetch failed", "group", g.Name(), "error", err)
			}
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(children, true)
	}

	r.writePlain("%s\n\n", root.Name())
	for _, g := range children {
		if g.Ready() {
			r.writePlain("  %s (%s, %d items)\n", g.Name(), g.Kind(), g.Len())
		} else {
			r.writePlain("  %s (%s)\n", g.Name(), g.Kind())
		}
		if cmd.Bool("items") {
			for _, item := range g.Items() {
				r.writePlain("    • %s\n", item.Label())
			}
		}
	}
	return nil
}

// LibraryExport fetches a provider's library, resolves every requested
// group, and writes the result as JSON.
func (r *Runner) LibraryExport(ctx context.Context, cmd *cli.Command) error {
	provider := cmd.StringArg("provider")
	if provider == "" {
		return fmt.Errorf("%w: provider", shared.ErrMissingArgument)
	}

	adapter, err := r.adapter(provider)
	if err != nil {
		return err
	}
	if cred := adapter.Credential(); cred != nil && !adapter.Authenticated() {
		return fmt.Errorf("%w: run `mtx auth login %s` first", shared.ErrNotAuthenticated, provider)
	}

	root, err := adapter.Library(ctx)
	if err != nil {
		return err
	}
	if err := root.Fetch(); err != nil {
		return fmt.Errorf("fetching %q: %w", root.Name(), err)
	}

	groups, err := pickGroups(root, cmd.StringSlice("group"))
	if err != nil {
		return err
	}
	for _, g := range groups {
		if err := g.Fetch(); err != nil {
			return fmt.Errorf("fetching %q: %w", g.Name(), err)
		}
	}

	output := cmd.String("output")
	if output == "" {
		return r.writeJSON(groups, true)
	}

	data, err := marshalGroups(groups)
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return err
	}
	r.logger.Info("library exported", "path", output, "groups", len(groups))
	return r.writePlain("✓ Exported %d groups to %s\n", len(groups), output)
}

// pickGroups filters root's children down to the requested names, or
// returns all of them when names is empty. Matching ignores case.
func pickGroups(root *library.Group, names []string) ([]*library.Group, error) {
	children := root.Children()
	if len(names) == 0 {
		return children, nil
	}

	normalized := make([]string, len(names))
	for i, n := range names {
		normalized[i] = shared.NormalizeName(n)
	}

	var picked []*library.Group
	for _, g := range children {
		if slices.Contains(normalized, shared.NormalizeName(g.Name())) {
			picked = append(picked, g)
		}
	}
	if len(picked) == 0 {
		return nil, fmt.Errorf("%w: no groups match %v", shared.ErrGroupNotFound, names)
	}
	return picked, nil
}

func marshalGroups(groups []*library.Group) ([]byte, error) {
	return json.MarshalIndent(groups, "", "  ")
}
