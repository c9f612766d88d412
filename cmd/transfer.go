package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mtx/internal/providers"
	"github.com/desertthunder/mtx/internal/shared"
	"github.com/urfave/cli/v3"
)

// resolveAdapter returns the named adapter. The file provider is built
// per invocation since its import and export paths come from flags.
func (r *Runner) resolveAdapter(name, importPath, exportDir string) (providers.Adapter, error) {
	if name == providers.FileName {
		return providers.NewFile(importPath, exportDir, r.logger), nil
	}
	return r.adapter(name)
}

// TransferRun runs a complete transfer: fetch the source library,
// resolve each selected group against the target, and push the matches.
func (r *Runner) TransferRun(ctx context.Context, cmd *cli.Command) error {
	sourceName := cmd.String("source")
	targetName := cmd.String("target")
	if sourceName == targetName {
		return fmt.Errorf("%w: %q", shared.ErrSameProvider, sourceName)
	}

	importPath := cmd.String("import")
	exportDir := cmd.String("export-dir")

	source, err := r.resolveAdapter(sourceName, importPath, exportDir)
	if err != nil {
		return err
	}
	target, err := r.resolveAdapter(targetName, importPath, exportDir)
	if err != nil {
		return err
	}

	for _, adapter := range []providers.Adapter{source, target} {
		if cred := adapter.Credential(); cred != nil && !adapter.Authenticated() {
			return fmt.Errorf("%w: run `mtx auth login %s` first", shared.ErrNotAuthenticated, adapter.Name())
		}
	}

	root, err := source.Library(ctx)
	if err != nil {
		return err
	}
	// The root's own routine resolves the playlist children, so it must
	// run before the groups are picked.
	if err := root.Fetch(); err != nil {
		return fmt.Errorf("fetching %q: %w", root.Name(), err)
	}

	groups, err := pickGroups(root, cmd.StringSlice("group"))
	if err != nil {
		return err
	}
	for _, g := range groups {
		if err := g.Select(true); err != nil {
			r.logger.Warn("group fetch failed, skipping", "group", g.Name(), "error", err)
			g.Select(false)
		}
	}

	r.logger.Info("starting transfer", "source", sourceName, "target", targetName, "groups", len(groups))

	eng := r.engine(target)
	transfers, done := eng.Run(ctx, root)
	<-done

	for _, t := range transfers {
		r.writePlainln("%s: %s", t.Name(), t.StatusLine())
		for _, item := range t.Missing() {
			r.writePlain("  ✗ %s\n", item.Label())
		}
	}

	if exportDir != "" && len(transfers) > 0 {
		path, err := providers.WriteTransfers(exportDir, transfers)
		if err != nil {
			return err
		}
		r.writePlain("\n✓ Transfer record written to %s\n", path)
	}
	return nil
}
