package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"codescope/internal/embedder"
	"codescope/internal/graph"
	"codescope/internal/lang"
	"codescope/internal/semantic"
)

// project bundles the per-invocation state every subcommand needs: the
// dependency graph, the semantic index, and the components that built them.
type project struct {
	root    string
	graph   *graph.DependencyGraph
	index   *semantic.Index
	builder *graph.Builder
	client  embedder.Client
}

// openProject resolves path, then loads or builds both the dependency graph
// and the semantic index, reconciling each against its disk cache.
func openProject(ctx context.Context, path string, buildOpts semantic.BuildOptions) (*project, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	builder := graph.NewBuilder(lang.DefaultRegistry())
	cache := graph.NewCache(dir)

	// Detect staleness against the cached graph before LoadOrBuild
	// reconciles it; the semantic index reuses the same changed set.
	var changed []string
	cached := cache.Load(root)
	if cached != nil {
		changed = cache.DetectChangedFiles(cached)
	}

	g, err := cache.LoadOrBuild(ctx, builder, root, graph.DefaultOptions())
	if err != nil {
		return nil, err
	}
	if cached == nil {
		// No prior graph to diff against: any semantic cache must
		// reconcile every file the fresh graph knows about.
		for path := range g.Files {
			changed = append(changed, path)
		}
	}

	client := embedder.NewOllama(flagOllama, flagModel)
	manager := semantic.NewManager(client, nil, dir)
	idx, err := manager.LoadOrBuild(ctx, g, changed, buildOpts)
	if err != nil {
		return nil, err
	}

	return &project{
		root:    root,
		graph:   g,
		index:   idx,
		builder: builder,
		client:  client,
	}, nil
}
