package graph

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolverFixture(t *testing.T) (*Resolver, *DependencyGraph, string, string) {
	t.Helper()
	root := writeProject(t, map[string]string{
		"src/utils.ts": utilsTS,
		"src/main.ts":  mainTS,
		"src/other.ts": "export function orphanFn() {\n  return 7;\n}\n",
	})
	b, g := buildTestGraph(t, root)
	mainPath := filepath.Join(root, "src", "main.ts")
	utilsPath := filepath.Join(root, "src", "utils.ts")
	return NewResolver(b, nil), g, mainPath, utilsPath
}

func TestResolveSymbolLocal(t *testing.T) {
	r, g, mainPath, _ := resolverFixture(t)

	ref := r.ResolveSymbol("renderUser", mainPath, g)
	assert.Equal(t, RefLocal, ref.Kind)
	assert.Equal(t, mainPath, ref.DefinitionFile)
	assert.Equal(t, 1.0, ref.Confidence)
	require.NotNil(t, ref.Definition)
	assert.Contains(t, ref.Definition.Code, "renderUser")
}

func TestResolveSymbolImportedProject(t *testing.T) {
	r, g, mainPath, utilsPath := resolverFixture(t)

	ref := r.ResolveSymbol("formatDate", mainPath, g)
	assert.Equal(t, RefProject, ref.Kind)
	assert.Equal(t, 1.0, ref.Confidence)
	assert.True(t, strings.HasSuffix(ref.DefinitionFile, "utils.ts"))
	assert.Equal(t, utilsPath, ref.DefinitionFile)
	require.NotNil(t, ref.Definition)
	assert.Contains(t, ref.Definition.Code, "function formatDate")
}

func TestResolveSymbolImportedExternal(t *testing.T) {
	r, g, mainPath, _ := resolverFixture(t)

	ref := r.ResolveSymbol("React", mainPath, g)
	assert.Equal(t, RefExternal, ref.Kind)
	assert.Equal(t, "react", ref.DefinitionFile)
	assert.Equal(t, 1.0, ref.Confidence)
	assert.Nil(t, ref.Definition, "external definitions have no project source")
}

func TestResolveSymbolGlobalExported(t *testing.T) {
	r, g, mainPath, _ := resolverFixture(t)

	// orphanFn is exported project-wide but not imported by main.ts, so the
	// link is inferred at reduced confidence.
	ref := r.ResolveSymbol("orphanFn", mainPath, g)
	assert.Equal(t, RefProject, ref.Kind)
	assert.Equal(t, 0.7, ref.Confidence)
	assert.True(t, strings.HasSuffix(ref.DefinitionFile, "other.ts"))
}

func TestResolveSymbolUnknown(t *testing.T) {
	r, g, mainPath, _ := resolverFixture(t)

	ref := r.ResolveSymbol("someUnknownFunction", mainPath, g)
	assert.Equal(t, RefUnknown, ref.Kind)
	assert.Equal(t, 0.0, ref.Confidence)
	assert.Empty(t, ref.DefinitionFile)
	assert.Nil(t, ref.Definition)
}

func TestResolveSymbolUnexportedNotInferred(t *testing.T) {
	r, g, mainPath, _ := resolverFixture(t)

	// privateHelper exists in utils.ts but is not exported, so the
	// project-wide fallback must not surface it.
	ref := r.ResolveSymbol("privateHelper", mainPath, g)
	assert.Equal(t, RefUnknown, ref.Kind)
	assert.Equal(t, 0.0, ref.Confidence)
}

func TestExcerptCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("export function bigFn() {\n")
	for i := 0; i < 100; i++ {
		b.WriteString("  doWork();\n")
	}
	b.WriteString("}\n")

	root := writeProject(t, map[string]string{"big.ts": b.String()})
	builder, g := buildTestGraph(t, root)
	r := NewResolver(builder, nil)

	ref := r.ResolveSymbol("bigFn", filepath.Join(root, "big.ts"), g)
	require.NotNil(t, ref.Definition)
	gotLines := strings.Count(ref.Definition.Code, "\n") + 1
	assert.Equal(t, 50, gotLines, "excerpts are capped")
	assert.Equal(t, 50, ref.Definition.EndLine-ref.Definition.StartLine+1)
}

func TestBuildLineContext(t *testing.T) {
	r, g, mainPath, utilsPath := resolverFixture(t)

	line := "  const d = formatDate(user.createdAt);"
	blocks := r.BuildLineContext(line, 5, mainPath, g, DefaultLineContextOptions())

	require.Len(t, blocks, 1, "only cross-file project resolutions produce context")
	assert.Equal(t, "formatDate", blocks[0].Symbol)
	assert.Equal(t, utilsPath, blocks[0].File)
	assert.Equal(t, 1.0, blocks[0].Confidence)
	assert.Contains(t, blocks[0].Code, "formatDate")
}

func TestBuildLineContextSkipsLocalAndUnknown(t *testing.T) {
	r, g, mainPath, _ := resolverFixture(t)

	line := "renderUser(mysteryFn());"
	blocks := r.BuildLineContext(line, 1, mainPath, g, DefaultLineContextOptions())
	assert.Empty(t, blocks, "local definitions and unknowns carry no cross-file context")
}

func TestBuildLineContextTokenBudget(t *testing.T) {
	var big strings.Builder
	big.WriteString("export function wideFn() {\n")
	for i := 0; i < 20; i++ {
		big.WriteString("  aVeryLongStatementThatTakesUpManyCharacters();\n")
	}
	big.WriteString("}\n")

	root := writeProject(t, map[string]string{
		"lib.ts":  big.String(),
		"main.ts": "import { wideFn } from './lib';\nwideFn();\n",
	})
	builder, g := buildTestGraph(t, root)
	r := NewResolver(builder, nil)

	opts := DefaultLineContextOptions()
	opts.TokenBudget = 10
	blocks := r.BuildLineContext("wideFn();", 2, filepath.Join(root, "main.ts"), g, opts)
	assert.Empty(t, blocks, "a block over the remaining budget is not added")
}
