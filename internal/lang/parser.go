package lang

import (
	"path/filepath"
	"strings"
	"sync"
)

// Parser turns raw source text into a normalized FileRecord.
//
// Implementations must never panic or return past the boundary on malformed
// input: a parse failure is recorded in FileRecord.ParseErrors on an
// otherwise-valid record, so one bad file cannot abort a project scan.
type Parser interface {
	ParseFile(path string, content []byte) *FileRecord
	Language() string
	Extensions() []string
}

// Registry maps file extensions to parsers. It is explicitly constructed and
// passed to the graph builder and resolver, so tests can substitute fakes
// without touching shared state.
type Registry struct {
	mu      sync.RWMutex
	byExt   map[string]Parser
	parsers []Parser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Parser)}
}

// DefaultRegistry wires the three production parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewTypeScriptParser())
	r.Register(NewPythonParser())
	r.Register(NewGoParser())
	return r
}

// Register adds a parser for all of its extensions.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers = append(r.parsers, p)
	for _, ext := range p.Extensions() {
		r.byExt[ext] = p
	}
}

// Lookup returns the parser for a file path based on its extension, or nil.
func (r *Registry) Lookup(path string) Parser {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byExt[ext]
}

// LanguageName returns the language for a file path, or "".
func (r *Registry) LanguageName(path string) string {
	if p := r.Lookup(path); p != nil {
		return p.Language()
	}
	return ""
}

// Extensions returns the set of all registered extensions (without dot).
func (r *Registry) Extensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make(map[string]bool, len(r.byExt))
	for ext := range r.byExt {
		exts[ext] = true
	}
	return exts
}

// CandidateExtensions returns the extensions to try when resolving a
// relative import written without one, most specific language first.
func (r *Registry) CandidateExtensions(language string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var own, rest []string
	for _, p := range r.parsers {
		if p.Language() == language {
			own = append(own, p.Extensions()...)
		} else {
			rest = append(rest, p.Extensions()...)
		}
	}
	return append(own, rest...)
}
