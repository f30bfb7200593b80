package lang

import "time"

// ImportKind classifies how a symbol is brought into a file.
type ImportKind string

const (
	ImportDefault   ImportKind = "default"
	ImportNamed     ImportKind = "named"
	ImportNamespace ImportKind = "namespace"
	ImportDynamic   ImportKind = "dynamic"
)

// ImportStatement is one import found in a source file. Immutable once parsed.
type ImportStatement struct {
	// Source is the module path as written (e.g. "./utils", "react").
	Source string `json:"source"`
	// From is the file the import appears in.
	From    string     `json:"from"`
	Kind    ImportKind `json:"kind"`
	Symbols []string   `json:"symbols,omitempty"`
	Alias   string     `json:"alias,omitempty"`
	Line    int        `json:"line"`
	// IsExternal is true when Source does not start with "./" or "../".
	IsExternal bool `json:"isExternal"`
}

// SymbolKind classifies a declaration.
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindClass     SymbolKind = "class"
	KindVariable  SymbolKind = "variable"
	KindConstant  SymbolKind = "constant"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
	KindMethod    SymbolKind = "method"
)

// SymbolScope describes where a symbol is declared.
type SymbolScope string

const (
	ScopeGlobal SymbolScope = "global"
	ScopeClass  SymbolScope = "class"
	ScopeLocal  SymbolScope = "local"
)

// SymbolDefinition is one declaration found in a file.
// Invariant: StartLine <= EndLine. Parent is set only when Scope == ScopeClass.
type SymbolDefinition struct {
	Name          string      `json:"name"`
	Kind          SymbolKind  `json:"kind"`
	StartLine     int         `json:"startLine"`
	EndLine       int         `json:"endLine"`
	Signature     string      `json:"signature,omitempty"`
	Documentation string      `json:"documentation,omitempty"`
	IsExported    bool        `json:"isExported"`
	ExportKind    string      `json:"exportKind,omitempty"`
	Scope         SymbolScope `json:"scope"`
	Parent        string      `json:"parent,omitempty"`
	// UsedIn lists files known to import this symbol. Filled by the graph
	// builder during usage resolution, not by parsers.
	UsedIn []string `json:"usedIn,omitempty"`
}

// FileRecord is the normalized result of parsing one source file. It is
// created or replaced wholesale on every (re)parse and owned by the graph.
type FileRecord struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	// Exports is the subset of Definitions with IsExported set.
	Exports []SymbolDefinition `json:"exports"`
	Imports []ImportStatement  `json:"imports"`
	// Definitions holds every declaration, exported or not.
	Definitions  []SymbolDefinition `json:"definitions"`
	LastModified time.Time          `json:"lastModified"`
	ContentHash  string             `json:"contentHash"`
	Size         int64              `json:"size"`
	// ParseErrors collects non-fatal parse failures. A file with parse errors
	// still yields a valid (possibly empty) record.
	ParseErrors []string `json:"parseErrors,omitempty"`
}

// IsRelativeImport reports whether source refers to a project file rather
// than an external library.
func IsRelativeImport(source string) bool {
	return len(source) > 1 && source[0] == '.'
}
