package lang

import (
	"regexp"
	"strings"
)

// GoParser is a heuristic line scanner for Go source. It matches declaration
// headers and tracks brace depth to find a definition's end line. Like the
// Python scanner it is approximate: unusual formatting can mis-bound a
// definition.
type GoParser struct{}

// NewGoParser creates the heuristic Go parser.
func NewGoParser() *GoParser { return &GoParser{} }

func (p *GoParser) Language() string     { return "go" }
func (p *GoParser) Extensions() []string { return []string{"go"} }

var (
	goFuncRe   = regexp.MustCompile(`^func\s+(?:\(([^)]+)\)\s+)?(\w+)\s*\(`)
	goTypeRe   = regexp.MustCompile(`^type\s+(\w+)\s+(struct|interface|\S+)`)
	goVarRe    = regexp.MustCompile(`^(var|const)\s+(\w+)`)
	goImportRe = regexp.MustCompile(`^\s*(?:(\w+)\s+)?"([^"]+)"`)
)

// ParseFile scans the file line by line and records imports and definitions.
func (p *GoParser) ParseFile(path string, content []byte) *FileRecord {
	rec := &FileRecord{
		Path:     path,
		Language: p.Language(),
		Size:     int64(len(content)),
	}
	lines := strings.Split(string(content), "\n")

	inImportBlock := false
	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)

		if inImportBlock {
			if trimmed == ")" {
				inImportBlock = false
				continue
			}
			if m := goImportRe.FindStringSubmatch(line); m != nil {
				rec.Imports = append(rec.Imports, importFromGoPath(m[2], m[1], path, lineNo))
			}
			continue
		}
		if trimmed == "import (" {
			inImportBlock = true
			continue
		}
		if strings.HasPrefix(trimmed, "import ") {
			if m := goImportRe.FindStringSubmatch(strings.TrimPrefix(trimmed, "import ")); m != nil {
				rec.Imports = append(rec.Imports, importFromGoPath(m[2], m[1], path, lineNo))
			}
			continue
		}

		if m := goFuncRe.FindStringSubmatch(trimmed); m != nil && strings.HasPrefix(line, "func") {
			def := SymbolDefinition{
				Name:          m[2],
				Kind:          KindFunction,
				StartLine:     lineNo,
				EndLine:       blockEndByBrace(lines, i),
				Signature:     strings.TrimRight(strings.TrimSuffix(trimmed, "{"), " "),
				Documentation: precedingComment(lines, i),
				IsExported:    isGoExported(m[2]),
				Scope:         ScopeGlobal,
			}
			if m[1] != "" {
				// Method with a receiver; parent is the receiver's base type.
				def.Kind = KindMethod
				def.Scope = ScopeClass
				def.Parent = receiverType(m[1])
			}
			rec.addDefinition(def)
			continue
		}

		if m := goTypeRe.FindStringSubmatch(trimmed); m != nil && strings.HasPrefix(line, "type") {
			kind := KindType
			switch m[2] {
			case "struct":
				kind = KindClass
			case "interface":
				kind = KindInterface
			}
			rec.addDefinition(SymbolDefinition{
				Name:          m[1],
				Kind:          kind,
				StartLine:     lineNo,
				EndLine:       blockEndByBrace(lines, i),
				Signature:     strings.TrimRight(strings.TrimSuffix(trimmed, "{"), " "),
				Documentation: precedingComment(lines, i),
				IsExported:    isGoExported(m[1]),
				Scope:         ScopeGlobal,
			})
			continue
		}

		if m := goVarRe.FindStringSubmatch(trimmed); m != nil && (strings.HasPrefix(line, "var") || strings.HasPrefix(line, "const")) {
			kind := KindVariable
			if m[1] == "const" {
				kind = KindConstant
			}
			rec.addDefinition(SymbolDefinition{
				Name:       m[2],
				Kind:       kind,
				StartLine:  lineNo,
				EndLine:    blockEndByBrace(lines, i),
				Signature:  trimmed,
				IsExported: isGoExported(m[2]),
				Scope:      ScopeGlobal,
			})
		}
	}

	return rec
}

func importFromGoPath(source, alias, path string, line int) ImportStatement {
	return ImportStatement{
		Source: source,
		From:   path,
		Kind:   ImportNamespace,
		Alias:  alias,
		Line:   line,
		// Go import paths are package paths, never file-relative.
		IsExternal: true,
	}
}

// isGoExported reports the uppercase-initial export convention.
func isGoExported(name string) bool {
	if name == "" {
		return false
	}
	c := name[0]
	return c >= 'A' && c <= 'Z'
}

func receiverType(recv string) string {
	// "s *Service" or "c *Cache[K, V]"; the type is everything after the
	// receiver name, and Fields can split inside type parameters.
	fields := strings.Fields(recv)
	t := fields[0]
	if len(fields) > 1 {
		t = fields[1]
	}
	t = strings.TrimPrefix(t, "*")
	if i := strings.IndexByte(t, '['); i >= 0 {
		t = t[:i]
	}
	return t
}

// blockEndByBrace finds the closing line of a brace-delimited block starting
// at the header line (0-based index). A header with no opening brace is a
// single-line declaration.
func blockEndByBrace(lines []string, headerIdx int) int {
	depth := 0
	opened := false
	for i := headerIdx; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch r {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
			}
		}
		if opened && depth <= 0 {
			return i + 1
		}
		// No brace on the header line means a single-line declaration.
		if !opened && i == headerIdx {
			return headerIdx + 1
		}
	}
	return len(lines)
}
