package lang

import (
	"regexp"
	"strings"
)

// PythonParser is a heuristic line scanner. It pattern-matches declaration
// headers and uses indentation depth to find a definition's end line.
//
// Known limitation: multi-line signatures and deeply nested definitions can
// be mis-bounded. This parser is best-effort by design; it trades precision
// for not needing a grammar.
type PythonParser struct{}

// NewPythonParser creates the heuristic Python parser.
func NewPythonParser() *PythonParser { return &PythonParser{} }

func (p *PythonParser) Language() string     { return "python" }
func (p *PythonParser) Extensions() []string { return []string{"py"} }

var (
	pyDefRe    = regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+(\w+)\s*\(`)
	pyClassRe  = regexp.MustCompile(`^(\s*)class\s+(\w+)\s*[(:(]`)
	pyAssignRe = regexp.MustCompile(`^(\w+)\s*(?::[^=]+)?=\s*`)
	pyImportRe = regexp.MustCompile(`^import\s+([\w.]+)(?:\s+as\s+(\w+))?`)
	pyFromRe   = regexp.MustCompile(`^from\s+([\w.]+)\s+import\s+(.+)`)
)

// ParseFile scans the file line by line and records imports and definitions.
func (p *PythonParser) ParseFile(path string, content []byte) *FileRecord {
	rec := &FileRecord{
		Path:     path,
		Language: p.Language(),
		Size:     int64(len(content)),
	}
	lines := strings.Split(string(content), "\n")

	var currentClass string
	currentClassIndent := -1

	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indent := indentWidth(line)
		if currentClass != "" && indent <= currentClassIndent && trimmed != "" {
			currentClass = ""
		}

		if m := pyImportRe.FindStringSubmatch(trimmed); m != nil && indent == 0 {
			rec.Imports = append(rec.Imports, ImportStatement{
				Source:     m[1],
				From:       path,
				Kind:       ImportNamespace,
				Alias:      m[2],
				Line:       lineNo,
				IsExternal: !IsRelativeImport(m[1]),
			})
			continue
		}
		if m := pyFromRe.FindStringSubmatch(trimmed); m != nil && indent == 0 {
			source := m[1]
			// "from .utils import x": leading dots mark a relative import.
			if strings.HasPrefix(source, ".") {
				source = "./" + strings.TrimLeft(source, ".")
			}
			imp := ImportStatement{
				Source:     source,
				From:       path,
				Kind:       ImportNamed,
				Line:       lineNo,
				IsExternal: !IsRelativeImport(source),
			}
			if strings.TrimSpace(m[2]) == "*" {
				imp.Kind = ImportNamespace
			} else {
				for _, sym := range strings.Split(m[2], ",") {
					name := strings.TrimSpace(sym)
					if idx := strings.Index(name, " as "); idx >= 0 {
						name = name[:idx]
					}
					name = strings.TrimSpace(strings.Trim(name, "()"))
					if name != "" {
						imp.Symbols = append(imp.Symbols, name)
					}
				}
			}
			rec.Imports = append(rec.Imports, imp)
			continue
		}

		if m := pyDefRe.FindStringSubmatch(line); m != nil {
			def := SymbolDefinition{
				Name:          m[2],
				Kind:          KindFunction,
				StartLine:     lineNo,
				EndLine:       blockEndByIndent(lines, i),
				Signature:     strings.TrimRight(trimmed, ": "),
				Documentation: precedingComment(lines, i),
				Scope:         ScopeGlobal,
			}
			if currentClass != "" && indentWidth(line) > currentClassIndent {
				def.Kind = KindMethod
				def.Scope = ScopeClass
				def.Parent = currentClass
			} else if indent > 0 {
				def.Scope = ScopeLocal
			} else {
				// Module-level non-underscore names are exported by convention.
				def.IsExported = !strings.HasPrefix(m[2], "_")
			}
			rec.addDefinition(def)
			continue
		}

		if m := pyClassRe.FindStringSubmatch(line); m != nil {
			def := SymbolDefinition{
				Name:          m[2],
				Kind:          KindClass,
				StartLine:     lineNo,
				EndLine:       blockEndByIndent(lines, i),
				Signature:     strings.TrimRight(trimmed, ": "),
				Documentation: precedingComment(lines, i),
				Scope:         ScopeGlobal,
			}
			if indent == 0 {
				def.IsExported = !strings.HasPrefix(m[2], "_")
				currentClass = m[2]
				currentClassIndent = indent
			} else {
				def.Scope = ScopeLocal
			}
			rec.addDefinition(def)
			continue
		}

		// Module-level assignment: NAME = value.
		if indent == 0 {
			if m := pyAssignRe.FindStringSubmatch(trimmed); m != nil {
				kind := KindVariable
				if m[1] == strings.ToUpper(m[1]) && m[1] != strings.ToLower(m[1]) {
					kind = KindConstant
				}
				rec.addDefinition(SymbolDefinition{
					Name:       m[1],
					Kind:       kind,
					StartLine:  lineNo,
					EndLine:    lineNo,
					Signature:  trimmed,
					IsExported: !strings.HasPrefix(m[1], "_"),
					Scope:      ScopeGlobal,
				})
			}
		}
	}

	return rec
}

func indentWidth(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

// blockEndByIndent finds the last line of an indentation-delimited block
// starting at the header line (0-based index).
func blockEndByIndent(lines []string, headerIdx int) int {
	headerIndent := indentWidth(lines[headerIdx])
	end := headerIdx
	for i := headerIdx + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if indentWidth(lines[i]) <= headerIndent {
			break
		}
		end = i
	}
	return end + 1
}
