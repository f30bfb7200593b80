package lang

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TypeScriptParser is the precise parser for the TS/JS family. Each ParseFile
// call builds a full syntax tree and walks top-level declarations, so export
// status and line ranges are exact rather than guessed.
//
// Safe for concurrent use: every call creates its own tree-sitter parser.
type TypeScriptParser struct{}

// NewTypeScriptParser creates the precise TS/JS parser.
func NewTypeScriptParser() *TypeScriptParser { return &TypeScriptParser{} }

func (p *TypeScriptParser) Language() string { return "typescript" }

func (p *TypeScriptParser) Extensions() []string {
	return []string{"ts", "tsx", "js", "jsx"}
}

func grammarFor(path string) *sitter.Language {
	switch {
	case strings.HasSuffix(path, ".tsx"):
		return tsx.GetLanguage()
	case strings.HasSuffix(path, ".ts"):
		return typescript.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

// ParseFile parses a TS/JS source file into a FileRecord. Parse failures are
// recorded on the record, never returned.
func (p *TypeScriptParser) ParseFile(path string, content []byte) *FileRecord {
	rec := &FileRecord{
		Path:     path,
		Language: p.Language(),
		Size:     int64(len(content)),
	}

	parser := sitter.NewParser()
	parser.SetLanguage(grammarFor(path))
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		rec.ParseErrors = append(rec.ParseErrors, "parse "+path+": "+err.Error())
		return rec
	}
	defer tree.Close()

	lines := strings.Split(string(content), "\n")
	root := tree.RootNode()
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		switch child.Type() {
		case "import_statement":
			if imp := p.importStatement(child, content, path); imp != nil {
				rec.Imports = append(rec.Imports, *imp)
			}
		case "lexical_declaration", "variable_declaration":
			if imp := p.requireImport(child, content, path); imp != nil {
				rec.Imports = append(rec.Imports, *imp)
				continue
			}
			p.variableDeclarations(child, content, lines, false, rec)
		case "export_statement":
			p.exportStatement(child, content, lines, rec)
		default:
			p.addDeclaration(child, content, lines, false, "", rec)
		}
	}

	return rec
}

func (rec *FileRecord) addDefinition(def SymbolDefinition) {
	rec.Definitions = append(rec.Definitions, def)
	if def.IsExported {
		rec.Exports = append(rec.Exports, def)
	}
}

// importStatement handles ES module imports: default, named, namespace.
func (p *TypeScriptParser) importStatement(node *sitter.Node, content []byte, path string) *ImportStatement {
	imp := &ImportStatement{
		From: path,
		Kind: ImportNamed,
		Line: int(node.StartPoint().Row) + 1,
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_clause":
			p.importClause(child, content, imp)
		case "string":
			imp.Source = stringContent(child, content)
		}
	}
	if imp.Source == "" {
		return nil
	}
	imp.IsExternal = !IsRelativeImport(imp.Source)
	return imp
}

func (p *TypeScriptParser) importClause(node *sitter.Node, content []byte, imp *ImportStatement) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier":
			// import foo from 'bar'
			imp.Kind = ImportDefault
			imp.Alias = nodeText(child, content)
			imp.Symbols = append(imp.Symbols, imp.Alias)
		case "namespace_import":
			// import * as foo from 'bar'
			imp.Kind = ImportNamespace
			for j := 0; j < int(child.ChildCount()); j++ {
				if gc := child.Child(j); gc.Type() == "identifier" {
					imp.Alias = nodeText(gc, content)
				}
			}
		case "named_imports":
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() != "import_specifier" {
					continue
				}
				// The first identifier is the name; a second is a local alias.
				var name string
				for k := 0; k < int(gc.ChildCount()); k++ {
					if id := gc.Child(k); id.Type() == "identifier" {
						if name == "" {
							name = nodeText(id, content)
						}
					}
				}
				if name != "" {
					imp.Symbols = append(imp.Symbols, name)
				}
			}
		}
	}
}

// requireImport handles const foo = require('bar') and
// const foo = await import('bar').
func (p *TypeScriptParser) requireImport(node *sitter.Node, content []byte, path string) *ImportStatement {
	for i := 0; i < int(node.ChildCount()); i++ {
		decl := node.Child(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		var name, source string
		kind := ImportDynamic
		for j := 0; j < int(decl.ChildCount()); j++ {
			gc := decl.Child(j)
			switch gc.Type() {
			case "identifier":
				name = nodeText(gc, content)
			case "call_expression", "await_expression":
				source = callModulePath(gc, content)
			}
		}
		if name == "" || source == "" {
			continue
		}
		return &ImportStatement{
			Source:     source,
			From:       path,
			Kind:       kind,
			Alias:      name,
			Symbols:    []string{name},
			Line:       int(node.StartPoint().Row) + 1,
			IsExternal: !IsRelativeImport(source),
		}
	}
	return nil
}

// callModulePath returns the string argument of require(...) or import(...),
// descending through await wrappers.
func callModulePath(node *sitter.Node, content []byte) string {
	if node.Type() == "await_expression" {
		for i := 0; i < int(node.ChildCount()); i++ {
			if c := node.Child(i); c.Type() == "call_expression" {
				return callModulePath(c, content)
			}
		}
		return ""
	}
	var callee, arg string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier", "import":
			callee = nodeText(child, content)
		case "arguments":
			for j := 0; j < int(child.ChildCount()); j++ {
				if s := child.Child(j); s.Type() == "string" {
					arg = stringContent(s, content)
				}
			}
		}
	}
	if callee == "require" || callee == "import" {
		return arg
	}
	return ""
}

// exportStatement unwraps "export"/"export default" and records the inner
// declaration with its export kind.
func (p *TypeScriptParser) exportStatement(node *sitter.Node, content []byte, lines []string, rec *FileRecord) {
	exportKind := "named"
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "default" {
			exportKind = "default"
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "lexical_declaration", "variable_declaration":
			p.variableDeclarations(child, content, lines, true, rec)
		default:
			p.addDeclaration(child, content, lines, true, exportKind, rec)
		}
	}
}

// addDeclaration converts a declaration node into a SymbolDefinition and
// records it, along with class members for class declarations. Non-declaration
// node types are ignored.
func (p *TypeScriptParser) addDeclaration(node *sitter.Node, content []byte, lines []string, exported bool, exportKind string, rec *FileRecord) {
	var kind SymbolKind
	switch node.Type() {
	case "function_declaration", "generator_function_declaration":
		kind = KindFunction
	case "class_declaration", "abstract_class_declaration":
		kind = KindClass
	case "interface_declaration":
		kind = KindInterface
	case "type_alias_declaration":
		kind = KindType
	case "enum_declaration":
		kind = KindConstant
	default:
		return
	}

	name := childIdentifier(node, content)
	if name == "" {
		return
	}

	def := SymbolDefinition{
		Name:          name,
		Kind:          kind,
		StartLine:     int(node.StartPoint().Row) + 1,
		EndLine:       int(node.EndPoint().Row) + 1,
		Signature:     firstLine(nodeText(node, content)),
		Documentation: precedingComment(lines, int(node.StartPoint().Row)),
		IsExported:    exported,
		Scope:         ScopeGlobal,
	}
	if exported {
		def.ExportKind = exportKind
	}
	rec.addDefinition(def)

	if kind == KindClass {
		for _, m := range p.classMethods(node, content, lines, name) {
			rec.Definitions = append(rec.Definitions, m)
		}
	}
}

// classMethods walks a class body and records its method definitions with
// class scope and the owning class as parent.
func (p *TypeScriptParser) classMethods(node *sitter.Node, content []byte, lines []string, className string) []SymbolDefinition {
	var body *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		if c := node.Child(i); c.Type() == "class_body" {
			body = c
			break
		}
	}
	if body == nil {
		return nil
	}
	var methods []SymbolDefinition
	for i := 0; i < int(body.ChildCount()); i++ {
		m := body.Child(i)
		if m.Type() != "method_definition" {
			continue
		}
		var name string
		for j := 0; j < int(m.ChildCount()); j++ {
			if id := m.Child(j); id.Type() == "property_identifier" {
				name = nodeText(id, content)
				break
			}
		}
		if name == "" {
			continue
		}
		methods = append(methods, SymbolDefinition{
			Name:          name,
			Kind:          KindMethod,
			StartLine:     int(m.StartPoint().Row) + 1,
			EndLine:       int(m.EndPoint().Row) + 1,
			Signature:     firstLine(nodeText(m, content)),
			Documentation: precedingComment(lines, int(m.StartPoint().Row)),
			Scope:         ScopeClass,
			Parent:        className,
		})
	}
	return methods
}

// variableDeclarations records top-level const/let/var declarators. Arrow
// functions assigned to a name are classified as functions.
func (p *TypeScriptParser) variableDeclarations(node *sitter.Node, content []byte, lines []string, exported bool, rec *FileRecord) {
	isConst := strings.HasPrefix(nodeText(node, content), "const")
	for i := 0; i < int(node.ChildCount()); i++ {
		decl := node.Child(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		var name string
		kind := KindVariable
		if isConst {
			kind = KindConstant
		}
		for j := 0; j < int(decl.ChildCount()); j++ {
			gc := decl.Child(j)
			switch gc.Type() {
			case "identifier":
				if name == "" {
					name = nodeText(gc, content)
				}
			case "arrow_function", "function_expression", "function":
				kind = KindFunction
			}
		}
		if name == "" {
			continue
		}
		def := SymbolDefinition{
			Name:          name,
			Kind:          kind,
			StartLine:     int(node.StartPoint().Row) + 1,
			EndLine:       int(node.EndPoint().Row) + 1,
			Signature:     firstLine(nodeText(node, content)),
			Documentation: precedingComment(lines, int(node.StartPoint().Row)),
			IsExported:    exported,
			Scope:         ScopeGlobal,
		}
		if exported {
			def.ExportKind = "named"
		}
		rec.addDefinition(def)
	}
}

func childIdentifier(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier", "type_identifier":
			return nodeText(child, content)
		}
	}
	return ""
}

func nodeText(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}

// stringContent strips the surrounding quotes from a string literal node.
func stringContent(node *sitter.Node, content []byte) string {
	s := nodeText(node, content)
	return strings.Trim(s, "\"'`")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(strings.TrimSpace(s), "{ ")
}

// precedingComment harvests contiguous comment lines immediately above a
// declaration (0-based row) as documentation.
func precedingComment(lines []string, row int) string {
	var doc []string
	for i := row - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		switch {
		case strings.HasPrefix(trimmed, "//"):
			doc = append([]string{strings.TrimSpace(strings.TrimPrefix(trimmed, "//"))}, doc...)
		case strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, "/*") || strings.HasSuffix(trimmed, "*/"):
			cleaned := strings.TrimSpace(strings.Trim(trimmed, "/* "))
			if cleaned != "" {
				doc = append([]string{cleaned}, doc...)
			}
			if strings.HasPrefix(trimmed, "/*") {
				return strings.Join(doc, "\n")
			}
		case strings.HasPrefix(trimmed, "#"):
			doc = append([]string{strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))}, doc...)
		default:
			return strings.Join(doc, "\n")
		}
	}
	return strings.Join(doc, "\n")
}
