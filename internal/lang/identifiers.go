package lang

import "regexp"

// Referenced-identifier detection is a per-line heuristic shared by the
// resolver and retrieval query construction. It looks for call syntax,
// member access, and constructor syntax rather than tokenizing fully.
var (
	callRe   = regexp.MustCompile(`\b([A-Za-z_$][\w$]*)\s*\(`)
	memberRe = regexp.MustCompile(`\b([A-Za-z_$][\w$]*)\s*\.`)
	ctorRe   = regexp.MustCompile(`\bnew\s+([A-Za-z_$][\w$]*)`)
)

var keywords = map[string]bool{
	// Shared / TS-JS
	"if": true, "else": true, "for": true, "while": true, "switch": true,
	"return": true, "function": true, "const": true, "let": true, "var": true,
	"new": true, "class": true, "this": true, "super": true, "typeof": true,
	"await": true, "async": true, "import": true, "export": true, "require": true,
	"try": true, "catch": true, "finally": true, "throw": true, "in": true,
	// Python
	"def": true, "self": true, "print": true, "len": true, "range": true,
	"lambda": true, "from": true, "with": true, "raise": true, "except": true,
	// Go
	"func": true, "go": true, "defer": true, "make": true, "append": true,
	"type": true, "struct": true, "interface": true, "select": true,
	"panic": true, "recover": true, "map": true, "chan": true,
}

// ExtractIdentifiers returns the identifier names referenced on a line,
// deduplicated in first-seen order, with language keywords filtered out.
func ExtractIdentifiers(line string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name == "" || keywords[name] || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, m := range ctorRe.FindAllStringSubmatch(line, -1) {
		add(m[1])
	}
	for _, m := range callRe.FindAllStringSubmatch(line, -1) {
		add(m[1])
	}
	for _, m := range memberRe.FindAllStringSubmatch(line, -1) {
		add(m[1])
	}
	return out
}
