package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "call and member access",
			line: "const d = formatDate(user.createdAt);",
			want: []string{"formatDate", "user"},
		},
		{
			name: "constructor first",
			line: "return new UserService(loadConfig());",
			want: []string{"UserService", "loadConfig"},
		},
		{
			name: "keywords filtered",
			line: "if (parse(x)) { return await fetch(url); }",
			want: []string{"parse", "fetch"},
		},
		{
			name: "deduplicated first-seen",
			line: "validate(validate(input), validate)",
			want: []string{"validate"},
		},
		{
			name: "python style",
			line: "result = format_user(record).strip()",
			want: []string{"format_user", "strip"},
		},
		{
			name: "no identifiers",
			line: "return 1 + 2",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractIdentifiers(tt.line))
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, "typescript", r.LanguageName("/a/b.ts"))
	assert.Equal(t, "typescript", r.LanguageName("/a/b.tsx"))
	assert.Equal(t, "typescript", r.LanguageName("/a/b.jsx"))
	assert.Equal(t, "python", r.LanguageName("/a/b.py"))
	assert.Equal(t, "go", r.LanguageName("/a/b.go"))
	assert.Equal(t, "", r.LanguageName("/a/b.rb"))
	assert.Nil(t, r.Lookup("/a/README.md"))
}

func TestRegistryCandidateExtensions(t *testing.T) {
	r := DefaultRegistry()

	cands := r.CandidateExtensions("typescript")
	assert.Equal(t, []string{"ts", "tsx", "js", "jsx", "py", "go"}, cands,
		"a file's own language is tried first")
}

func TestIsRelativeImport(t *testing.T) {
	assert.True(t, IsRelativeImport("./utils"))
	assert.True(t, IsRelativeImport("../lib/helpers"))
	assert.False(t, IsRelativeImport("react"))
	assert.False(t, IsRelativeImport("fs"))
	assert.False(t, IsRelativeImport("."))
}
