package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSample = `package user

import (
	"fmt"
	"time"

	nf "example.com/lib/notify"
)

const MaxRetries = 3

var defaultTimeout = 30 * time.Second

// User is one account record.
type User struct {
	ID        string
	CreatedAt time.Time
}

type Formatter interface {
	Format(u User) string
}

type ID = string

// FormatUser renders a user for display.
func FormatUser(u User) string {
	return fmt.Sprintf("%s (%s)", u.ID, u.CreatedAt)
}

func (s *Service) GetUser(id string) (User, error) {
	u, ok := s.cache[id]
	if !ok {
		return User{}, fmt.Errorf("user %s not found", id)
	}
	return u, nil
}

func internalHelper() int { return 42 }
`

func TestGoImports(t *testing.T) {
	p := NewGoParser()
	rec := p.ParseFile("/proj/user.go", []byte(goSample))
	require.NotNil(t, rec)
	require.Len(t, rec.Imports, 3)

	notify := findImport(t, rec, "example.com/lib/notify")
	assert.Equal(t, "nf", notify.Alias)
	assert.True(t, notify.IsExternal, "package paths are never file-relative")

	fmtImp := findImport(t, rec, "fmt")
	assert.True(t, fmtImp.IsExternal)
}

func TestGoDefinitions(t *testing.T) {
	p := NewGoParser()
	rec := p.ParseFile("/proj/user.go", []byte(goSample))

	user := findDef(t, rec, "User")
	assert.Equal(t, KindClass, user.Kind)
	assert.True(t, user.IsExported)
	assert.Contains(t, user.Documentation, "one account record")
	assert.Greater(t, user.EndLine, user.StartLine)

	iface := findDef(t, rec, "Formatter")
	assert.Equal(t, KindInterface, iface.Kind)

	alias := findDef(t, rec, "ID")
	assert.Equal(t, KindType, alias.Kind)
	assert.Equal(t, alias.StartLine, alias.EndLine)

	fn := findDef(t, rec, "FormatUser")
	assert.Equal(t, KindFunction, fn.Kind)
	assert.True(t, fn.IsExported)
	assert.Contains(t, fn.Documentation, "renders a user")

	method := findDef(t, rec, "GetUser")
	assert.Equal(t, KindMethod, method.Kind)
	assert.Equal(t, ScopeClass, method.Scope)
	assert.Equal(t, "Service", method.Parent, "receiver pointer is stripped")

	helper := findDef(t, rec, "internalHelper")
	assert.False(t, helper.IsExported)
	assert.Equal(t, helper.StartLine, helper.EndLine, "single-line body closes on the header line")

	maxR := findDef(t, rec, "MaxRetries")
	assert.Equal(t, KindConstant, maxR.Kind)
	assert.True(t, maxR.IsExported)

	timeout := findDef(t, rec, "defaultTimeout")
	assert.Equal(t, KindVariable, timeout.Kind)
	assert.False(t, timeout.IsExported)
}

func TestGoGenericReceiver(t *testing.T) {
	src := "package c\n\nfunc (c *Cache[K, V]) Get(k K) V {\n\treturn c.m[k]\n}\n"
	p := NewGoParser()
	rec := p.ParseFile("/proj/cache.go", []byte(src))

	get := findDef(t, rec, "Get")
	assert.Equal(t, "Cache", get.Parent, "type parameters are stripped from the receiver")
}
