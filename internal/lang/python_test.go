package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pySample = `import os
import numpy as np
from .utils import format_date, parse_date
from collections import OrderedDict

MAX_RETRIES = 3
default_timeout = 30
_internal_flag = True

# Formats a user record.
def format_user(user):
    name = user.name
    return format_date(user.created_at)

def _private_helper():
    pass

class UserService:
    def __init__(self, cache):
        self.cache = cache

    def get_user(self, user_id):
        return self.cache[user_id]

class _Hidden:
    pass
`

func TestPythonImports(t *testing.T) {
	p := NewPythonParser()
	rec := p.ParseFile("/proj/app/user.py", []byte(pySample))
	require.NotNil(t, rec)
	require.Len(t, rec.Imports, 4)

	osImp := findImport(t, rec, "os")
	assert.Equal(t, ImportNamespace, osImp.Kind)
	assert.True(t, osImp.IsExternal)

	np := findImport(t, rec, "numpy")
	assert.Equal(t, "np", np.Alias)

	utils := findImport(t, rec, "./utils")
	assert.Equal(t, ImportNamed, utils.Kind)
	assert.ElementsMatch(t, []string{"format_date", "parse_date"}, utils.Symbols)
	assert.False(t, utils.IsExternal)

	coll := findImport(t, rec, "collections")
	assert.True(t, coll.IsExternal)
}

func TestPythonDefinitions(t *testing.T) {
	p := NewPythonParser()
	rec := p.ParseFile("/proj/app/user.py", []byte(pySample))

	fn := findDef(t, rec, "format_user")
	assert.Equal(t, KindFunction, fn.Kind)
	assert.True(t, fn.IsExported)
	assert.Contains(t, fn.Documentation, "Formats a user record")
	assert.Greater(t, fn.EndLine, fn.StartLine)

	priv := findDef(t, rec, "_private_helper")
	assert.False(t, priv.IsExported)

	cls := findDef(t, rec, "UserService")
	assert.Equal(t, KindClass, cls.Kind)
	assert.True(t, cls.IsExported)

	method := findDef(t, rec, "get_user")
	assert.Equal(t, KindMethod, method.Kind)
	assert.Equal(t, ScopeClass, method.Scope)
	assert.Equal(t, "UserService", method.Parent)

	hidden := findDef(t, rec, "_Hidden")
	assert.False(t, hidden.IsExported)
}

func TestPythonModuleLevelAssignments(t *testing.T) {
	p := NewPythonParser()
	rec := p.ParseFile("/proj/app/user.py", []byte(pySample))

	max := findDef(t, rec, "MAX_RETRIES")
	assert.Equal(t, KindConstant, max.Kind)
	assert.True(t, max.IsExported)

	timeout := findDef(t, rec, "default_timeout")
	assert.Equal(t, KindVariable, timeout.Kind)

	flag := findDef(t, rec, "_internal_flag")
	assert.False(t, flag.IsExported)

	// Local assignments inside function bodies are not module symbols.
	for _, d := range rec.Definitions {
		assert.NotEqual(t, "name", d.Name)
	}
}

func TestPythonBlockBounds(t *testing.T) {
	src := "def outer():\n    a = 1\n    b = 2\n\n    c = 3\n\ndef next_fn():\n    pass\n"
	p := NewPythonParser()
	rec := p.ParseFile("/proj/app/b.py", []byte(src))

	outer := findDef(t, rec, "outer")
	assert.Equal(t, 1, outer.StartLine)
	assert.Equal(t, 5, outer.EndLine, "blank lines inside the block do not end it")

	next := findDef(t, rec, "next_fn")
	assert.Equal(t, 7, next.StartLine)
}
