package paths

import (
	"errors"
	"testing"

	"github.com/arcstep/pathdex/pathdex_errors"
	"github.com/stretchr/testify/assert"
)

func TestParseNestedPath(t *testing.T) {
	p := NewParser()
	parsed, err := p.Parse("addresses[0].location.latitude")
	assert.NoError(t, err)
	assert.Equal(t, Path{
		{Kind: Attribute, Value: "addresses"},
		{Kind: Sequence, Value: "0"},
		{Kind: Attribute, Value: "location"},
		{Kind: Attribute, Value: "latitude"},
	}, parsed)
	assert.Equal(t, "addresses[0].location.latitude", parsed.String())
}

func TestParseMappingAfterAttribute(t *testing.T) {
	p := NewParser()
	parsed, err := p.Parse("addresses{key}")
	assert.NoError(t, err)
	assert.Equal(t, Path{
		{Kind: Attribute, Value: "addresses"},
		{Kind: Mapping, Value: "key"},
	}, parsed)

	// a path may also start with a mapping key
	parsed, err = p.Parse("{some key}")
	assert.NoError(t, err)
	assert.Equal(t, Path{{Kind: Mapping, Value: "some key"}}, parsed)
}

func TestParseEmptyIsWholeRecord(t *testing.T) {
	p := NewParser()
	parsed, err := p.Parse("")
	assert.NoError(t, err)
	assert.Len(t, parsed, 0)
}

func TestParseSyntaxErrors(t *testing.T) {
	p := NewParser()
	for _, bad := range []string{
		".name",
		"a..b",
		"a.",
		"a[",
		"a[]",
		"a[x]",
		"a[-1]",
		"a{",
		"a{}",
		"a{{b}}",
		`a{"b"}`,
		"[0]",
		"a]b",
		"a}b",
		"9lives",
		"a b",
		"a.b[0.c",
	} {
		err := p.Validate(bad)
		assert.Error(t, err, "path %q", bad)
		assert.True(t, errors.Is(err, pathdex_errors.ErrPathSyntax), "path %q", bad)
		var serr *pathdex_errors.SyntaxError
		assert.True(t, errors.As(err, &serr), "path %q", bad)
	}
}

func TestParseDeterministic(t *testing.T) {
	p := NewParser()
	a, err := p.Parse("friends[2].name")
	assert.NoError(t, err)
	p.Clear()
	b, err := p.Parse("friends[2].name")
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestIsSafeForPath(t *testing.T) {
	assert.True(t, IsSafeForPath("user_name"))
	assert.True(t, IsSafeForPath("some key with spaces"))
	assert.False(t, IsSafeForPath("a.b"))
	assert.False(t, IsSafeForPath("a[0]"))
	assert.False(t, IsSafeForPath("a{b}"))
	assert.False(t, IsSafeForPath("}"))
}
