package accessors

import (
	"reflect"
	"testing"

	"github.com/arcstep/pathdex/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type address struct {
	City     string   `json:"city"`
	Location location `json:"location"`
}

type person struct {
	Name      string            `json:"name"`
	Addresses []address         `json:"addresses"`
	Labels    map[string]string `json:"labels"`
	Friends   []*person         `json:"friends"`
}

func mustParse(t *testing.T, s string) paths.Path {
	t.Helper()
	p, err := paths.NewParser().Parse(s)
	require.NoError(t, err)
	return p
}

func TestResolveNestedStruct(t *testing.T) {
	r := NewRegistry()
	rec := person{
		Name: "alice",
		Addresses: []address{
			{City: "beijing", Location: location{Latitude: 39.909904, Longitude: 116.397}},
		},
	}

	v, ok := r.FieldValue(rec, mustParse(t, "addresses[0].location.latitude"))
	assert.True(t, ok)
	assert.Equal(t, 39.909904, v)
}

func TestResolveDecodedForm(t *testing.T) {
	// the same path must extract from the codec-decoded shape of the record
	r := NewRegistry()
	rec := map[string]any{
		"addresses": []any{
			map[string]any{"location": map[string]any{"latitude": 39.909904}},
		},
	}
	v, ok := r.FieldValue(rec, mustParse(t, "addresses[0].location.latitude"))
	assert.True(t, ok)
	assert.Equal(t, 39.909904, v)
}

func TestMappingAttributeAlias(t *testing.T) {
	r := NewRegistry()
	rec := map[string]string{"env": "prod"}

	v, ok := r.FieldValue(rec, mustParse(t, "{env}"))
	assert.True(t, ok)
	assert.Equal(t, "prod", v)

	v, ok = r.FieldValue(rec, mustParse(t, "env"))
	assert.True(t, ok)
	assert.Equal(t, "prod", v)
}

func TestAbsenceIsNotAnError(t *testing.T) {
	r := NewRegistry()
	rec := person{Addresses: []address{{City: "x"}}}

	_, consumed, ok := r.Resolve(rec, mustParse(t, "addresses[5].city"))
	assert.False(t, ok)
	assert.Equal(t, 1, consumed)

	_, _, ok = r.Resolve(rec, mustParse(t, "labels{missing}"))
	assert.False(t, ok)
}

func TestRecursiveShape(t *testing.T) {
	r := NewRegistry()
	bob := &person{Name: "bob"}
	rec := person{Name: "alice", Friends: []*person{bob}}

	v, ok := r.FieldValue(rec, mustParse(t, "friends[0].name"))
	assert.True(t, ok)
	assert.Equal(t, "bob", v)
}

func TestEmptyPathYieldsWholeValue(t *testing.T) {
	r := NewRegistry()
	v, ok := r.FieldValue(42, paths.Path{})
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestValidatePath(t *testing.T) {
	r := NewRegistry()
	pt := reflect.TypeOf(person{})

	assert.NoError(t, r.ValidatePath(pt, mustParse(t, "addresses[0].location.latitude")))
	assert.NoError(t, r.ValidatePath(pt, mustParse(t, "labels{env}")))
	assert.NoError(t, r.ValidatePath(pt, mustParse(t, "friends[3].friends[1].name")))

	// unknown attribute is a registration-time error
	assert.Error(t, r.ValidatePath(pt, mustParse(t, "nickname")))
	// sequence segment against a struct
	assert.Error(t, r.ValidatePath(pt, mustParse(t, "name[0]")))
	// descending into a scalar
	assert.Error(t, r.ValidatePath(pt, mustParse(t, "name.length")))
	// attribute segment against a slice
	assert.Error(t, r.ValidatePath(pt, mustParse(t, "addresses.city")))
}
