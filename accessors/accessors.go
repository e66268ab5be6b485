// Package accessors resolves parsed paths against runtime values. Dispatch
// is an explicit tagged-variant list (sequence, mapping, structured record)
// tried in order by a composite Registry, so the same path walks uniformly
// across mixed record shapes.
package accessors

import (
	"reflect"
	"strconv"

	"github.com/arcstep/pathdex/pathdex_errors"
	"github.com/arcstep/pathdex/paths"
)

// Accessor is one shape-family variant. Step resolves a single segment;
// absence is reported as ok=false, never as an error. ValidatePath is the
// registration-time static check against a declared type.
type Accessor interface {
	CanHandle(v any) bool
	Step(v any, seg paths.Segment) (any, bool)
	ValidatePath(t reflect.Type, p paths.Path) error
}

// Registry is the composite accessor callers actually use. It walks a full
// path one segment at a time, delegating each step to the first variant
// whose CanHandle accepts the intermediate value.
type Registry struct {
	seq      *SequenceAccessor
	mapping  *MappingAccessor
	strct    *StructAccessor
	variants []Accessor
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.seq = &SequenceAccessor{reg: r}
	r.mapping = &MappingAccessor{reg: r}
	r.strct = &StructAccessor{reg: r}
	r.variants = []Accessor{r.seq, r.mapping, r.strct}
	return r
}

func (r *Registry) CanHandle(v any) bool {
	v = indirect(v)
	for _, a := range r.variants {
		if a.CanHandle(v) {
			return true
		}
	}
	return false
}

// FieldValue walks the whole path. The empty path yields the value itself.
func (r *Registry) FieldValue(v any, p paths.Path) (any, bool) {
	out, _, ok := r.Resolve(v, p)
	return out, ok
}

// Resolve is FieldValue plus the number of segments consumed before the
// walk stopped, for diagnostics.
func (r *Registry) Resolve(v any, p paths.Path) (any, int, bool) {
	cur := v
	for i, seg := range p {
		cur = indirect(cur)
		if cur == nil {
			return nil, i, false
		}
		stepped := false
		for _, a := range r.variants {
			if !a.CanHandle(cur) {
				continue
			}
			next, ok := a.Step(cur, seg)
			if !ok {
				return nil, i, false
			}
			cur = next
			stepped = true
			break
		}
		if !stepped {
			return nil, i, false
		}
	}
	return cur, len(p), true
}

// ValidatePath statically checks a path against a declared type. Dynamic
// shapes (interface-typed fields) pass; their checks happen at extraction.
func (r *Registry) ValidatePath(t reflect.Type, p paths.Path) error {
	if len(p) == 0 {
		return nil
	}
	t = derefType(t)
	if t == nil || t.Kind() == reflect.Interface {
		return nil
	}
	switch {
	case isSequenceType(t):
		return r.seq.ValidatePath(t, p)
	case isMappingType(t):
		return r.mapping.ValidatePath(t, p)
	case t.Kind() == reflect.Struct:
		return r.strct.ValidatePath(t, p)
	}
	return &pathdex_errors.ValidationError{
		Path: p.String(),
		Msg:  "path descends into scalar type " + t.String(),
	}
}

func indirect(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

func derefType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

func isSequenceType(t reflect.Type) bool {
	if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		return false
	}
	// []byte is a scalar, not a sequence shape
	return t.Elem().Kind() != reflect.Uint8
}

func isMappingType(t reflect.Type) bool {
	return t.Kind() == reflect.Map && t.Key().Kind() == reflect.String
}

// SequenceAccessor serves slices and arrays. Only Sequence segments apply;
// an out-of-range index is absence at extraction time.
type SequenceAccessor struct {
	reg *Registry
}

func (a *SequenceAccessor) CanHandle(v any) bool {
	if v == nil {
		return false
	}
	return isSequenceType(reflect.TypeOf(v))
}

func (a *SequenceAccessor) Step(v any, seg paths.Segment) (any, bool) {
	if seg.Kind != paths.Sequence {
		return nil, false
	}
	idx, err := strconv.Atoi(seg.Value)
	if err != nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if idx >= rv.Len() {
		return nil, false
	}
	return rv.Index(idx).Interface(), true
}

func (a *SequenceAccessor) ValidatePath(t reflect.Type, p paths.Path) error {
	if p[0].Kind != paths.Sequence {
		return &pathdex_errors.ValidationError{
			Path: p.String(),
			Msg:  "sequence type " + t.String() + " requires a [N] segment, got " + p[0].Kind.String(),
		}
	}
	return a.reg.ValidatePath(t.Elem(), p[1:])
}

// MappingAccessor serves maps with string keys. A single Attribute segment
// is an alias for a mapping lookup by the same name, so "key" and "{key}"
// both work against dictionary shapes.
type MappingAccessor struct {
	reg *Registry
}

func (a *MappingAccessor) CanHandle(v any) bool {
	if v == nil {
		return false
	}
	return isMappingType(reflect.TypeOf(v))
}

func (a *MappingAccessor) Step(v any, seg paths.Segment) (any, bool) {
	if seg.Kind != paths.Mapping && seg.Kind != paths.Attribute {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	key := reflect.ValueOf(seg.Value).Convert(rv.Type().Key())
	mv := rv.MapIndex(key)
	if !mv.IsValid() {
		return nil, false
	}
	return mv.Interface(), true
}

func (a *MappingAccessor) ValidatePath(t reflect.Type, p paths.Path) error {
	if p[0].Kind != paths.Mapping && p[0].Kind != paths.Attribute {
		return &pathdex_errors.ValidationError{
			Path: p.String(),
			Msg:  "mapping type " + t.String() + " requires a {key} or attribute segment",
		}
	}
	return a.reg.ValidatePath(t.Elem(), p[1:])
}

// StructAccessor serves structured records with a declared field schema.
// Fields resolve by json tag first, then by field name, so a live struct
// and its codec-decoded map form extract identically. An attribute missing
// from the schema is a validation-time error, not a runtime absence.
type StructAccessor struct {
	reg *Registry
}

func (a *StructAccessor) CanHandle(v any) bool {
	if v == nil {
		return false
	}
	return reflect.TypeOf(v).Kind() == reflect.Struct
}

func (a *StructAccessor) Step(v any, seg paths.Segment) (any, bool) {
	if seg.Kind != paths.Attribute {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	i := fieldIndex(rv.Type(), seg.Value)
	if i < 0 {
		return nil, false
	}
	return rv.Field(i).Interface(), true
}

func (a *StructAccessor) ValidatePath(t reflect.Type, p paths.Path) error {
	if p[0].Kind != paths.Attribute {
		return &pathdex_errors.ValidationError{
			Path: p.String(),
			Msg:  "record type " + t.String() + " requires an attribute segment, got " + p[0].Kind.String(),
		}
	}
	i := fieldIndex(t, p[0].Value)
	if i < 0 {
		return &pathdex_errors.ValidationError{
			Path: p.String(),
			Msg:  "attribute " + p[0].Value + " is not declared on " + t.String(),
		}
	}
	return a.reg.ValidatePath(t.Field(i).Type, p[1:])
}

// FieldName returns the path name a struct field is addressed by: the json
// tag when present, the Go field name otherwise.
func FieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return f.Name
	}
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			if i == 0 {
				return f.Name
			}
			return tag[:i]
		}
	}
	return tag
}

func fieldIndex(t reflect.Type, name string) int {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" { // unexported
			continue
		}
		if FieldName(f) == name {
			return i
		}
	}
	return -1
}
