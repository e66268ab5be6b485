package pathtypes

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/arcstep/pathdex/accessors"
	"github.com/arcstep/pathdex/pathdex_errors"
	"github.com/arcstep/pathdex/paths"
	"github.com/google/uuid"
)

// PathConfig overrides the inferred registration of one path in
// RegisterObject. Zero fields keep the inferred value.
type PathConfig struct {
	TypeName       string
	Classification Classification
	IsTagList      bool
	MaxTags        int
	Description    string
}

// RegisterObject introspects a sample value (or a reflect.Type) and
// registers every reachable field path under the namespace. Scalars come
// out Indexable, lists of scalars become tag-lists, nested records and
// mappings become Structural, and lists of records additionally register
// documentation-only "items[*].field" wildcard paths. Cycles in the sample
// data fail fast.
func (m *Manager) RegisterObject(namespace string, sample any, overrides map[string]PathConfig) error {
	if namespace == "" {
		return &pathdex_errors.ValidationError{Msg: "empty namespace"}
	}
	v := reflect.ValueOf(sample)
	if t, ok := sample.(reflect.Type); ok {
		v = reflect.Zero(t)
	}
	w := &objectWalker{
		m:            m,
		ns:           namespace,
		overrides:    overrides,
		visitedData:  make(map[uintptr]bool),
		visitedTypes: make(map[reflect.Type]bool),
	}
	if err := w.walk("", v, false); err != nil {
		return err
	}
	// overrides for paths the sample did not reach become explicit
	// registrations of their own
	for p, cfg := range overrides {
		if _, ok := m.Info(namespace, p); ok {
			continue
		}
		c := cfg.Classification
		if c == 0 {
			c = Indexable
		}
		var opts []PathOption
		if cfg.IsTagList {
			opts = append(opts, WithTagList(cfg.MaxTags))
		}
		if cfg.Description != "" {
			opts = append(opts, WithDescription(cfg.Description))
		}
		if err := m.RegisterPath(namespace, p, cfg.TypeName, c, opts...); err != nil {
			return err
		}
	}
	return nil
}

type objectWalker struct {
	m            *Manager
	ns           string
	overrides    map[string]PathConfig
	visitedData  map[uintptr]bool
	visitedTypes map[reflect.Type]bool
}

func (w *objectWalker) register(path, typeName string, c Classification, doc bool) error {
	info := &PathTypeInfo{
		Path:           path,
		TypeName:       typeName,
		Classification: c,
		MaxTags:        DefaultMaxTags,
	}
	if cfg, ok := w.overrides[path]; ok {
		if cfg.TypeName != "" {
			info.TypeName = cfg.TypeName
		}
		if cfg.Classification != 0 {
			info.Classification = cfg.Classification
		}
		info.IsTagList = cfg.IsTagList
		if cfg.MaxTags > 0 {
			info.MaxTags = cfg.MaxTags
		}
		info.Description = cfg.Description
	}
	if doc {
		// wildcard paths document shape only, they are never queryable
		info.Classification = Structural
		info.IsTagList = false
	}
	return w.m.putInfo(w.ns, info)
}

func (w *objectWalker) registerTagList(path, elemType string, doc bool) error {
	info := &PathTypeInfo{
		Path:           path,
		TypeName:       elemType,
		Classification: Indexable,
		IsTagList:      true,
		MaxTags:        DefaultMaxTags,
	}
	if cfg, ok := w.overrides[path]; ok {
		if cfg.TypeName != "" {
			info.TypeName = cfg.TypeName
		}
		if cfg.Classification != 0 {
			info.Classification = cfg.Classification
			info.IsTagList = cfg.IsTagList
		}
		if cfg.MaxTags > 0 {
			info.MaxTags = cfg.MaxTags
		}
		info.Description = cfg.Description
	}
	if doc || info.Classification != Indexable {
		info.Classification = Structural
		info.IsTagList = false
	}
	return w.m.putInfo(w.ns, info)
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func (w *objectWalker) walk(prefix string, v reflect.Value, doc bool) error {
	// unwrap interfaces and pointers, watching for data cycles
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return nil
		}
		if v.Kind() == reflect.Pointer {
			ptr := v.Pointer()
			if w.visitedData[ptr] {
				return &pathdex_errors.ValidationError{
					Namespace: w.ns, Path: prefix, Msg: "cycle detected in sample data",
				}
			}
			w.visitedData[ptr] = true
			defer delete(w.visitedData, ptr)
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil
	}

	if name, ok := scalarTypeName(v); ok {
		c := Indexable
		if doc {
			c = Structural
		}
		if prefix == "" {
			// the whole record is the indexable scalar
			return w.register("", name, c, doc)
		}
		return w.register(prefix, name, c, doc)
	}

	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		if w.visitedTypes[t] {
			// recursive record type, stop enumerating
			return w.register(prefix, "record", Structural, doc)
		}
		w.visitedTypes[t] = true
		defer delete(w.visitedTypes, t)
		if prefix != "" {
			if err := w.register(prefix, "record", Structural, doc); err != nil {
				return err
			}
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.PkgPath != "" {
				continue
			}
			name := accessors.FieldName(f)
			if !paths.IsSafeForPath(name) {
				return &pathdex_errors.ValidationError{
					Namespace: w.ns, Path: joinPath(prefix, name),
					Msg: "field name contains reserved path characters",
				}
			}
			if err := w.walk(joinPath(prefix, name), v.Field(i), doc); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		if ptr := v.Pointer(); ptr != 0 {
			if w.visitedData[ptr] {
				return &pathdex_errors.ValidationError{
					Namespace: w.ns, Path: prefix, Msg: "cycle detected in sample data",
				}
			}
			w.visitedData[ptr] = true
			defer delete(w.visitedData, ptr)
		}
		if prefix == "" {
			// a top-level mapping sample is the record itself
			for _, key := range v.MapKeys() {
				name := key.String()
				if !paths.IsSafeForPath(name) {
					return &pathdex_errors.ValidationError{
						Namespace: w.ns, Path: name,
						Msg: "mapping key contains reserved path characters",
					}
				}
				if err := w.walk(name, v.MapIndex(key), doc); err != nil {
					return err
				}
			}
			return nil
		}
		// nested mappings are structural, queried via explicit {key} paths
		return w.register(prefix, "mapping", Structural, doc)

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice {
			if ptr := v.Pointer(); ptr != 0 {
				if w.visitedData[ptr] {
					return &pathdex_errors.ValidationError{
						Namespace: w.ns, Path: prefix, Msg: "cycle detected in sample data",
					}
				}
				w.visitedData[ptr] = true
				defer delete(w.visitedData, ptr)
			}
		}
		elem := elemValue(v)
		if !elem.IsValid() {
			return w.register(prefix, "list", Structural, doc)
		}
		e := elem
		for e.IsValid() && (e.Kind() == reflect.Interface || e.Kind() == reflect.Pointer) {
			if e.IsNil() {
				return w.register(prefix, "list", Structural, doc)
			}
			e = e.Elem()
		}
		if name, ok := scalarTypeName(e); ok {
			return w.registerTagList(prefix, name, doc)
		}
		// list of records: structural, plus wildcard paths for introspection
		if err := w.register(prefix, "list", Structural, doc); err != nil {
			return err
		}
		return w.walk(prefix+"[*]", elem, true)
	}

	return w.register(prefix, v.Type().String(), Structural, doc)
}

// elemValue picks the representative element of a list sample: the first
// element when present, the zero value of the element type otherwise.
func elemValue(v reflect.Value) reflect.Value {
	if v.Len() > 0 {
		return v.Index(0)
	}
	et := v.Type().Elem()
	if et.Kind() == reflect.Interface {
		return reflect.Value{}
	}
	return reflect.Zero(et)
}

func scalarTypeName(v reflect.Value) (string, bool) {
	switch v.Interface().(type) {
	case time.Time:
		return TypeTime, true
	case uuid.UUID:
		return TypeIdentifier, true
	case json.Number:
		n := v.Interface().(json.Number)
		if _, err := n.Int64(); err == nil {
			return TypeInteger, true
		}
		return TypeFloat, true
	case []byte:
		return TypeBytes, true
	}
	switch v.Kind() {
	case reflect.String:
		return TypeString, true
	case reflect.Bool:
		return TypeBoolean, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger, true
	case reflect.Float32, reflect.Float64:
		return TypeFloat, true
	}
	return "", false
}
