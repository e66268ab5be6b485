// Package pathtypes keeps, per namespace, the declared type and
// indexability classification of every registered field path, and performs
// typed extraction-and-conversion of path values from records.
//
// The registry has no persistence of its own: schema lives in code and is
// re-registered on process restart, independent of the durable index.
package pathtypes

import (
	"reflect"
	"sort"
	"sync"

	"github.com/arcstep/pathdex/accessors"
	"github.com/arcstep/pathdex/pathdex_errors"
	"github.com/arcstep/pathdex/paths"
)

type Classification byte

const (
	// Indexable paths resolve to primitive scalars (or bounded tag-lists
	// of scalars) and are eligible for secondary-index queries.
	Indexable Classification = 'I'
	// Structural paths resolve to composite values and cannot be queried.
	Structural Classification = 'S'
)

func (c Classification) String() string {
	switch c {
	case Indexable:
		return "indexable"
	case Structural:
		return "structural"
	}
	return "unknown"
}

const DefaultMaxTags = 100

type PathTypeInfo struct {
	Path           string
	TypeName       string
	Classification Classification
	IsTagList      bool
	MaxTags        int
	Description    string
}

type PathOption func(*PathTypeInfo)

// WithTagList marks the path as a bounded list of scalars indexed element
// by element. maxTags <= 0 selects DefaultMaxTags.
func WithTagList(maxTags int) PathOption {
	return func(i *PathTypeInfo) {
		i.IsTagList = true
		if maxTags > 0 {
			i.MaxTags = maxTags
		}
	}
}

func WithDescription(desc string) PathOption {
	return func(i *PathTypeInfo) { i.Description = desc }
}

type Manager struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]*PathTypeInfo
	converters map[string]Converter

	parser   *paths.Parser
	registry *accessors.Registry
}

func NewManager() *Manager {
	return &Manager{
		namespaces: make(map[string]map[string]*PathTypeInfo),
		converters: defaultConverters(),
		parser:     paths.NewParser(),
		registry:   accessors.NewRegistry(),
	}
}

func (m *Manager) Parser() *paths.Parser { return m.parser }

func (m *Manager) Accessors() *accessors.Registry { return m.registry }

// RegisterPath declares one field path under a namespace. The namespace is
// created implicitly on first registration.
func (m *Manager) RegisterPath(namespace, path, typeName string, c Classification, opts ...PathOption) error {
	if namespace == "" {
		return &pathdex_errors.ValidationError{Path: path, Msg: "empty namespace"}
	}
	if path == "" {
		return &pathdex_errors.ValidationError{Namespace: namespace, Msg: "empty path"}
	}
	if err := m.parser.Validate(path); err != nil {
		return err
	}
	info := &PathTypeInfo{
		Path:           path,
		TypeName:       typeName,
		Classification: c,
		MaxTags:        DefaultMaxTags,
	}
	for _, opt := range opts {
		opt(info)
	}
	return m.putInfo(namespace, info)
}

// putInfo skips grammar validation: RegisterObject uses it for the empty
// whole-record path and for documentation-only [*] wildcard paths.
func (m *Manager) putInfo(namespace string, info *PathTypeInfo) error {
	if info.IsTagList && info.Classification != Indexable {
		return &pathdex_errors.ValidationError{
			Namespace: namespace, Path: info.Path,
			Msg: "tag-list marker requires an indexable classification",
		}
	}
	if info.MaxTags <= 0 {
		info.MaxTags = DefaultMaxTags
	}
	if info.Classification == Indexable {
		m.mu.RLock()
		_, ok := m.converters[info.TypeName]
		m.mu.RUnlock()
		if !ok {
			return &pathdex_errors.ValidationError{
				Namespace: namespace, Path: info.Path,
				Msg: "no converter registered for type " + info.TypeName,
			}
		}
	}
	m.mu.Lock()
	ns := m.namespaces[namespace]
	if ns == nil {
		ns = make(map[string]*PathTypeInfo)
		m.namespaces[namespace] = ns
	}
	ns[info.Path] = info
	m.mu.Unlock()
	return nil
}

func (m *Manager) RegisterConverter(name string, fn Converter) {
	m.mu.Lock()
	m.converters[name] = fn
	m.mu.Unlock()
}

// Convert runs the named converter on a raw value.
func (m *Manager) Convert(typeName string, v any) (any, error) {
	m.mu.RLock()
	fn, ok := m.converters[typeName]
	m.mu.RUnlock()
	if !ok {
		return nil, &pathdex_errors.TypeError{Expected: typeName, Actual: "unregistered converter"}
	}
	return fn(v)
}

func (m *Manager) HasNamespace(namespace string) bool {
	m.mu.RLock()
	_, ok := m.namespaces[namespace]
	m.mu.RUnlock()
	return ok
}

// Info returns a copy of the registered info for one path.
func (m *Manager) Info(namespace, path string) (PathTypeInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.namespaces[namespace][path]
	if !ok {
		return PathTypeInfo{}, false
	}
	return *info, true
}

// Paths lists every registered path of a namespace, sorted, for
// introspection.
func (m *Manager) Paths(namespace string) []PathTypeInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PathTypeInfo, 0, len(m.namespaces[namespace]))
	for _, info := range m.namespaces[namespace] {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// IndexablePaths lists the queryable paths of a namespace, sorted.
func (m *Manager) IndexablePaths(namespace string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for p, info := range m.namespaces[namespace] {
		if info.Classification == Indexable {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// ExtractValue resolves a registered path against a record and converts the
// result to the registered type. It returns the converted value and the
// number of consumed segments. Tag-list values come back truncated to
// MaxTags, original order preserved; the record itself is never modified.
func (m *Manager) ExtractValue(record any, path, namespace string) (any, int, error) {
	m.mu.RLock()
	ns, nsOK := m.namespaces[namespace]
	var info *PathTypeInfo
	if nsOK {
		info = ns[path]
	}
	m.mu.RUnlock()
	if !nsOK {
		return nil, 0, &pathdex_errors.NotFoundError{Path: path, Segment: "namespace " + namespace}
	}
	if info == nil {
		return nil, 0, &pathdex_errors.NotFoundError{Path: path}
	}
	if info.Classification != Indexable {
		return nil, 0, &pathdex_errors.TypeError{
			Path: path, Expected: Indexable.String(), Actual: info.Classification.String(),
		}
	}
	parsed, err := m.parser.Parse(path)
	if err != nil {
		return nil, 0, err
	}
	val, consumed, ok := m.registry.Resolve(record, parsed)
	if !ok || val == nil {
		seg := ""
		if consumed < len(parsed) {
			seg = paths.Path(parsed[consumed : consumed+1]).String()
		}
		return nil, consumed, &pathdex_errors.NotFoundError{Path: path, Segment: seg}
	}
	if info.IsTagList {
		tags, err := m.convertTagList(info, val)
		if err != nil {
			return nil, consumed, err
		}
		return tags, consumed, nil
	}
	out, err := m.Convert(info.TypeName, val)
	if err != nil {
		return nil, consumed, &pathdex_errors.TypeError{
			Path: path, Expected: info.TypeName, Actual: reflect.TypeOf(val).String(),
		}
	}
	return out, consumed, nil
}

func (m *Manager) convertTagList(info *PathTypeInfo, val any) ([]any, error) {
	rv := reflect.ValueOf(val)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, &pathdex_errors.TypeError{
			Path: info.Path, Expected: "list of " + info.TypeName, Actual: reflect.TypeOf(val).String(),
		}
	}
	n := rv.Len()
	if n > info.MaxTags {
		n = info.MaxTags
	}
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		conv, err := m.Convert(info.TypeName, rv.Index(i).Interface())
		if err != nil {
			return nil, &pathdex_errors.TypeError{
				Path: info.Path, Expected: info.TypeName, Actual: reflect.TypeOf(rv.Index(i).Interface()).String(),
			}
		}
		out = append(out, conv)
	}
	return out, nil
}
