// Package paths implements the path expression language used to address
// fields inside records: dotted attributes ("location.latitude"), numeric
// sequence indexes ("addresses[0]") and mapping keys ("labels{env}").
package paths

import "strings"

type Kind byte

const (
	// Attribute is an identifier resolved against a struct field or,
	// on mapping shapes, aliased to a mapping lookup by the same name.
	Attribute Kind = 'A'
	// Sequence is a non-negative integer index into a list.
	Sequence Kind = 'S'
	// Mapping is an arbitrary key (no quotes, no braces) into a map.
	Mapping Kind = 'M'
)

func (k Kind) String() string {
	switch k {
	case Attribute:
		return "attribute"
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	}
	return "unknown"
}

// Segment is one step of a parsed path. Immutable once constructed.
type Segment struct {
	Kind  Kind
	Value string
}

// Path is an ordered sequence of segments. The empty Path addresses the
// whole record.
type Path []Segment

// String reconstructs the textual form of the path.
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		switch s.Kind {
		case Attribute:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(s.Value)
		case Sequence:
			b.WriteByte('[')
			b.WriteString(s.Value)
			b.WriteByte(']')
		case Mapping:
			b.WriteByte('{')
			b.WriteString(s.Value)
			b.WriteByte('}')
		}
	}
	return b.String()
}

// IsSafeForPath reports whether value contains none of the reserved path
// characters and can be spliced into a path expression verbatim.
func IsSafeForPath(value string) bool {
	return !strings.ContainsAny(value, ".{}[]")
}
