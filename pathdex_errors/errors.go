// Provides common pathdex error definitions.
package pathdex_errors

import (
	"errors"
	"fmt"
)

var (
	ErrPathSyntax     = errors.New("pathdex: bad path syntax")
	ErrPathValidation = errors.New("pathdex: path validation failed")
	ErrPathNotFound   = errors.New("pathdex: path not found in record")
	ErrPathType       = errors.New("pathdex: path type mismatch")

	ErrCollectionUnknown = errors.New("pathdex: unknown collection")
	ErrClosed            = errors.New("pathdex: store is closed")
)

// SyntaxError reports the first offending construct in a path string.
// Raised at parse/validate time, always a caller bug.
type SyntaxError struct {
	Path string
	Pos  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("pathdex: syntax error in path %q at offset %d: %s", e.Path, e.Pos, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrPathSyntax }

// ValidationError reports a syntactically valid path that violates a
// declared-type constraint. Raised at registration time.
type ValidationError struct {
	Namespace string
	Path      string
	Msg       string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pathdex: invalid registration of %q in namespace %q: %s", e.Path, e.Namespace, e.Msg)
}

func (e *ValidationError) Unwrap() error { return ErrPathValidation }

// NotFoundError reports a registered path that could not be resolved against
// a concrete record. Segment is the first unresolved segment, when known.
// Callers may legitimately treat this as "field absent".
type NotFoundError struct {
	Path    string
	Segment string
}

func (e *NotFoundError) Error() string {
	if e.Segment == "" {
		return fmt.Sprintf("pathdex: path %q not found", e.Path)
	}
	return fmt.Sprintf("pathdex: path %q not found, first unresolved segment %q", e.Path, e.Segment)
}

func (e *NotFoundError) Unwrap() error { return ErrPathNotFound }

// TypeError reports a value whose runtime shape disagrees with the declared
// type, or a structural path used where an indexable one is required.
type TypeError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("pathdex: type error at path %q: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

func (e *TypeError) Unwrap() error { return ErrPathType }
