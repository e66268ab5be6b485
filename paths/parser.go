package paths

import (
	"github.com/arcstep/pathdex/pathdex_errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// Parser turns path strings into Paths. Results are memoized per textual
// path; the cache is owned by the parser instance and can be reset with
// Clear, so parsing stays a pure function of the input.
type Parser struct {
	cache *xsync.MapOf[string, Path]
}

func NewParser() *Parser {
	return &Parser{cache: xsync.NewMapOf[string, Path]()}
}

// Parse validates the whole string first, then returns its segments.
// The empty string parses to the empty Path ("the whole record").
func (p *Parser) Parse(s string) (Path, error) {
	if cached, ok := p.cache.Load(s); ok {
		return cached, nil
	}
	parsed, err := parse(s)
	if err != nil {
		return nil, err
	}
	p.cache.Store(s, parsed)
	return parsed, nil
}

// Validate runs the full grammar check without surfacing segments.
func (p *Parser) Validate(s string) error {
	_, err := p.Parse(s)
	return err
}

// Clear drops the memo cache.
func (p *Parser) Clear() {
	p.cache.Clear()
}

func syntaxErr(s string, pos int, msg string) error {
	return &pathdex_errors.SyntaxError{Path: s, Pos: pos, Msg: msg}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// scanIdent returns the end offset of the identifier starting at i.
func scanIdent(s string, i int) (int, error) {
	if i >= len(s) || !isIdentStart(s[i]) {
		return i, syntaxErr(s, i, "expected identifier")
	}
	j := i + 1
	for j < len(s) && isIdentPart(s[j]) {
		j++
	}
	return j, nil
}

func parse(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	var segs Path
	i := 0
	for i < len(s) {
		switch c := s[i]; c {
		case '.':
			if len(segs) == 0 {
				return nil, syntaxErr(s, i, "path cannot start with '.'")
			}
			j, err := scanIdent(s, i+1)
			if err != nil {
				return nil, syntaxErr(s, i+1, "expected identifier after '.'")
			}
			segs = append(segs, Segment{Kind: Attribute, Value: s[i+1 : j]})
			i = j
		case '[':
			if len(segs) == 0 {
				return nil, syntaxErr(s, i, "sequence index must follow a segment")
			}
			j := i + 1
			for j < len(s) && s[j] != ']' {
				if s[j] < '0' || s[j] > '9' {
					return nil, syntaxErr(s, j, "sequence index must be a non-negative integer")
				}
				j++
			}
			if j == len(s) {
				return nil, syntaxErr(s, i, "unmatched '['")
			}
			if j == i+1 {
				return nil, syntaxErr(s, i+1, "empty sequence index")
			}
			segs = append(segs, Segment{Kind: Sequence, Value: s[i+1 : j]})
			i = j + 1
		case '{':
			j := i + 1
			for j < len(s) && s[j] != '}' {
				switch s[j] {
				case '{':
					return nil, syntaxErr(s, j, "nested '{' in mapping key")
				case '"', '\'':
					return nil, syntaxErr(s, j, "quote character in mapping key")
				}
				j++
			}
			if j == len(s) {
				return nil, syntaxErr(s, i, "unmatched '{'")
			}
			if j == i+1 {
				return nil, syntaxErr(s, i+1, "empty mapping key")
			}
			segs = append(segs, Segment{Kind: Mapping, Value: s[i+1 : j]})
			i = j + 1
		case ']', '}':
			return nil, syntaxErr(s, i, "unmatched '"+string(c)+"'")
		default:
			if len(segs) != 0 {
				return nil, syntaxErr(s, i, "expected '.', '[' or '{'")
			}
			j, err := scanIdent(s, i)
			if err != nil {
				return nil, err
			}
			segs = append(segs, Segment{Kind: Attribute, Value: s[i:j]})
			i = j
		}
	}
	return segs, nil
}
