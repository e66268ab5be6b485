package pathdex

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/arcstep/pathdex/pathtypes"
	"github.com/cespare/xxhash"
)

// Persisted key layout (stable; changing it invalidates existing indexes
// and requires a full RebuildIndexes):
//
//	primary: "rec:<collection>:<primary-key>"
//	index:   "idx:<collection>:<path>:<encoded-value>\x00<primary-key>"
//
// Collection, path and the primary-key component of record keys are
// percent-escaped so a raw ':' can never appear inside one and prefix scans
// stay unambiguous. The encoded-value and primary-key components of index
// keys are order-compared by range scans, so they use a different, order-
// preserving escape (see escapeValue) and a 0x00 separator that sorts below
// every escaped byte.
const (
	recordKeyPrefix = "rec"
	indexKeyPrefix  = "idx"
	valueSep        = "\x00"
)

var (
	keyEscaper   = strings.NewReplacer("%", "%25", ":", "%3A", "\x00", "%00")
	keyUnescaper = strings.NewReplacer("%3A", ":", "%25", "%", "%00", "\x00")

	// escapeValue must keep lexical byte order intact: 0x00 and 0x01 both
	// map to pairs led by 0x01, everything else passes through, so for any
	// a < b, escapeValue(a) < escapeValue(b) and the output never contains
	// the 0x00 separator.
	valueEscaper   = strings.NewReplacer("\x00", "\x01\x01", "\x01", "\x01\x02")
	valueUnescaper = strings.NewReplacer("\x01\x01", "\x00", "\x01\x02", "\x01")
)

func escapeComponent(s string) string   { return keyEscaper.Replace(s) }
func unescapeComponent(s string) string { return keyUnescaper.Replace(s) }

func escapeValue(s string) string   { return valueEscaper.Replace(s) }
func unescapeValue(s string) string { return valueUnescaper.Replace(s) }

// prefixSuccessor returns the smallest key greater than every key that has
// p as a prefix, for use as an exclusive scan bound. nil means no bound
// exists (p is all 0xff).
func prefixSuccessor(p []byte) []byte {
	out := append([]byte(nil), p...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}

func recordKey(collection, pk string) []byte {
	return []byte(recordKeyPrefix + ":" + escapeComponent(collection) + ":" + escapeComponent(pk))
}

func recordScanBounds(collection string) (lo, hi []byte) {
	p := []byte(recordKeyPrefix + ":" + escapeComponent(collection) + ":")
	return p, prefixSuccessor(p)
}

func recordKeyPK(key []byte) string {
	s := string(key)
	i := strings.LastIndexByte(s, ':')
	return unescapeComponent(s[i+1:])
}

func indexPathPrefix(collection, path string) string {
	return indexKeyPrefix + ":" + escapeComponent(collection) + ":" + escapeComponent(path) + ":"
}

func indexKey(collection, path, encValue, pk string) []byte {
	return []byte(indexPathPrefix(collection, path) + escapeValue(encValue) + valueSep + escapeValue(pk))
}

func indexKeyPK(key []byte) string {
	s := string(key)
	i := strings.LastIndexByte(s, 0x00)
	return unescapeValue(s[i+1:])
}

func indexCollectionBounds(collection string) (lo, hi []byte) {
	p := []byte(indexKeyPrefix + ":" + escapeComponent(collection) + ":")
	return p, prefixSuccessor(p)
}

const (
	signFlip = uint64(1) << 63
	// long byte values keep a hex prefix for ordering plus a fingerprint
	// for exact-match disambiguation
	maxRawBytes = 32
	// fixed-width UTC layout so lexical order matches chronological order
	sortableTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

// encodeValue turns a converted value into text whose lexical byte order
// matches the natural ordering of the declared type.
func encodeValue(typeName string, v any) (string, error) {
	switch typeName {
	case pathtypes.TypeInteger:
		i, ok := v.(int64)
		if !ok {
			return "", fmt.Errorf("integer encoding expects int64, got %T", v)
		}
		return fmt.Sprintf("%020d", uint64(i)^signFlip), nil
	case pathtypes.TypeFloat, pathtypes.TypeDecimal:
		f, ok := v.(float64)
		if !ok {
			return "", fmt.Errorf("float encoding expects float64, got %T", v)
		}
		bits := math.Float64bits(f)
		if bits&signFlip != 0 {
			bits = ^bits
		} else {
			bits |= signFlip
		}
		return fmt.Sprintf("%016x", bits), nil
	case pathtypes.TypeBoolean:
		if v.(bool) {
			return "1", nil
		}
		return "0", nil
	case pathtypes.TypeString, pathtypes.TypeIdentifier:
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("string encoding expects string, got %T", v)
		}
		return s, nil
	case pathtypes.TypeBytes:
		b, ok := v.([]byte)
		if !ok {
			return "", fmt.Errorf("bytes encoding expects []byte, got %T", v)
		}
		if len(b) <= maxRawBytes {
			return hex.EncodeToString(b), nil
		}
		return hex.EncodeToString(b[:maxRawBytes]) + "~" + fmt.Sprintf("%016x", xxhash.Sum64(b)), nil
	case pathtypes.TypeTime, pathtypes.TypeDate:
		t, ok := v.(time.Time)
		if !ok {
			return "", fmt.Errorf("time encoding expects time.Time, got %T", v)
		}
		return t.UTC().Format(sortableTimeLayout), nil
	}
	// custom converter output, best-effort textual form
	return fmt.Sprintf("%v", v), nil
}
