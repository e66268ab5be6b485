package pathtypes

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Converter normalizes an extracted raw value into the registered type's
// canonical representation.
type Converter func(v any) (any, error)

const (
	TypeString     = "string"
	TypeInteger    = "integer"
	TypeFloat      = "float"
	TypeBoolean    = "boolean"
	TypeBytes      = "bytes"
	TypeTime       = "time"
	TypeDate       = "date"
	TypeDecimal    = "decimal"
	TypeIdentifier = "identifier"
)

func defaultConverters() map[string]Converter {
	return map[string]Converter{
		TypeString:     convertString,
		TypeInteger:    convertInteger,
		TypeFloat:      convertFloat,
		TypeBoolean:    convertBoolean,
		TypeBytes:      convertBytes,
		TypeTime:       convertTime,
		TypeDate:       convertDate,
		TypeDecimal:    convertDecimal,
		TypeIdentifier: convertIdentifier,
	}
}

func convertString(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case json.Number:
		return t.String(), nil
	case fmt.Stringer:
		return t.String(), nil
	case bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", t), nil
	}
	return nil, fmt.Errorf("cannot convert %T to string", v)
}

func convertInteger(v any) (any, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		return int64(t), nil
	case float64:
		if t != float64(int64(t)) {
			return nil, fmt.Errorf("float %v is not an integer", t)
		}
		return int64(t), nil
	case json.Number:
		return t.Int64()
	case string:
		return strconv.ParseInt(t, 10, 64)
	}
	return nil, fmt.Errorf("cannot convert %T to integer", v)
}

func convertFloat(v any) (any, error) {
	switch t := v.(type) {
	case float32:
		return float64(t), nil
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(t, 64)
	}
	return nil, fmt.Errorf("cannot convert %T to float", v)
}

func convertBoolean(v any) (any, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(t)
	}
	return nil, fmt.Errorf("cannot convert %T to boolean", v)
}

func convertBytes(v any) (any, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	}
	return nil, fmt.Errorf("cannot convert %T to bytes", v)
}

func convertTime(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339, t)
	case json.Number:
		secs, err := t.Int64()
		if err != nil {
			return nil, err
		}
		return time.Unix(secs, 0), nil
	case int64:
		return time.Unix(t, 0), nil
	}
	return nil, fmt.Errorf("cannot convert %T to time", v)
}

func convertDate(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t.Truncate(24 * time.Hour), nil
	case string:
		return time.Parse("2006-01-02", t)
	}
	return nil, fmt.Errorf("cannot convert %T to date", v)
}

func convertDecimal(v any) (any, error) {
	switch t := v.(type) {
	case float32:
		return float64(t), nil
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		r, ok := new(big.Rat).SetString(t)
		if !ok {
			return nil, fmt.Errorf("bad decimal literal %q", t)
		}
		f, _ := r.Float64()
		return f, nil
	}
	return nil, fmt.Errorf("cannot convert %T to decimal", v)
}

func convertIdentifier(v any) (any, error) {
	switch t := v.(type) {
	case uuid.UUID:
		return t.String(), nil
	case string:
		id, err := uuid.Parse(t)
		if err != nil {
			return nil, err
		}
		return id.String(), nil
	case []byte:
		id, err := uuid.FromBytes(t)
		if err != nil {
			return nil, err
		}
		return id.String(), nil
	}
	return nil, fmt.Errorf("cannot convert %T to identifier", v)
}
