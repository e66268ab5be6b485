package pathdex

import (
	"bytes"
	"encoding/json"
)

// Codec serializes records for the primary partition. The store only needs
// the round trip to be lossless for every registered type; field values are
// extracted from the decoded in-memory form through the accessor registry.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

// JSONCodec is the default codec. Decoding uses json.Number so integer
// fields survive the round trip without float precision loss.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
