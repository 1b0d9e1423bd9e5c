package persistence

import (
	"bytes"
	"encoding/gob"
	"encoding/json"

	"github.com/Borislavv/go-crow-cache/model"
)

// Codec encodes single dormant records. Backends frame or key the encoded bytes themselves.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec implements Codec using encoding/json.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// GobCodec implements Codec using encoding/gob.
// Interface-typed values must be registered with gob.Register by the caller.
type GobCodec struct{}

func (GobCodec) Marshal(v any) ([]byte, error) {
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (GobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Record is the unit written by record-oriented backends.
type Record[V any] struct {
	Key   string         `json:"key"`
	Entry model.Entry[V] `json:"entry"`
}
