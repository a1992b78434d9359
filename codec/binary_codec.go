package codec

import (
	"bytes"
	"encoding"
	"fmt"
)

// Binary encodes values as raw bytes: []byte and string pass through
// unchanged, and any other type must implement encoding.BinaryMarshaler /
// encoding.BinaryUnmarshaler. It favors compact payloads over
// cross-language readability.
var Binary Codec = binaryCodec{}

type binaryCodec struct{}

func (binaryCodec) Encode(value any, fieldIndex int) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case encoding.BinaryMarshaler:
		return v.MarshalBinary()
	default:
		return nil, fmt.Errorf("codec: field %d: binary codec cannot encode %T", fieldIndex, value)
	}
}

func (binaryCodec) Decode(data []byte, out any, fieldIndex int) error {
	switch v := out.(type) {
	case *[]byte:
		*v = bytes.Clone(data)
	case *string:
		*v = string(data)
	case encoding.BinaryUnmarshaler:
		return v.UnmarshalBinary(data)
	default:
		return fmt.Errorf("codec: field %d: binary codec cannot decode into %T", fieldIndex, out)
	}
	return nil
}
