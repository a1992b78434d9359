package codec

import "encoding/json"

// JSON encodes values with the standard library's JSON marshaler. It trades
// compactness for a payload that is easy to inspect on the wire, which is
// useful when mailmuxctl or another debugging tool needs to print call
// arguments without knowing their Go type in advance.
var JSON Codec = jsonCodec{}

type jsonCodec struct{}

func (jsonCodec) Encode(value any, _ int) ([]byte, error) {
	return json.Marshal(value)
}

func (jsonCodec) Decode(data []byte, out any, _ int) error {
	return json.Unmarshal(data, out)
}
