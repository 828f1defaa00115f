package commsutil

import (
	"bytes"
	"encoding/json"

	"github.com/morezero/usecase-executor/pkg/options"
)

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload deserializes JSON bytes into the given target.
func DecodePayload(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// DecodeValue decodes a raw JSON value keeping object key order (objects
// become *options.Map). Empty input and "null" decode to nil.
func DecodeValue(data []byte) (interface{}, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	return options.DecodeJSON(data)
}
