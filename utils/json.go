package utils

import (
	"encoding/json"
)

// MarshalToJSON marshals a value to bytes for outbox payloads.
func MarshalToJSON[T any](input T) ([]byte, error) {
	return json.Marshal(input)
}

func UnmarshalFromJSON[T any](data []byte, output *T) error {
	return json.Unmarshal(data, output)
}
