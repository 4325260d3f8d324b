package driver

import (
	"encoding/json"
	"fmt"
)

// Serializer turns values into the text stored in kvdb and back.
type Serializer interface {
	Serialize(value any) (string, error)
	Deserialize(data string) (any, error)
}

// JSONSerializer stores values as JSON. Deserialized values take the
// encoding/json shapes: float64, string, bool, nil, []any and map[string]any.
type JSONSerializer struct{}

// Serialize encodes value as JSON.
func (JSONSerializer) Serialize(value any) (string, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("serialize: %w", err)
	}
	return string(b), nil
}

// Deserialize decodes JSON text.
func (JSONSerializer) Deserialize(data string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("deserialize: %w", err)
	}
	return v, nil
}
