package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rzbill/placer/pkg/types"
)

// MakeKey creates a standardized key for a resource.
func MakeKey(resourceType types.ResourceType, namespace, name string) []byte {
	return []byte(fmt.Sprintf("%s/%s/%s", resourceType, namespace, name))
}

// MakePrefix creates a prefix for listing resources by type and namespace.
// The trailing separator keeps namespace "1" from matching namespace "10".
func MakePrefix(resourceType types.ResourceType, namespace string) []byte {
	if namespace == AllNamespaces || namespace == "" {
		return []byte(fmt.Sprintf("%s/", resourceType))
	}
	return []byte(fmt.Sprintf("%s/%s/", resourceType, namespace))
}

// ParseKey parses a key into its components.
func ParseKey(key []byte) (resourceType, namespace, name string, ok bool) {
	parts := strings.SplitN(string(key), "/", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func keyError(resourceType types.ResourceType, namespace, name string, sentinel error) error {
	return fmt.Errorf("resource %s/%s/%s %w", resourceType, namespace, name, sentinel)
}

func encode(resource interface{}) ([]byte, error) {
	data, err := json.Marshal(resource)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize resource: %w", err)
	}
	return data, nil
}

func decode(data []byte, resource interface{}) error {
	if err := json.Unmarshal(data, resource); err != nil {
		return fmt.Errorf("failed to deserialize resource: %w", err)
	}
	return nil
}

// decodeList decodes raw JSON documents into the slice pointed to by target.
func decodeList(raws [][]byte, target interface{}) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, raw := range raws {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(raw)
	}
	buf.WriteByte(']')
	if err := json.Unmarshal(buf.Bytes(), target); err != nil {
		return fmt.Errorf("failed to deserialize resources: %w", err)
	}
	return nil
}
