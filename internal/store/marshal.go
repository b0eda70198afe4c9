package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/txflow/internal/ir"
)

// marshalColumn converts v to canonical JSON TEXT for storage. A value
// that encodes to null is stored as empty.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalColumn(name string, v any, empty string) (string, error) {
	generic, err := ir.Canonicalize(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", name, err)
	}
	if generic == nil {
		return empty, nil
	}
	data, err := ir.MarshalCanonical(generic)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", name, err)
	}
	return string(data), nil
}

// unmarshalColumn parses JSON TEXT into dst. Numbers inside generic maps
// decode as json.Number to avoid float64 precision loss.
func unmarshalColumn(name, data string, dst any) error {
	if data == "" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
