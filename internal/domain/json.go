package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// StringList stores a JSON-encoded list of strings in a TEXT column.
// Used for plan feature lists and ingestion error summaries.
type StringList []string

// Value implements driver.Valuer, serializing the list as JSON.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner, accepting TEXT/BLOB JSON payloads.
func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	b, err := asBytes(src)
	if err != nil {
		return fmt.Errorf("scan StringList: %w", err)
	}
	if len(b) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(b, (*[]string)(l))
}

// JSONMap stores an explicit, small bag of structured metadata as JSON in a
// TEXT column (e.g., which documents informed a reply). It is deliberately
// kept out of query paths; filtering always happens on typed columns.
type JSONMap map[string]any

// Value implements driver.Valuer, serializing the map as JSON.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner, accepting TEXT/BLOB JSON payloads.
func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	b, err := asBytes(src)
	if err != nil {
		return fmt.Errorf("scan JSONMap: %w", err)
	}
	if len(b) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(b, (*map[string]any)(m))
}

func asBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("unsupported source type")
	}
}
