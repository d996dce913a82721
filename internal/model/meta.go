package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Meta is a free-form key/value document stored as JSON.
type Meta map[string]any

// Clone returns a shallow copy of m.
func (m Meta) Clone() Meta {
	if m == nil {
		return nil
	}
	c := make(Meta, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Value implements driver.Valuer.
func (m Meta) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding meta: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Meta) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil || data == nil {
		*m = nil
		return err
	}
	var out Meta
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decoding meta: %w", err)
	}
	*m = out
	return nil
}

// Spans is a list of ranges stored as JSON.
type Spans []Span

// Value implements driver.Valuer.
func (s Spans) Value() (driver.Value, error) {
	if len(s) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]Span(s))
	if err != nil {
		return nil, fmt.Errorf("encoding spans: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *Spans) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil || data == nil {
		*s = nil
		return err
	}
	var out []Span
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decoding spans: %w", err)
	}
	*s = out
	return nil
}

func jsonBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		if len(v) == 0 {
			return nil, nil
		}
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported JSON column type %T", src)
	}
}
