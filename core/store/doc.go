package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Typed getters. Documents come back from schemaless backends, so every
// getter tolerates both the Go-native and the JSON-decoded representation
// of its type and falls back to the zero value.

func (d Doc) ID() string { return d.String("id") }

func (d Doc) String(key string) string {
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}

func (d Doc) Float(key string) float64 {
	switch v := d[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func (d Doc) Int(key string) int {
	return int(d.Float(key))
}

func (d Doc) Decimal(key string) decimal.Decimal {
	switch v := d[key].(type) {
	case string:
		if dec, err := decimal.NewFromString(v); err == nil {
			return dec
		}
	case float64, float32, int, int64:
		return decimal.NewFromFloat(d.Float(key))
	}
	return decimal.Zero
}

func (d Doc) Time(key string) time.Time {
	switch v := d[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (d Doc) Docs(key string) []Doc {
	switch v := d[key].(type) {
	case []Doc:
		return v
	case []interface{}:
		docs := make([]Doc, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				docs = append(docs, Doc(m))
			}
		}
		return docs
	}
	return nil
}

// Clone returns a shallow-plus-one-level copy of the document, deep
// enough that callers mutating a snapshot doc cannot corrupt the store.
func (d Doc) Clone() Doc {
	cp := make(Doc, len(d))
	for k, v := range d {
		if nested, ok := v.([]interface{}); ok {
			items := make([]interface{}, len(nested))
			copy(items, nested)
			cp[k] = items
			continue
		}
		cp[k] = v
	}
	return cp
}
