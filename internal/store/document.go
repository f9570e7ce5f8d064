package store

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Document is the schema-on-read view of a stored record, keyed by the
// snake_case field names that are also the column names.
type Document = map[string]any

// ToDocument converts a typed record into its document form.
func ToDocument(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

// FromDocument fills v from a document.
func FromDocument(doc Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// Expand turns dotted keys such as "equipment.nozzle" into nested maps.
func Expand(fields Document) Document {
	out := make(Document, len(fields))
	Merge(out, fields)
	return out
}

// Merge applies fields onto doc. Plain keys replace the value; dotted keys
// replace only the nested leaf they name.
func Merge(doc Document, fields Document) {
	for key, value := range fields {
		if !strings.Contains(key, ".") {
			doc[key] = value
			continue
		}
		parts := strings.Split(key, ".")
		cur := doc
		for _, part := range parts[:len(parts)-1] {
			next, ok := cur[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[part] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = value
	}
}

// topLevel returns the first path segment of a field name.
func topLevel(field string) string {
	if i := strings.IndexByte(field, '.'); i >= 0 {
		return field[:i]
	}
	return field
}
