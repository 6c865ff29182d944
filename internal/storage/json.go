package storage

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a document for backends that persist JSON.
func Encode(doc Document) ([]byte, error) {
	if doc == nil {
		doc = Document{}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("couldn't encode document: %w", err)
	}
	return b, nil
}

// Decode parses a JSON document. Numbers come back as float64.
func Decode(b []byte) (Document, error) {
	doc := Document{}
	if len(b) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("couldn't decode document: %w", err)
	}
	return doc, nil
}
