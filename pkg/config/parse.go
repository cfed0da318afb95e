package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseDocumentYAML parses a Document from YAML bytes and validates it.
func ParseDocumentYAML(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse fitter yaml: %w", err)
	}
	if doc.LogLevel == "" {
		doc.LogLevel = "info"
	}

	if err := validateDocument(&doc); err != nil {
		return nil, fmt.Errorf("invalid fitter document: %w", err)
	}

	return &doc, nil
}
