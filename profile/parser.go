package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parser decodes raw manifest bytes.
type Parser interface {
	Parse(data []byte) (*Manifest, error)
}

// YAMLParser parses YAML manifests. Unknown fields are rejected.
type YAMLParser struct{}

func (YAMLParser) Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return &m, nil
}

// JSONParser parses JSON manifests. Unknown fields are rejected.
type JSONParser struct{}

func (JSONParser) Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return &m, nil
}

// ParserFor picks a parser by file extension; anything but ".json" is YAML.
func ParserFor(path string) Parser {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSONParser{}
	}
	return YAMLParser{}
}
