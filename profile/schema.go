package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const schemaURL = "https://reglet.dev/schemas/appcore/profiles.json"

// Schema reflects the manifest JSON Schema from the Go types.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{ExpandedStruct: true}
	s := r.Reflect(&Manifest{})
	s.ID = schemaURL
	s.Title = "appcore profile manifest"
	return s
}

// SchemaJSON returns the indented manifest schema.
func SchemaJSON() ([]byte, error) {
	b, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest schema: %w", err)
	}
	return b, nil
}

// Validator checks manifest documents against the schema before they are
// decoded, so structural mistakes are reported with a JSON pointer.
type Validator struct {
	schema *sjsonschema.Schema
}

var (
	compiledOnce sync.Once
	compiled     *sjsonschema.Schema
	compileErr   error
)

// NewValidator compiles the manifest schema once per process.
func NewValidator() (*Validator, error) {
	compiledOnce.Do(func() {
		var raw []byte
		raw, compileErr = SchemaJSON()
		if compileErr != nil {
			return
		}
		c := sjsonschema.NewCompiler()
		if compileErr = c.AddResource(schemaURL, bytes.NewReader(raw)); compileErr != nil {
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	if compileErr != nil {
		return nil, fmt.Errorf("failed to compile manifest schema: %w", compileErr)
	}
	return &Validator{schema: compiled}, nil
}

// ValidateJSON validates a JSON document.
func (v *Validator) ValidateJSON(raw []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return v.validate(doc)
}

// ValidateYAML validates a YAML document by way of its JSON form.
func (v *Validator) ValidateYAML(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return v.ValidateJSON(b)
}

// ValidateBytes validates raw in the format p decodes.
func (v *Validator) ValidateBytes(raw []byte, p Parser) error {
	if _, ok := p.(JSONParser); ok {
		return v.ValidateJSON(raw)
	}
	return v.ValidateYAML(raw)
}

func (v *Validator) validate(doc any) error {
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return nil
}
