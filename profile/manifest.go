package profile

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed profiles.yaml
var defaultManifest []byte

// DefaultManifest returns the raw built-in manifest.
func DefaultManifest() []byte { return defaultManifest }

// Default parses the built-in manifest.
func Default() (*Manifest, error) {
	m, err := YAMLParser{}.Parse(defaultManifest)
	if err != nil {
		return nil, fmt.Errorf("built-in manifest: %w", err)
	}
	return m, nil
}

// Source is a loaded manifest together with the bytes it was parsed from.
type Source struct {
	Manifest *Manifest
	Path     string
	Raw      []byte
}

// Digest returns the sha256 of the raw manifest as "sha256:<hex>".
func (s Source) Digest() string { return Digest(s.Raw) }

// Digest hashes manifest bytes.
func Digest(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Load reads, parses and validates the manifest at path. An empty path
// selects the built-in manifest.
func Load(path string) (*Source, error) {
	if path == "" {
		m, err := Default()
		if err != nil {
			return nil, err
		}
		return &Source{Manifest: m, Raw: defaultManifest}, nil
	}

	root, err := os.OpenRoot(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest directory: %w", err)
	}
	defer func() { _ = root.Close() }()

	raw, err := fs.ReadFile(root.FS(), filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %q: %w", path, err)
	}

	v, err := NewValidator()
	if err != nil {
		return nil, err
	}
	parser := ParserFor(path)
	if err := v.ValidateBytes(raw, parser); err != nil {
		return nil, err
	}
	m, err := parser.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &Source{Manifest: m, Path: path, Raw: raw}, nil
}
