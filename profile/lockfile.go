package profile

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/goccy/go-yaml"
)

// LockfileName is the default lockfile written next to generated bindings.
const LockfileName = "appcore.lock.yaml"

// ErrLockDrift is returned when the manifest or the generated bindings no
// longer match the lockfile.
var ErrLockDrift = errors.New("composition drifted from lockfile")

// Lockfile pins the compositions that produced the generated bindings.
//
// Invariants:
//   - ManifestDigest is set
//   - every profile entry has a file digest
type Lockfile struct {
	Generated      time.Time            `yaml:"generated"`
	Profiles       map[Name]ProfileLock `yaml:"profiles"`
	Generator      string               `yaml:"generator"`
	ManifestDigest string               `yaml:"manifest_digest"`
	Version        int                  `yaml:"version"`
}

// ProfileLock is the pinned composition of one profile.
type ProfileLock struct {
	File     string    `yaml:"file"`
	Digest   string    `yaml:"digest"`
	Modules  []string  `yaml:"modules"`
	Bindings []Binding `yaml:"bindings"`
	Sizing   Sizing    `yaml:"sizing"`
}

// NewLockfile creates an empty lockfile for a manifest digest.
func NewLockfile(generator, manifestDigest string) *Lockfile {
	return &Lockfile{
		Version:        1,
		Generated:      time.Now().UTC().Truncate(time.Second),
		Generator:      generator,
		ManifestDigest: manifestDigest,
		Profiles:       make(map[Name]ProfileLock),
	}
}

// Pin records c as generated into file with the given content digest.
func (l *Lockfile) Pin(c *Composition, file, digest string) error {
	if digest == "" {
		return fmt.Errorf("profile %q: digest is required", c.Profile)
	}
	if l.Profiles == nil {
		l.Profiles = make(map[Name]ProfileLock)
	}
	l.Profiles[c.Profile] = ProfileLock{
		File:     file,
		Digest:   digest,
		Modules:  slices.Clone(c.Modules),
		Bindings: slices.Clone(c.Bindings),
		Sizing:   c.Sizing,
	}
	return nil
}

// Validate checks lockfile invariants.
func (l *Lockfile) Validate() error {
	if l.Version != 1 {
		return fmt.Errorf("unsupported lockfile version %d", l.Version)
	}
	if l.ManifestDigest == "" {
		return errors.New("manifest digest is required")
	}
	for name, p := range l.Profiles {
		if p.Digest == "" {
			return fmt.Errorf("profile %q: digest is required", name)
		}
	}
	return nil
}

// Drift lists the differences between the lockfile and a fresh composition
// run. files maps profile names to the digest of their generated file.
func (l *Lockfile) Drift(manifestDigest string, comps []*Composition, files map[Name]string) []string {
	var out []string
	if l.ManifestDigest != manifestDigest {
		out = append(out, fmt.Sprintf("manifest digest %s, locked %s", manifestDigest, l.ManifestDigest))
	}

	seen := make(map[Name]bool, len(comps))
	for _, c := range comps {
		seen[c.Profile] = true
		p, ok := l.Profiles[c.Profile]
		if !ok {
			out = append(out, fmt.Sprintf("profile %s is not locked", c.Profile))
			continue
		}
		if !slices.Equal(p.Bindings, c.Bindings) {
			out = append(out, fmt.Sprintf("profile %s bindings changed", c.Profile))
		}
		if !slices.Equal(p.Modules, c.Modules) {
			out = append(out, fmt.Sprintf("profile %s modules changed", c.Profile))
		}
		if p.Sizing != c.Sizing {
			out = append(out, fmt.Sprintf("profile %s sizing changed: %s, locked %s", c.Profile, c.Sizing, p.Sizing))
		}
		if d, ok := files[c.Profile]; ok && d != p.Digest {
			out = append(out, fmt.Sprintf("profile %s: %s differs from generated output", c.Profile, p.File))
		}
	}
	for _, name := range slices.Sorted(maps.Keys(l.Profiles)) {
		if !seen[name] {
			out = append(out, fmt.Sprintf("profile %s is locked but no longer composed", name))
		}
	}
	return out
}

// LockStore reads and writes lockfiles confined to one directory.
type LockStore struct {
	dir string
}

// NewLockStore creates a store rooted at dir.
func NewLockStore(dir string) *LockStore {
	return &LockStore{dir: dir}
}

// Load reads name from the store. A missing lockfile returns (nil, nil).
func (s *LockStore) Load(name string) (*Lockfile, error) {
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open directory %q: %w", s.dir, err)
	}
	defer func() { _ = root.Close() }()

	file, err := root.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open lockfile %q: %w", name, err)
	}
	defer func() { _ = file.Close() }()

	var lock Lockfile
	if err := yaml.NewDecoder(file).Decode(&lock); err != nil {
		return nil, fmt.Errorf("decoding lockfile YAML: %w", err)
	}
	if err := lock.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lockfile: %w", err)
	}
	return &lock, nil
}

// Save writes lock to name, replacing any previous content.
func (s *LockStore) Save(name string, lock *Lockfile) error {
	if err := lock.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid lockfile: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("creating directory %q: %w", s.dir, err)
	}
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return fmt.Errorf("opening directory for write %q: %w", s.dir, err)
	}
	defer func() { _ = root.Close() }()

	data, err := yaml.Marshal(lock)
	if err != nil {
		return fmt.Errorf("encoding lockfile: %w", err)
	}

	tmp := name + ".tmp"
	if err := root.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing lockfile %q: %w", name, err)
	}
	if err := root.Rename(tmp, name); err != nil {
		_ = root.Remove(tmp)
		return fmt.Errorf("replacing lockfile %q: %w", name, err)
	}
	return nil
}

// Path returns the location of name in the store.
func (s *LockStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}
