package profile_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/profile"
)

const minimalYAML = `
version: 1
modules:
  core:
    requires:
      - capability: concurrency
  diagnostics:
    requires:
      - capability: diagnostics
profiles:
  embedded:
    modules: []
    select:
      - {capability: concurrency, variant: single_thread}
      - {capability: diagnostics, variant: ring}
`

func TestParsers(t *testing.T) {
	m, err := profile.YAMLParser{}.Parse([]byte(minimalYAML))
	require.NoError(t, err)
	require.Contains(t, m.Profiles, profile.Embedded)
	assert.Equal(t, capability.RingBuffer, m.Profiles[profile.Embedded].Select[1].Variant)

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	fromJSON, err := profile.JSONParser{}.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, m, fromJSON)

	_, err = profile.YAMLParser{}.Parse([]byte("version: 1\nflavour: vanilla\n"))
	assert.ErrorIs(t, err, profile.ErrInvalidManifest)
	_, err = profile.JSONParser{}.Parse([]byte(`{"version": 1, "flavour": "vanilla"}`))
	assert.ErrorIs(t, err, profile.ErrInvalidManifest)

	assert.IsType(t, profile.JSONParser{}, profile.ParserFor("m.JSON"))
	assert.IsType(t, profile.YAMLParser{}, profile.ParserFor("m.yml"))
}

func TestSchema(t *testing.T) {
	raw, err := profile.SchemaJSON()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "appcore profile manifest", doc["title"])
	assert.Contains(t, string(raw), "ProfileSpec")
	assert.Contains(t, string(raw), "system_api")
}

func TestValidator(t *testing.T) {
	v, err := profile.NewValidator()
	require.NoError(t, err)

	require.NoError(t, v.ValidateYAML(profile.DefaultManifest()))
	require.NoError(t, v.ValidateYAML([]byte(minimalYAML)))

	tests := []struct {
		name string
		doc  string
	}{
		{"wrong version", "version: 2\nmodules: {}\nprofiles: {}\n"},
		{"missing profiles", "version: 1\nmodules: {}\n"},
		{"unknown capability", "version: 1\nmodules:\n  core:\n    requires: [{capability: gpu}]\nprofiles: {}\n"},
		{"empty selection", "version: 1\nmodules: {}\nprofiles:\n  desktop:\n    modules: []\n    select: []\n"},
		{"unknown field", "version: 1\nmodules: {}\nprofiles: {}\nplugins: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, v.ValidateYAML([]byte(tt.doc)), profile.ErrInvalidManifest)
		})
	}

	require.NoError(t, v.ValidateJSON([]byte(`{
		"version": 1,
		"modules": {"core": {"requires": [{"capability": "concurrency"}]}},
		"profiles": {"embedded": {"modules": [], "select": [{"capability": "concurrency", "variant": "single_thread"}]}}
	}`)))
	assert.ErrorIs(t, v.ValidateJSON([]byte(`{"version": 1}`)), profile.ErrInvalidManifest)
	assert.ErrorIs(t, v.ValidateJSON([]byte(`{`)), profile.ErrInvalidManifest)
}

func TestLoad(t *testing.T) {
	src, err := profile.Load("")
	require.NoError(t, err)
	assert.Equal(t, profile.Digest(profile.DefaultManifest()), src.Digest())
	assert.Len(t, src.Manifest.Profiles, 5)

	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))
	src, err = profile.Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, src.Path)
	assert.Len(t, src.Manifest.Profiles, 1)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"version": 3}`), 0o600))
	_, err = profile.Load(bad)
	assert.ErrorIs(t, err, profile.ErrInvalidManifest)

	_, err = profile.Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLockfile(t *testing.T) {
	m := defaultManifest(t)
	comps, err := profile.ComposeAll(m)
	require.NoError(t, err)

	digest := profile.Digest(profile.DefaultManifest())
	lock := profile.NewLockfile("capgen test", digest)
	files := make(map[profile.Name]string)
	for _, c := range comps {
		files[c.Profile] = "sha256:" + string(c.Profile)
		require.NoError(t, lock.Pin(c, "bindings_"+string(c.Profile)+"_gen.go", files[c.Profile]))
	}
	assert.Error(t, lock.Pin(comps[0], "x.go", ""))

	store := profile.NewLockStore(filepath.Join(t.TempDir(), "nested"))
	missing, err := store.Load(profile.LockfileName)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.Save(profile.LockfileName, lock))
	loaded, err := store.Load(profile.LockfileName)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, lock.ManifestDigest, loaded.ManifestDigest)
	assert.True(t, lock.Generated.Equal(loaded.Generated))
	assert.Equal(t, lock.Profiles, loaded.Profiles)

	assert.Empty(t, loaded.Drift(digest, comps, files))

	files[profile.Desktop] = "sha256:edited"
	drift := loaded.Drift("sha256:other", comps[1:], files)
	assert.Contains(t, drift, "manifest digest sha256:other, locked "+digest)
	assert.Contains(t, drift, "profile webapp is locked but no longer composed")
	assert.Contains(t, drift, "profile desktop: bindings_desktop_gen.go differs from generated output")

	assert.Error(t, store.Save(profile.LockfileName, &profile.Lockfile{Version: 1}))
}
