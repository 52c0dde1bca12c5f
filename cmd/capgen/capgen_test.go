package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-appcore/profile"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateThenVerify(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, "generate", "--out", dir)
	require.NoError(t, err)

	for _, n := range profile.Names() {
		_, err := os.Stat(filepath.Join(dir, "bindings_"+string(n)+"_gen.go"))
		assert.NoError(t, err, "missing bindings for %s", n)
	}
	lock, err := profile.NewLockStore(dir).Load(profile.LockfileName)
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Len(t, lock.Profiles, len(profile.Names()))
	assert.Equal(t, profile.Digest(profile.DefaultManifest()), lock.ManifestDigest)

	out, err := run(t, "verify", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "5 profiles up to date")
}

func TestVerify_DetectsHandEdits(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "generate", "--out", dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "bindings_embedded_gen.go")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(raw, []byte("\n// edited\n")...), 0o644))

	out, err := run(t, "verify", "--out", dir)
	require.ErrorIs(t, err, profile.ErrLockDrift)
	assert.Contains(t, out, "bindings_embedded_gen.go")
}

func TestVerify_ManifestChanged(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "generate", "--out", dir)
	require.NoError(t, err)

	manifest := filepath.Join(t.TempDir(), "profiles.yaml")
	raw := bytes.Replace(profile.DefaultManifest(), []byte("variant: general"), []byte("variant: arena"), 1)
	require.NoError(t, os.WriteFile(manifest, raw, 0o644))

	out, err := run(t, "verify", "--out", dir, "--manifest", manifest)
	require.ErrorIs(t, err, profile.ErrLockDrift)
	assert.Contains(t, out, "manifest digest")
	assert.Contains(t, out, "profile desktop bindings changed")
}

func TestVerify_NoLockfile(t *testing.T) {
	_, err := run(t, "verify", "--out", t.TempDir())
	assert.ErrorIs(t, err, profile.ErrLockDrift)
}

func TestGenerate_RemovesStaleBindings(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "bindings_kiosk_gen.go")
	require.NoError(t, os.WriteFile(stale, []byte("package appcore\n"), 0o644))
	keep := filepath.Join(dir, "core.go")
	require.NoError(t, os.WriteFile(keep, []byte("package appcore\n"), 0o644))

	_, err := run(t, "generate", "--out", dir)
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.FileExists(t, keep)
}

func TestCompose(t *testing.T) {
	out, err := run(t, "compose", "api_backend", "--with", "frontend", "--format", "json")
	require.NoError(t, err)

	var c profile.Composition
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, profile.APIBackend, c.Profile)
	assert.Contains(t, c.Modules, "frontend")
	assert.Len(t, c.Bindings, 4)

	out, err = run(t, "compose", "embedded")
	require.NoError(t, err)
	assert.Contains(t, out, "variant: bare")

	_, err = run(t, "compose", "embedded", "--with", "frontend")
	assert.ErrorIs(t, err, profile.ErrUndefinedCombination)

	_, err = run(t, "compose", "kiosk")
	assert.ErrorIs(t, err, profile.ErrUnknownProfile)
}

func TestSchema(t *testing.T) {
	out, err := run(t, "schema")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))
	assert.Contains(t, out, "profiles")
}

func TestExplain(t *testing.T) {
	out, err := run(t, "explain", "desktop")
	require.NoError(t, err)
	assert.Contains(t, out, "profile desktop")
	assert.Contains(t, out, "-tags appcore_desktop")
	assert.Contains(t, out, "thread_pool")
	assert.Contains(t, out, "file_management")
}

func TestExplain_RequiresProfileWithoutTerminal(t *testing.T) {
	_, err := run(t, "explain")
	assert.ErrorIs(t, err, errNoProfile)
}

func TestVerify_CheckedInBindings(t *testing.T) {
	out, err := run(t, "verify", "--out", filepath.Join("..", ".."))
	require.NoError(t, err, out)
}
