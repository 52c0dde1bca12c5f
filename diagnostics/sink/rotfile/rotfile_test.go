package rotfile_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/diagnostics"
	"github.com/reglet-dev/reglet-appcore/diagnostics/sink/rotfile"
)

var day = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return day }

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestRotfile_WritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	s, err := rotfile.New(dir, rotfile.WithService("svc"), rotfile.WithClock(clock))
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), diagnostics.Event{
		Time: day, Severity: diagnostics.SeverityWarn, Source: capability.Memory,
		Message: "low", Fields: []diagnostics.Field{diagnostics.F("free", 12)},
	}))
	require.NoError(t, s.Close(context.Background()))

	path := filepath.Join(dir, "svc_2026-05-04.log")
	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "low", lines[0]["msg"])
	assert.Equal(t, "memory", lines[0]["source"])
	assert.Equal(t, "svc", lines[0]["service"])
	assert.EqualValues(t, 12, lines[0]["free"])
}

func TestRotfile_RotatesBySize(t *testing.T) {
	dir := t.TempDir()
	s, err := rotfile.New(dir, rotfile.WithClock(clock), rotfile.WithMaxBytes(64), rotfile.WithMaxBackups(2))
	require.NoError(t, err)
	defer s.Close(context.Background())

	for range 10 {
		require.NoError(t, s.Write(context.Background(), diagnostics.Event{
			Time: day, Severity: diagnostics.SeverityInfo, Message: strings.Repeat("x", 40),
		}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"appcore_2026-05-04.log",
		"appcore_2026-05-04.log.1",
		"appcore_2026-05-04.log.2",
	}, names)
}

func TestRotfile_SwitchesFileOnNewDay(t *testing.T) {
	dir := t.TempDir()
	s, err := rotfile.New(dir, rotfile.WithClock(clock))
	require.NoError(t, err)
	defer s.Close(context.Background())

	next := day.Add(24 * time.Hour)
	require.NoError(t, s.Write(context.Background(), diagnostics.Event{Time: next, Message: "tomorrow"}))

	assert.Equal(t, filepath.Join(dir, "appcore_2026-05-05.log"), s.Path())
	assert.FileExists(t, filepath.Join(dir, "appcore_2026-05-04.log"))
}

func TestRotfile_WriteAfterClose(t *testing.T) {
	s, err := rotfile.New(t.TempDir(), rotfile.WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))

	assert.ErrorIs(t, s.Write(context.Background(), diagnostics.Event{Time: day}), os.ErrClosed)
}

func TestRotfile_RecoversAfterFailedRotation(t *testing.T) {
	dir := t.TempDir()
	s, err := rotfile.New(dir, rotfile.WithClock(clock), rotfile.WithMaxBytes(16), rotfile.WithMaxBackups(1))
	require.NoError(t, err)
	defer s.Close(context.Background())

	write := func(msg string) error {
		return s.Write(context.Background(), diagnostics.Event{Time: day, Message: msg})
	}
	require.NoError(t, write("first"))

	// A non-empty directory in place of the oldest backup cannot be removed.
	backup := filepath.Join(dir, "appcore_2026-05-04.log.1")
	require.NoError(t, os.MkdirAll(filepath.Join(backup, "blocker"), 0o750))
	assert.Error(t, write("second"))

	require.NoError(t, os.RemoveAll(backup))
	require.NoError(t, write("third"))

	lines := readLines(t, s.Path())
	require.Len(t, lines, 1)
	assert.Equal(t, "third", lines[0]["msg"])
	assert.FileExists(t, backup)
}
