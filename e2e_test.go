//go:build !appcore_embedded

package appcore_test

import (
	"context"
	"errors"
	"go/build"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-appcore/memory"
	"github.com/reglet-dev/reglet-appcore/memory/pool"
	"github.com/reglet-dev/reglet-appcore/sysapi/osapi"
)

const modulePath = "github.com/reglet-dev/reglet-appcore"

// linkedImports returns every import reachable from the root package when
// built with tags. Packages outside the module are recorded, not followed.
func linkedImports(t *testing.T, tags ...string) map[string]bool {
	t.Helper()
	ctx := build.Default
	ctx.BuildTags = tags
	ctx.CgoEnabled = false

	seen := make(map[string]bool)
	var walk func(rel string)
	walk = func(rel string) {
		pkg, err := ctx.ImportDir(filepath.Join(".", rel), 0)
		require.NoError(t, err, "package %q", rel)
		for _, imp := range pkg.Imports {
			if seen[imp] {
				continue
			}
			seen[imp] = true
			if local, ok := strings.CutPrefix(imp, modulePath+"/"); ok {
				walk(local)
			}
		}
	}
	walk(".")
	return seen
}

func TestEmbeddedBuild_LinksOnlyConstrainedVariants(t *testing.T) {
	linked := linkedImports(t, "appcore_embedded")

	for _, want := range []string{
		modulePath + "/sysapi/bare",
		modulePath + "/memory/arena",
		modulePath + "/concurrency/direct",
		modulePath + "/diagnostics/sink/ring",
	} {
		assert.True(t, linked[want], "embedded build must link %s", want)
	}

	for _, banned := range []string{
		modulePath + "/sysapi/osapi",
		modulePath + "/memory/general",
		modulePath + "/memory/pool",
		modulePath + "/concurrency/threadpool",
		modulePath + "/concurrency/cooploop",
		modulePath + "/diagnostics/sink/console",
		modulePath + "/diagnostics/sink/rotfile",
		modulePath + "/diagnostics/sink/tracing",
		modulePath + "/metrics",
		modulePath + "/profile",
		"github.com/caarlos0/env/v11",
		"github.com/charmbracelet/lipgloss",
		"github.com/bmatcuk/doublestar/v4",
		"github.com/prometheus/client_golang/prometheus",
		"net/http",
	} {
		assert.False(t, linked[banned], "embedded build must not link %s", banned)
	}
}

func TestProfileBuilds_LinkTheirVariants(t *testing.T) {
	tests := []struct {
		tags []string
		want []string
	}{
		{nil, []string{"/concurrency/threadpool", "/memory/general", "/sysapi/osapi", "/metrics"}},
		{[]string{"appcore_webapp"}, []string{"/concurrency/cooploop", "/memory/pool", "/sysapi/osapi"}},
		{[]string{"appcore_api_backend"}, []string{"/concurrency/cooploop", "/memory/pool", "/sysapi/osapi"}},
		{[]string{"appcore_automation"}, []string{"/concurrency/direct", "/memory/arena", "/sysapi/osapi"}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(append([]string{"default"}, tt.tags...), "+"), func(t *testing.T) {
			linked := linkedImports(t, tt.tags...)
			for _, w := range tt.want {
				assert.True(t, linked[modulePath+w], "missing %s", w)
			}
			assert.False(t, linked[modulePath+"/sysapi/bare"], "full OS profiles must not link bare")
		})
	}
}

func TestPoolExhaustion_IsolatedPerClass(t *testing.T) {
	sys, err := osapi.New(osapi.WithRoot(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close(context.Background()) })

	a, err := pool.New([]pool.Class{{Size: 64, Slots: 4}, {Size: 256, Slots: 4}, {Size: 1024, Slots: 2}}, pool.WithSystem(sys))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	var small []memory.Block
	for range 4 {
		b, err := a.Allocate(48, 8)
		require.NoError(t, err)
		small = append(small, b)
	}

	_, err = a.Allocate(64, 8)
	require.ErrorIs(t, err, memory.ErrExhausted)
	var exhausted *memory.ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 64, exhausted.Class)

	// Larger classes keep serving their own sizes.
	mid, err := a.Allocate(200, 8)
	require.NoError(t, err)
	big, err := a.Allocate(1024, 8)
	require.NoError(t, err)

	require.NoError(t, a.Release(small[0]))
	_, err = a.Allocate(64, 8)
	require.NoError(t, err, "a released slot is reusable")

	stats := a.Stats()
	require.Len(t, stats.Classes, 3)
	assert.Equal(t, uint64(1), stats.Classes[0].Exhausted)
	assert.Zero(t, stats.Classes[1].Exhausted)
	assert.Zero(t, stats.Classes[2].Exhausted)

	require.NoError(t, a.Release(mid))
	require.NoError(t, a.Release(big))
}
