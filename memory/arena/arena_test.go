package arena_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/reglet-appcore/memory"
	"github.com/reglet-dev/reglet-appcore/memory/arena"
	"github.com/reglet-dev/reglet-appcore/memory/general"
	"github.com/reglet-dev/reglet-appcore/sysapi/bare"
)

func newArena(t *testing.T, capacity int) *arena.Allocator {
	t.Helper()
	sys, err := bare.New(bare.WithHeapBytes(capacity))
	require.NoError(t, err)
	a, err := arena.New(sys, capacity)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestArena_BlocksValidUntilReset(t *testing.T) {
	a := newArena(t, 4096)

	blocks := make([]memory.Block, 0, 3)
	for i := range 3 {
		b, err := a.Allocate(100, 16)
		require.NoError(t, err)
		data, err := b.Bytes()
		require.NoError(t, err)
		data[0] = byte(i + 1)
		blocks = append(blocks, b)
	}

	for i, b := range blocks {
		data, err := b.Bytes()
		require.NoError(t, err)
		assert.Equal(t, byte(i+1), data[0], "blocks must not overlap")
		assert.Zero(t, b.Addr()%16)
	}

	require.NoError(t, a.Reset())
	for _, b := range blocks {
		_, err := b.Bytes()
		assert.ErrorIs(t, err, memory.ErrStaleBlock)
	}

	b, err := a.Allocate(100, 16)
	require.NoError(t, err)
	data, err := b.Bytes()
	require.NoError(t, err)
	assert.Equal(t, byte(0), data[0], "memory reused after reset is zeroed")
}

func TestArena_Exhaustion(t *testing.T) {
	a := newArena(t, 256)

	_, err := a.Allocate(200, 8)
	require.NoError(t, err)

	_, err = a.Allocate(100, 8)
	var ex *memory.ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, int64(256), ex.Capacity)
	assert.Equal(t, 100, ex.Requested)
	assert.ErrorIs(t, err, memory.ErrExhausted)

	// A smaller request still fits.
	_, err = a.Allocate(56, 8)
	assert.NoError(t, err)
	assert.Zero(t, a.Available())
}

func TestArena_ReleaseChecksOwnership(t *testing.T) {
	a := newArena(t, 1024)
	b, err := a.Allocate(8, 0)
	require.NoError(t, err)

	foreign, err := general.New().Allocate(8, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, a.Release(foreign), memory.ErrForeignBlock)

	require.NoError(t, a.Release(b))
	assert.ErrorIs(t, a.Release(b), memory.ErrDoubleRelease)

	st := a.Stats()
	assert.Equal(t, int64(8), st.InUse, "release does not reclaim arena space")
	assert.Zero(t, st.Live)
}

func TestArena_ManyBlocksAcrossCellChunks(t *testing.T) {
	a := newArena(t, 8192)
	var blocks []memory.Block
	for range 600 {
		b, err := a.Allocate(8, 8)
		require.NoError(t, err)
		blocks = append(blocks, b)
	}
	for _, b := range blocks {
		assert.True(t, b.Live())
	}
}

func TestArena_ReserveFailure(t *testing.T) {
	sys, err := bare.New(bare.WithHeapBytes(64))
	require.NoError(t, err)
	_, err = arena.New(sys, 128)
	assert.Error(t, err)
}

func TestArena_CloseReturnsRegion(t *testing.T) {
	sys, err := bare.New(bare.WithHeapBytes(512))
	require.NoError(t, err)
	a, err := arena.New(sys, 512)
	require.NoError(t, err)
	b, err := a.Allocate(8, 0)
	require.NoError(t, err)

	require.NoError(t, a.Close(context.Background()))
	assert.Equal(t, 512, sys.HeapFree())
	assert.False(t, b.Live())

	_, err = a.Allocate(8, 0)
	assert.ErrorIs(t, err, memory.ErrClosed)
}

func TestArena_Synchronized(t *testing.T) {
	a := memory.Synchronize(newArena(t, 1024))
	b, err := a.Allocate(32, 0)
	require.NoError(t, err)
	assert.True(t, b.Live())
}
