//go:build appcore_embedded

package appcore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcore "github.com/reglet-dev/reglet-appcore"
	"github.com/reglet-dev/reglet-appcore/capability"
	"github.com/reglet-dev/reglet-appcore/concurrency"
	"github.com/reglet-dev/reglet-appcore/memory"
)

func newEmbedded(t *testing.T, mutate func(*appcore.Config)) *appcore.Core {
	t.Helper()
	cfg := appcore.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := appcore.New(context.Background(), appcore.WithConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestEmbedded_Bindings(t *testing.T) {
	c := newEmbedded(t, nil)

	assert.Equal(t, "embedded", c.Profile())
	want := map[capability.ID]capability.VariantID{
		capability.Diagnostics: capability.RingBuffer,
		capability.SystemAPI:   capability.Constrained,
		capability.Memory:      capability.ArenaAllocator,
		capability.Concurrency: capability.SingleThread,
	}
	for id, v := range want {
		got, ok := c.Snapshot().Variant(id)
		require.True(t, ok)
		assert.Equal(t, v, got, "%s", id)
	}
	assert.Equal(t, int64(512<<10), c.Memory().Stats().Capacity)
}

func TestEmbedded_SubmitRunsInline(t *testing.T) {
	c := newEmbedded(t, nil)

	var ran bool
	h, err := c.Submit(context.Background(), func(context.Context, concurrency.Yielder) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran, "single_thread runs the unit before Submit returns")
	assert.Equal(t, concurrency.StateSucceeded, h.State())

	boom := errors.New("boom")
	_, err = c.Submit(context.Background(), func(context.Context, concurrency.Yielder) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestEmbedded_RingKeepsRecentEvents(t *testing.T) {
	c := newEmbedded(t, func(cfg *appcore.Config) { cfg.RingSize = 4 })

	log := c.Logger("sensor")
	for range 10 {
		log.Info("sample")
	}
	events := c.Ring().Snapshot()
	require.Len(t, events, 4)
	assert.Equal(t, "sample", events[len(events)-1].Message)
	assert.NotZero(t, c.Ring().Overwritten())
}

func TestEmbedded_ArenaExhaustion(t *testing.T) {
	c := newEmbedded(t, func(cfg *appcore.Config) { cfg.ArenaBytes = 1024 })

	_, err := c.Memory().Allocate(1000, 8)
	require.NoError(t, err)
	_, err = c.Memory().Allocate(64, 8)
	require.ErrorIs(t, err, memory.ErrExhausted)

	require.NoError(t, c.Memory().Reset())
	_, err = c.Memory().Allocate(64, 8)
	assert.NoError(t, err)
}
