package cache_test

import (
	"context"
	"testing"

	"github.com/herohde/sherlock/pkg/board/fen"
	"github.com/herohde/sherlock/pkg/sherlock/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLegalInMemory(t *testing.T) {
	c, err := cache.NewCache(cache.CacheOptions{})
	require.NoError(t, err)
	defer c.Close()

	pos, turn, _, _, err := fen.Decode(fen.Initial)
	require.NoError(t, err)

	ctx := context.Background()

	legal, err := c.IsLegal(ctx, pos, turn)
	require.NoError(t, err)
	assert.True(t, legal)

	// Second lookup should hit the cache and agree.
	legal, err = c.IsLegal(ctx, pos, turn)
	require.NoError(t, err)
	assert.True(t, legal)
}

func TestIsLegalIllegalPosition(t *testing.T) {
	c, err := cache.NewCache(cache.CacheOptions{})
	require.NoError(t, err)
	defer c.Close()

	pos, turn, _, _, err := fen.Decode("r1bqkb1r/ppppp1pp/8/8/2pP4/8/1PP1PPPP/R1BQKB1R b KQkq d3 0 1")
	require.NoError(t, err)

	legal, err := c.IsLegal(context.Background(), pos, turn)
	require.NoError(t, err)
	assert.False(t, legal)
}

func TestCloseThenReopenInMemory(t *testing.T) {
	c1, err := cache.NewCache(cache.CacheOptions{})
	require.NoError(t, err)
	require.NoError(t, c1.Close())

	c2, err := cache.NewCache(cache.CacheOptions{})
	require.NoError(t, err)
	require.NoError(t, c2.Close())
}
