package cache

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

func TestCacheSetGet(t *testing.T) {
	c, err := New(16, time.Minute, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	assert.True(t, c.Enabled())
	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set(Key("block", 42), "block-42", source.RPC)
	entry, ok := c.Get("block|42")
	require.True(t, ok)
	assert.Equal(t, "block-42", entry.Value)
	assert.Equal(t, source.RPC, entry.Source)
	assert.False(t, entry.StoredAt.IsZero())
	assert.Equal(t, 1, c.Size())

	c.Delete("block|42")
	_, ok = c.Get("block|42")
	assert.False(t, ok)

	c.Set("a", 1, source.GraphQL)
	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestCacheStampsWithClock(t *testing.T) {
	mockClock := clock.NewMock()
	mockClock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	c, err := New(16, time.Minute, zerolog.Nop(), WithClock(mockClock))
	require.NoError(t, err)
	defer c.Close()

	c.Set("k", "v", source.GraphQL)
	entry, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, mockClock.Now(), entry.StoredAt)
}

func TestCacheExpires(t *testing.T) {
	c, err := New(16, 50*time.Millisecond, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	c.Set("k", "v", source.GraphQL)
	assert.Eventually(t, func() bool {
		_, ok := c.Get("k")
		return !ok
	}, 3*time.Second, 20*time.Millisecond)
}

func TestCacheDisabled(t *testing.T) {
	c, err := New(16, 0, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	assert.False(t, c.Enabled())
	c.Set("k", "v", source.RPC)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "blocks", Key("blocks"))
	assert.Equal(t, "blocks|10|20", Key("blocks", 10, 20))
	assert.Equal(t, "txs|ABC|rpc", Key("txs", "ABC", source.RPC))
}
