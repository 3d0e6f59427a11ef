package redisad_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisad "caffio/internal/adapters/redis"
)

func TestCache_SetGetDel(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	var raw json.RawMessage
	ok, err := c.Get(ctx, "poi:1", &raw)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "poi:1", json.RawMessage(`{"type":"Feature"}`), 60))
	assert.True(t, mr.Exists("caffio:poi:1"))

	ok, err = c.Get(ctx, "poi:1", &raw)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"Feature"}`, string(raw))

	require.NoError(t, c.Del(ctx, "poi:1"))
	assert.False(t, mr.Exists("caffio:poi:1"))
}

func TestCache_TTLExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", map[string]string{"a": "b"}, 5))
	mr.FastForward(6 * time.Second)

	var out map[string]string
	ok, err := c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}
