package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClientPings(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, client.Close())
}

func TestNewRedisClientRejectsEmptyAddr(t *testing.T) {
	_, err := NewRedisClient(context.Background(), Options{Addr: "  "})
	require.Error(t, err)
}

func TestNewRedisClientFailsWhenServerIsGone(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(context.Background(), Options{Addr: addr, DialTimeout: 200 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{Addr: " localhost:6379 ", ReadTimeout: time.Second}.withDefaults()

	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 5*time.Second, opts.DialTimeout)
	assert.Equal(t, time.Second, opts.ReadTimeout)
	assert.Equal(t, 3*time.Second, opts.WriteTimeout)
}
