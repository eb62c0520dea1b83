package redis

import (
	"context"
	"net"
	"testing"

	"pricing-service/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig(t *testing.T, addr string) config.RedisConfig {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	return config.RedisConfig{Enabled: true, Host: host, Port: port, DB: 2, PoolSize: 4}
}

func TestNewRedisClient_ConnectsAndPings(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(createTestConfig(t, mr.Addr()))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.PingContext(context.Background()))

	opts := client.GetClient().Options()
	assert.Equal(t, mr.Addr(), opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 4, opts.PoolSize)
	assert.Equal(t, ioTimeout, opts.ReadTimeout)

	require.NoError(t, client.GetClient().Set(context.Background(), "k", "v", 0).Err())
	mr.Select(2)
	assert.True(t, mr.Exists("k"))
}

func TestNewRedisClient_RequiresPassword(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("s3cret")

	_, err := NewRedisClient(createTestConfig(t, mr.Addr()))
	assert.Error(t, err)

	cfg := createTestConfig(t, mr.Addr())
	cfg.Password = "s3cret"
	client, err := NewRedisClient(cfg)
	require.NoError(t, err)
	client.Close()
}

func TestClient_PingContextFailsWhenServerGone(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client, err := NewRedisClient(createTestConfig(t, addr))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	mr.Close()

	err = client.PingContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}
