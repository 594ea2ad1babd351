//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/openconnect-gateway/internal/config"
	"github.com/magabrotheeeer/openconnect-gateway/internal/models"
)

const redisPort = nat.Port("6379/tcp")

func setupRedisContainer(ctx context.Context, t *testing.T) config.RedisConnection {
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{string(redisPort)},
		WaitingFor:   wait.ForListeningPort(redisPort).WithStartupTimeout(time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, redisPort)
	require.NoError(t, err)

	return config.RedisConnection{
		AddressRedis: host + ":" + port.Port(),
		DialTimeout:  5 * time.Second,
		TimeoutRedis: 3 * time.Second,
	}
}

func TestRedisCredentialStore_Integration(t *testing.T) {
	ctx := context.Background()
	cfg := setupRedisContainer(ctx, t)

	c, err := InitServer(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	store := NewRedisCredentialStore(c, "integration")
	expiry := time.Now().Add(time.Hour).UTC()

	require.NoError(t, store.Save(ctx, models.Credential{Token: "tok", Expiry: expiry}))

	ttl, err := c.Db.TTL(ctx, store.key(TokenKey)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Hour)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", got.Token)

	require.NoError(t, store.Purge(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNoCredential)
}
