package tenant

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chairbook/internal/noshow"
	"github.com/wolfman30/chairbook/internal/timewindow"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client), mr
}

func validConfig() *Config {
	return &Config{
		TenantID: "tenant-1",
		Name:     "Barberia Sol",
		Timezone: "Europe/Madrid",
		NoShowPolicy: noshow.Policy{
			Enabled:           true,
			Mode:              noshow.ModeCancellation,
			Percentage:        50,
			CancellationHours: 12,
		},
	}
}

func TestStore_SetAndGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, validConfig()))
	assert.True(t, mr.Exists("tenant:config:tenant-1"))

	got, err := store.Get(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Madrid", got.Timezone)
	assert.Equal(t, 12, got.NoShowPolicy.CancellationHours)
	assert.False(t, got.UpdatedAt.IsZero())

	policy, err := store.NoShowPolicy(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, noshow.ModeCancellation, policy.Mode)
}

func TestStore_GetUnknownTenant(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestStore_SetRejectsInvalid(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	cfg := validConfig()
	cfg.Timezone = "Mars/Olympus"
	assert.ErrorIs(t, store.Set(ctx, cfg), timewindow.ErrInvalidTimezone)

	cfg = validConfig()
	cfg.NoShowPolicy.CancellationHours = 72
	assert.ErrorIs(t, store.Set(ctx, cfg), noshow.ErrInvalidPolicyValue)

	cfg = validConfig()
	cfg.SlotGranularityMinutes = -5
	assert.ErrorIs(t, store.Set(ctx, cfg), ErrInvalidConfig)

	assert.False(t, mr.Exists("tenant:config:tenant-1"))
}

func TestStore_GetCorruptPayload(t *testing.T) {
	store, mr := newTestStore(t)
	require.NoError(t, mr.Set("tenant:config:tenant-1", "{not json"))
	_, err := store.Get(context.Background(), "tenant-1")
	assert.Error(t, err)
}

func TestConfigGranularity(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, 15, cfg.Granularity(15))
	cfg.SlotGranularityMinutes = 20
	assert.Equal(t, 20, cfg.Granularity(15))
}
