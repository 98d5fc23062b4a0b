package di

import (
	"context"
	"testing"
	"time"

	"Wonderland/pkg/cache"
	"Wonderland/pkg/config"
	applogger "Wonderland/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisDisabledFallsBackToMemory(t *testing.T) {
	cfg := &config.Config{}
	cfg.Redis.Disabled = true

	rc, err := ProvideRedisCache(cfg)
	require.NoError(t, err)
	assert.Nil(t, rc)

	svc := ProvideCacheService(rc, applogger.Nop())
	defer svc.Close()
	_, ok := svc.(*cache.MemoryCache)
	require.True(t, ok)

	token, held, err := svc.TryLock(context.Background(), "portfolio-rebalance", time.Minute)
	require.NoError(t, err)
	require.True(t, held)
	_, held, _ = svc.TryLock(context.Background(), "portfolio-rebalance", time.Minute)
	assert.False(t, held)
	require.NoError(t, svc.Unlock(context.Background(), "portfolio-rebalance", token))

	q := ProvideQueue(cfg, rc, applogger.Nop())
	assert.Nil(t, q)
	assert.Nil(t, ProvideNotifier(cfg, q, nil, applogger.Nop()))
}
