package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCacheDisabledIsNoOp(t *testing.T) {
	svc := NewCacheService(nil, time.Minute, false, zap.NewNop())

	var dest []string
	hit, err := svc.Get(context.Background(), "key", &dest)
	assert.NoError(t, err)
	assert.False(t, hit)

	// Set and Invalidate must not panic without a client
	svc.Set(context.Background(), "key", []string{"value"})
	svc.Invalidate(context.Background(), "key")
}

func TestCacheEnabledRequiresClient(t *testing.T) {
	// the enabled flag alone cannot turn the cache on
	svc := NewCacheService(nil, time.Minute, true, zap.NewNop())

	hit, err := svc.Get(context.Background(), "key", nil)
	assert.NoError(t, err)
	assert.False(t, hit)
}
