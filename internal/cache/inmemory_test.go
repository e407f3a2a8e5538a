package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	key := GenerateKey(PrefixTenantPolicy, "Tenant-A")
	assert.Equal(t, "tenant_policy:v1::tenant-a", key)

	c.Set(ctx, key, 42, 0)
	c.Set(ctx, GenerateKey(PrefixTenantPolicy, "tenant-b"), 7, time.Minute)
	c.Set(ctx, "other", 1, 0)

	v, ok := c.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	c.DeleteByPrefix(ctx, PrefixTenantPolicy)
	_, ok = c.Get(ctx, key)
	assert.False(t, ok)
	_, ok = c.Get(ctx, "other")
	assert.True(t, ok)

	c.Flush(ctx)
	_, ok = c.Get(ctx, "other")
	assert.False(t, ok)
}
