package pagestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault_Baseline(t *testing.T) {
	c := Default()
	assert.Equal(t, uint32(DefaultPageSize), c.PageSize)
	assert.False(t, c.Readonly)
	assert.False(t, c.DisableBackgroundWrites)
	assert.Equal(t, DefaultQueueDepth, c.QueueDepth)
	assert.Same(t, DefaultPageCache, c.Cache)
}

func TestNewConfig_ComposesOptions(t *testing.T) {
	cache := NewPageCache(8)
	c := NewConfig(
		WithPageSize(8192),
		WithReadonly(),
		WithoutBackgroundWrites(),
		WithQueueDepth(16),
		WithCache(cache),
	)

	assert.Equal(t, uint32(8192), c.PageSize)
	assert.True(t, c.Readonly)
	assert.True(t, c.DisableBackgroundWrites)
	assert.Equal(t, 16, c.QueueDepth)
	assert.Same(t, cache, c.Cache)
}

func TestNewConfig_LaterOptionWins(t *testing.T) {
	c := NewConfig(WithPageSize(8192), WithPageSize(4096))
	assert.Equal(t, uint32(4096), c.PageSize)
}
