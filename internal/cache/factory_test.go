package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"secgate/internal/logger"
)

func TestNew(t *testing.T) {
	testLogger := logger.NewLogger("debug", "text")

	tests := []struct {
		name        string
		config      *BackendConfig
		expectError bool
	}{
		{
			name:   "Should create memory cache",
			config: &BackendConfig{Type: MemoryBackend},
		},
		{
			name:   "Should accept backend type case-insensitively",
			config: &BackendConfig{Type: "MEMORY"},
		},
		{
			name:        "Should reject nil config",
			config:      nil,
			expectError: true,
		},
		{
			name:        "Should reject unknown backend",
			config:      &BackendConfig{Type: "etcd"},
			expectError: true,
		},
		{
			name: "Should reject Redis config without host",
			config: &BackendConfig{
				Type:  RedisBackend,
				Redis: &RedisConfig{Port: "6379"},
			},
			expectError: true,
		},
		{
			name: "Should reject Redis database out of range",
			config: &BackendConfig{
				Type:  RedisBackend,
				Redis: &RedisConfig{Host: "localhost", Port: "6379", Database: 42},
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			c, err := New(tt.config, testLogger)

			// Assert
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, c)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, c)
			c.Close()
		})
	}
}

func TestNewBackend(t *testing.T) {
	t.Run("Should not expose client for memory backend", func(t *testing.T) {
		backend, err := NewBackend(&BackendConfig{Type: MemoryBackend}, logger.NewLogger("debug", "text"))

		assert.NoError(t, err)
		assert.Nil(t, backend.Client)
		assert.IsType(t, &MemoryCache{}, backend.Cache)
		backend.Cache.Close()
	})

	t.Run("Should fall back to memory when Redis is unreachable", func(t *testing.T) {
		backend, err := NewBackend(&BackendConfig{
			Type:  RedisBackend,
			Redis: &RedisConfig{Host: "localhost", Port: "1", Database: 0},
		}, logger.NewLogger("debug", "text"))

		assert.NoError(t, err)
		assert.Nil(t, backend.Client)
		assert.IsType(t, &MemoryCache{}, backend.Cache)
		backend.Cache.Close()
	})
}

func TestNew_RedisFallback(t *testing.T) {
	// Redis inalcançável cai para memória em vez de falhar
	c, err := New(&BackendConfig{
		Type:  RedisBackend,
		Redis: &RedisConfig{Host: "localhost", Port: "1", Database: 0},
	}, logger.NewLogger("debug", "text"))

	assert.NoError(t, err)
	assert.NotNil(t, c)
	assert.IsType(t, &MemoryCache{}, c)
	c.Close()
}
