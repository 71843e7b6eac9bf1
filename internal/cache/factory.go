package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"secgate/internal/domain"

	"github.com/go-redis/redis/v8"
)

// BackendType define os backends de cache disponíveis
type BackendType string

const (
	RedisBackend  BackendType = "redis"
	MemoryBackend BackendType = "memory"
)

// RedisConfig contém configurações específicas do Redis
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	Database int
}

// BackendConfig contém configurações para criação do cache
type BackendConfig struct {
	Type  BackendType
	Redis *RedisConfig
}

// Backend agrupa o cache criado e o cliente Redis compartilhado pelos
// demais componentes (diretório de blacklist, sink de auditoria).
// Client é nil quando o backend efetivo é memória
type Backend struct {
	Cache  domain.Cache
	Client *redis.Client
}

// NewBackend cria o backend conforme a configuração; quando o Redis não
// responde, cai para memória em vez de derrubar o serviço (fail open na
// dependência)
func NewBackend(config *BackendConfig, logger domain.Logger) (*Backend, error) {
	if config == nil {
		return nil, fmt.Errorf("cache config cannot be nil")
	}

	switch strings.ToLower(string(config.Type)) {
	case string(RedisBackend):
		if err := validateRedisConfig(config.Redis); err != nil {
			return nil, err
		}

		client := newRedisClient(config.Redis.Host, config.Redis.Port, config.Redis.Password, config.Redis.Database)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			if logger != nil {
				logger.Warn("Redis unreachable, falling back to memory cache", map[string]interface{}{
					"host":  config.Redis.Host,
					"port":  config.Redis.Port,
					"error": err.Error(),
				})
			}
			return &Backend{Cache: NewMemoryCache(logger)}, nil
		}

		if logger != nil {
			logger.Info("Redis cache connection established", map[string]interface{}{
				"host": config.Redis.Host,
				"port": config.Redis.Port,
				"db":   config.Redis.Database,
			})
		}
		return &Backend{
			Cache:  NewRedisCacheFromClient(client, logger),
			Client: client,
		}, nil

	case string(MemoryBackend):
		return &Backend{Cache: NewMemoryCache(logger)}, nil

	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", config.Type)
	}
}

// New cria apenas o cache; componentes que precisam do cliente Redis
// compartilhado usam NewBackend
func New(config *BackendConfig, logger domain.Logger) (domain.Cache, error) {
	backend, err := NewBackend(config, logger)
	if err != nil {
		return nil, err
	}
	return backend.Cache, nil
}

// validateRedisConfig valida configuração do Redis
func validateRedisConfig(config *RedisConfig) error {
	if config == nil {
		return fmt.Errorf("Redis config cannot be nil")
	}
	if config.Host == "" {
		return fmt.Errorf("Redis host cannot be empty")
	}
	if config.Port == "" {
		return fmt.Errorf("Redis port cannot be empty")
	}
	if config.Database < 0 || config.Database > 15 {
		return fmt.Errorf("Redis database must be between 0 and 15, got: %d", config.Database)
	}
	return nil
}
