package cache

import (
	"context"
	"fmt"
	"time"

	"secgate/internal/domain"

	"github.com/go-redis/redis/v8"
)

// incrementScript garante INCR + EXPIRE atômicos: o TTL é definido
// apenas quando a chave nasce, preservando a janela fixa do contador
const incrementScript = `
	local value = redis.call('INCR', KEYS[1])
	if value == 1 then
		redis.call('EXPIRE', KEYS[1], ARGV[1])
	end
	return value
`

// RedisCache implementa a interface domain.Cache usando Redis
type RedisCache struct {
	client redis.Cmdable
	logger domain.Logger
}

// newRedisClient monta o cliente com as opções de pool do serviço
func newRedisClient(host, port, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       db,

		// Configurações de performance
		PoolSize:     20,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
	})
}

// NewRedisCache cria uma nova instância do RedisCache
func NewRedisCache(host, port, password string, db int, logger domain.Logger) (*RedisCache, error) {
	rdb := newRedisClient(host, port, password, db)

	// Testa a conexão
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis cache connection established", map[string]interface{}{
		"host": host,
		"port": port,
		"db":   db,
	})

	return &RedisCache{
		client: rdb,
		logger: logger,
	}, nil
}

// NewRedisCacheFromClient permite injetar um cliente já configurado
func NewRedisCacheFromClient(client redis.Cmdable, logger domain.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

// Get recupera o valor de uma chave
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()

	result, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			// Chave ausente ou TTL vencido: tratada como zero/miss
			r.logOperation("GET", key, true, time.Since(start), nil)
			return nil, false, nil
		}
		r.logOperation("GET", key, false, time.Since(start), err)
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	r.logOperation("GET", key, true, time.Since(start), nil)
	return result, true, nil
}

// Put grava um valor com TTL
func (r *RedisCache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logOperation("PUT", key, false, time.Since(start), err)
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	r.logOperation("PUT", key, true, time.Since(start), nil)
	return nil
}

// Increment incrementa atomicamente um contador com TTL de janela fixa
func (r *RedisCache) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	start := time.Now()

	seconds := int64(ttl.Seconds())
	if seconds < 1 {
		seconds = 1
	}

	result, err := r.client.Eval(ctx, incrementScript, []string{key}, seconds).Int64()
	if err != nil {
		r.logOperation("INCREMENT", key, false, time.Since(start), err)
		return 0, fmt.Errorf("failed to increment key %s: %w", key, err)
	}

	r.logOperation("INCREMENT", key, true, time.Since(start), nil)
	return result, nil
}

// Counter lê o valor atual de um contador sem incrementá-lo
func (r *RedisCache) Counter(ctx context.Context, key string) (int64, error) {
	start := time.Now()

	result, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			r.logOperation("COUNTER", key, true, time.Since(start), nil)
			return 0, nil
		}
		r.logOperation("COUNTER", key, false, time.Since(start), err)
		return 0, fmt.Errorf("failed to read counter %s: %w", key, err)
	}

	r.logOperation("COUNTER", key, true, time.Since(start), nil)
	return result, nil
}

// Remember retorna o valor cacheado ou computa e grava com TTL
func (r *RedisCache) Remember(ctx context.Context, key string, ttl time.Duration, compute func() ([]byte, error)) ([]byte, error) {
	value, ok, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return value, nil
	}

	computed, err := compute()
	if err != nil {
		return nil, fmt.Errorf("failed to compute value for key %s: %w", key, err)
	}

	if err := r.Put(ctx, key, computed, ttl); err != nil {
		// O valor computado ainda serve para esta requisição
		r.logger.Error("Failed to store computed value", err, map[string]interface{}{
			"key": key,
		})
	}

	return computed, nil
}

// Delete remove uma chave
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	start := time.Now()

	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.logOperation("DELETE", key, false, time.Since(start), err)
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	r.logOperation("DELETE", key, true, time.Since(start), nil)
	return nil
}

// Health verifica se o cache está saudável
func (r *RedisCache) Health(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis health check failed: %w", err)
	}
	return nil
}

// Close fecha a conexão com o cache
func (r *RedisCache) Close() error {
	if client, ok := r.client.(*redis.Client); ok {
		if err := client.Close(); err != nil {
			r.logger.Error("Failed to close Redis connection", err, nil)
			return err
		}
		r.logger.Info("Redis cache connection closed", nil)
	}
	return nil
}

// logOperation registra operações de cache
func (r *RedisCache) logOperation(operation, key string, success bool, latency time.Duration, err error) {
	if r.logger == nil {
		return
	}

	fields := map[string]interface{}{
		"operation":  operation,
		"key":        key,
		"latency_ms": latency.Seconds() * 1000,
	}

	if success {
		r.logger.Debug("Cache operation completed", fields)
	} else {
		r.logger.Error("Cache operation failed", err, fields)
	}
}
