package blacklist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"secgate/internal/domain"

	"github.com/go-redis/redis/v8"
)

// retentionGrace mantém entradas vencidas visíveis por um período
// para que o gate consiga registrar a transição de expiração
const retentionGrace = 7 * 24 * time.Hour

// RedisDirectory implementa domain.BlacklistDirectory sobre Redis
// Uma chave JSON por endereço: `blacklist:<addr>` guarda a entrada ativa
type RedisDirectory struct {
	client redis.Cmdable
	logger domain.Logger
}

// NewRedisDirectory cria o diretório sobre um cliente Redis
func NewRedisDirectory(client redis.Cmdable, logger domain.Logger) *RedisDirectory {
	return &RedisDirectory{client: client, logger: logger}
}

func entryKey(address string) string {
	return "blacklist:" + address
}

// FindActive retorna a entrada ativa de um endereço, ou nil
func (d *RedisDirectory) FindActive(ctx context.Context, address string) (*domain.BlacklistEntry, error) {
	payload, err := d.client.Get(ctx, entryKey(address)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query blacklist entry for %s: %w", address, err)
	}

	var entry domain.BlacklistEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode blacklist entry for %s: %w", address, err)
	}

	if !entry.IsActive {
		return nil, nil
	}
	return &entry, nil
}

// Create insere uma nova entrada respeitando o invariante de bloqueio único
func (d *RedisDirectory) Create(ctx context.Context, entry *domain.BlacklistEntry) error {
	existing, err := d.FindActive(ctx, entry.Address)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrActiveEntryExists
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return d.write(ctx, entry)
}

// Update persiste mutações de uma entrada existente
// Entradas desativadas são removidas, liberando o endereço
func (d *RedisDirectory) Update(ctx context.Context, entry *domain.BlacklistEntry) error {
	if !entry.IsActive {
		if err := d.client.Del(ctx, entryKey(entry.Address)).Err(); err != nil {
			return fmt.Errorf("failed to remove blacklist entry for %s: %w", entry.Address, err)
		}
		return nil
	}
	return d.write(ctx, entry)
}

// write serializa e grava a entrada, com TTL apenas para bloqueios temporários
func (d *RedisDirectory) write(ctx context.Context, entry *domain.BlacklistEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode blacklist entry for %s: %w", entry.Address, err)
	}

	var ttl time.Duration // zero: bloqueio permanente, sem TTL
	if entry.ExpiresAt != nil {
		ttl = time.Until(*entry.ExpiresAt) + retentionGrace
		if ttl <= 0 {
			ttl = retentionGrace
		}
	}

	if err := d.client.Set(ctx, entryKey(entry.Address), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store blacklist entry for %s: %w", entry.Address, err)
	}
	return nil
}

// Available sonda o backing store; indisponibilidade vira fail open no gate
func (d *RedisDirectory) Available(ctx context.Context) bool {
	probe, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.client.Ping(probe).Err(); err != nil {
		if d.logger != nil {
			d.logger.Warn("Blacklist directory unavailable", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return false
	}
	return true
}
