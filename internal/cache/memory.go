package cache

import (
	"context"
	"sync"
	"time"

	"secgate/internal/domain"
)

// memoryEntry guarda um valor com instante de expiração
type memoryEntry struct {
	value     []byte
	counter   int64
	expiresAt time.Time
}

// expired informa se a entrada venceu; TTL zero nunca expira
func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCache implementa a interface domain.Cache em memória
// Usada em desenvolvimento, testes e como fallback quando o Redis não responde
type MemoryCache struct {
	entries map[string]*memoryEntry
	mutex   sync.Mutex
	logger  domain.Logger
	done    chan struct{}
	once    sync.Once
}

// NewMemoryCache cria uma nova instância do MemoryCache
func NewMemoryCache(logger domain.Logger) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*memoryEntry),
		logger:  logger,
		done:    make(chan struct{}),
	}

	// Goroutine de limpeza periódica; a expiração também é
	// avaliada lazy em cada leitura
	go c.cleanupLoop()

	if logger != nil {
		logger.Info("Memory cache initialized", nil)
	}

	return c
}

// Get recupera o valor de uma chave
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entry, exists := m.entries[key]
	if !exists || entry.expired(time.Now()) {
		if exists {
			delete(m.entries, key)
		}
		return nil, false, nil
	}

	// Cópia para evitar mutação externa
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true, nil
}

// Put grava um valor com TTL
func (m *MemoryCache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)

	entry := &memoryEntry{value: stored}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

// Increment incrementa atomicamente um contador com TTL de janela fixa
// O TTL só é definido quando o contador nasce, como no script Lua do Redis
func (m *MemoryCache) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	entry, exists := m.entries[key]
	if !exists || entry.expired(now) {
		entry = &memoryEntry{}
		if ttl > 0 {
			entry.expiresAt = now.Add(ttl)
		}
		m.entries[key] = entry
	}

	entry.counter++
	return entry.counter, nil
}

// Counter lê o valor atual de um contador sem incrementá-lo
func (m *MemoryCache) Counter(ctx context.Context, key string) (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entry, exists := m.entries[key]
	if !exists || entry.expired(time.Now()) {
		return 0, nil
	}
	return entry.counter, nil
}

// Remember retorna o valor cacheado ou computa e grava com TTL
func (m *MemoryCache) Remember(ctx context.Context, key string, ttl time.Duration, compute func() ([]byte, error)) ([]byte, error) {
	value, ok, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return value, nil
	}

	computed, err := compute()
	if err != nil {
		return nil, err
	}

	if err := m.Put(ctx, key, computed, ttl); err != nil {
		return nil, err
	}
	return computed, nil
}

// Delete remove uma chave
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.entries, key)
	return nil
}

// Health verifica se o cache está saudável
func (m *MemoryCache) Health(ctx context.Context) error {
	m.mutex.Lock()
	size := len(m.entries)
	m.mutex.Unlock()

	if m.logger != nil {
		m.logger.Debug("Memory cache health check", map[string]interface{}{
			"entries": size,
		})
	}
	return nil
}

// Close encerra a goroutine de limpeza e descarta os dados
func (m *MemoryCache) Close() error {
	m.once.Do(func() { close(m.done) })

	m.mutex.Lock()
	m.entries = make(map[string]*memoryEntry)
	m.mutex.Unlock()

	if m.logger != nil {
		m.logger.Info("Memory cache closed", nil)
	}
	return nil
}

// cleanupLoop remove entradas expiradas periodicamente
func (m *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupExpired()
		case <-m.done:
			return
		}
	}
}

// cleanupExpired remove entradas vencidas
func (m *MemoryCache) cleanupExpired() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range m.entries {
		if entry.expired(now) {
			delete(m.entries, key)
			removed++
		}
	}

	if removed > 0 && m.logger != nil {
		m.logger.Debug("Memory cache cleanup completed", map[string]interface{}{
			"removed": removed,
		})
	}
}
