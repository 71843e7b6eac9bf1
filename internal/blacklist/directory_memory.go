package blacklist

import (
	"context"
	"sync"
	"time"

	"secgate/internal/domain"
)

// MemoryDirectory implementa domain.BlacklistDirectory em memória
// Usada em desenvolvimento e testes
type MemoryDirectory struct {
	entries     map[string][]*domain.BlacklistEntry // endereço -> histórico de entradas
	mutex       sync.RWMutex
	unavailable bool
}

// NewMemoryDirectory cria um diretório vazio
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		entries: make(map[string][]*domain.BlacklistEntry),
	}
}

// SetAvailable simula o provisionamento (ou não) do backing store
func (d *MemoryDirectory) SetAvailable(available bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.unavailable = !available
}

// FindActive retorna a entrada ativa de um endereço, ou nil
func (d *MemoryDirectory) FindActive(ctx context.Context, address string) (*domain.BlacklistEntry, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	if d.unavailable {
		return nil, domain.ErrDirectoryUnavailable
	}

	for _, entry := range d.entries[address] {
		if entry.IsActive {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, nil
}

// Create insere uma nova entrada respeitando o invariante de bloqueio único
func (d *MemoryDirectory) Create(ctx context.Context, entry *domain.BlacklistEntry) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.unavailable {
		return domain.ErrDirectoryUnavailable
	}

	for _, existing := range d.entries[entry.Address] {
		if existing.IsActive {
			return domain.ErrActiveEntryExists
		}
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	copied := *entry
	d.entries[entry.Address] = append(d.entries[entry.Address], &copied)
	return nil
}

// Update persiste mutações de uma entrada existente
func (d *MemoryDirectory) Update(ctx context.Context, entry *domain.BlacklistEntry) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.unavailable {
		return domain.ErrDirectoryUnavailable
	}

	for i, existing := range d.entries[entry.Address] {
		if existing.ID == entry.ID {
			copied := *entry
			d.entries[entry.Address][i] = &copied
			return nil
		}
	}
	return nil
}

// Available informa se o backing store está provisionado
func (d *MemoryDirectory) Available(ctx context.Context) bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return !d.unavailable
}
