package blacklist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"secgate/internal/domain"
	"secgate/internal/logger"
)

// captureSink guarda os eventos emitidos para inspeção nos testes
type captureSink struct {
	mutex  sync.Mutex
	events []*domain.AuditEvent
}

func (s *captureSink) Record(ctx context.Context, event *domain.AuditEvent) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) actions() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Action)
	}
	return out
}

func newTestGate() (*Gate, *MemoryDirectory, *captureSink) {
	directory := NewMemoryDirectory()
	sink := &captureSink{}
	gate := NewGate(directory, sink, logger.NewLogger("debug", "text"))
	return gate, directory, sink
}

func TestGate_Check_NoEntry(t *testing.T) {
	// Arrange
	gate, _, sink := newTestGate()

	// Act
	decision, err := gate.Check(context.Background(), &Request{Address: "10.0.0.1"})

	// Assert
	assert.NoError(t, err)
	assert.False(t, decision.Blocked)
	assert.Empty(t, sink.actions())
}

func TestGate_Check_ActiveEntry(t *testing.T) {
	// Arrange
	gate, directory, sink := newTestGate()
	ctx := context.Background()

	expiresAt := time.Now().Add(time.Hour)
	err := directory.Create(ctx, &domain.BlacklistEntry{
		ID:        "entry-1",
		Address:   "10.0.0.2",
		Reason:    "manual block",
		IsActive:  true,
		ExpiresAt: &expiresAt,
	})
	assert.NoError(t, err)

	// Act
	decision, err := gate.Check(ctx, &Request{
		Address:   "10.0.0.2",
		URL:       "/api/reports?page=1",
		Method:    "GET",
		UserAgent: "test-agent",
	})

	// Assert
	assert.NoError(t, err)
	assert.True(t, decision.Blocked)
	assert.NotNil(t, decision.Entry)
	assert.Equal(t, "manual block", decision.Entry.Reason)
	assert.Equal(t, []string{"blacklist.blocked"}, sink.actions())

	// O evento carrega os dados da requisição bloqueada
	event := sink.events[0]
	assert.Equal(t, "/api/reports?page=1", event.URL)
	assert.Equal(t, "GET", event.Method)
	assert.Equal(t, "test-agent", event.UserAgent)

	// A tentativa bloqueada é contabilizada na entrada
	stored, err := directory.FindActive(ctx, "10.0.0.2")
	assert.NoError(t, err)
	assert.Equal(t, 1, stored.AttemptCount)
	assert.NotNil(t, stored.LastAttemptAt)
}

func TestGate_Check_PermanentEntry(t *testing.T) {
	// Arrange: ExpiresAt nulo significa bloqueio permanente
	gate, directory, _ := newTestGate()
	ctx := context.Background()

	err := directory.Create(ctx, &domain.BlacklistEntry{
		ID:       "entry-2",
		Address:  "10.0.0.3",
		Reason:   "permanent block",
		IsActive: true,
	})
	assert.NoError(t, err)

	// Act
	decision, err := gate.Check(ctx, &Request{Address: "10.0.0.3"})

	// Assert
	assert.NoError(t, err)
	assert.True(t, decision.Blocked)
}

func TestGate_Check_LazyExpiration(t *testing.T) {
	// Arrange: entrada temporária já vencida
	gate, directory, sink := newTestGate()
	ctx := context.Background()

	expiresAt := time.Now().Add(-time.Minute)
	err := directory.Create(ctx, &domain.BlacklistEntry{
		ID:        "entry-3",
		Address:   "10.0.0.4",
		Reason:    "temporary block",
		IsActive:  true,
		ExpiresAt: &expiresAt,
	})
	assert.NoError(t, err)

	// Act: a primeira consulta desativa a entrada vencida
	decision, err := gate.Check(ctx, &Request{Address: "10.0.0.4"})

	// Assert
	assert.NoError(t, err)
	assert.False(t, decision.Blocked)
	assert.Equal(t, []string{"blacklist.expired"}, sink.actions())

	stored, err := directory.FindActive(ctx, "10.0.0.4")
	assert.NoError(t, err)
	assert.Nil(t, stored)

	// A segunda consulta não encontra entrada ativa e não emite novo evento
	decision, err = gate.Check(ctx, &Request{Address: "10.0.0.4"})
	assert.NoError(t, err)
	assert.False(t, decision.Blocked)
	assert.Equal(t, []string{"blacklist.expired"}, sink.actions())
}

func TestGate_Check_DirectoryUnavailable(t *testing.T) {
	// Arrange: backing store não provisionado
	gate, directory, sink := newTestGate()
	directory.SetAvailable(false)

	// Act
	decision, err := gate.Check(context.Background(), &Request{Address: "10.0.0.5"})

	// Assert: fail open, a requisição segue
	assert.NoError(t, err)
	assert.False(t, decision.Blocked)
	assert.Empty(t, sink.actions())
}

func TestMemoryDirectory_SingleActiveInvariant(t *testing.T) {
	// Arrange
	directory := NewMemoryDirectory()
	ctx := context.Background()

	err := directory.Create(ctx, &domain.BlacklistEntry{
		ID:       "entry-a",
		Address:  "10.0.0.6",
		IsActive: true,
	})
	assert.NoError(t, err)

	// Act: segunda entrada ativa para o mesmo endereço
	err = directory.Create(ctx, &domain.BlacklistEntry{
		ID:       "entry-b",
		Address:  "10.0.0.6",
		IsActive: true,
	})

	// Assert
	assert.ErrorIs(t, err, domain.ErrActiveEntryExists)
}
