package abuse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"secgate/internal/blacklist"
	"secgate/internal/cache"
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

func (s *captureSink) count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.events)
}

func newTestTracker(t *testing.T, threshold int) (*Tracker, *blacklist.MemoryDirectory, *captureSink) {
	t.Helper()
	c := cache.NewMemoryCache(logger.NewLogger("debug", "text"))
	t.Cleanup(func() { c.Close() })

	directory := blacklist.NewMemoryDirectory()
	sink := &captureSink{}
	tracker := NewTracker(c, directory, sink, logger.NewLogger("debug", "text"),
		threshold, time.Hour, 24*time.Hour)
	return tracker, directory, sink
}

func TestTracker_RecordFailure_BelowThreshold(t *testing.T) {
	// Arrange
	tracker, directory, sink := newTestTracker(t, 10)
	ctx := context.Background()

	// Act: 9 falhas não escalam
	for i := 0; i < 9; i++ {
		tracker.RecordFailure(ctx, "10.0.0.1")
	}

	// Assert
	entry, err := directory.FindActive(ctx, "10.0.0.1")
	assert.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, 0, sink.count())
}

func TestTracker_RecordFailure_ThresholdCreatesBlock(t *testing.T) {
	// Arrange
	tracker, directory, sink := newTestTracker(t, 10)
	ctx := context.Background()
	before := time.Now()

	// Act: a 10ª falha cria o bloqueio automático
	for i := 0; i < 10; i++ {
		tracker.RecordFailure(ctx, "10.0.0.2")
	}

	// Assert
	entry, err := directory.FindActive(ctx, "10.0.0.2")
	assert.NoError(t, err)
	assert.NotNil(t, entry)
	assert.True(t, entry.IsActive)
	assert.Equal(t, SystemActor, entry.CreatedBy)
	assert.Contains(t, entry.Reason, "10 forgery validation failures")

	// Bloqueio de 24 horas a partir da escalada
	assert.NotNil(t, entry.ExpiresAt)
	assert.WithinDuration(t, before.Add(24*time.Hour), *entry.ExpiresAt, 5*time.Second)

	assert.Equal(t, 1, sink.count())
	assert.Equal(t, "abuse.auto_blacklist", sink.events[0].Action)
	assert.Equal(t, domain.SeverityHigh, sink.events[0].Severity)
	assert.True(t, sink.events[0].IsSensitive)
}

func TestTracker_RecordFailure_Idempotent(t *testing.T) {
	// Arrange: endereço já escalado
	tracker, directory, sink := newTestTracker(t, 10)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		tracker.RecordFailure(ctx, "10.0.0.3")
	}
	entry, err := directory.FindActive(ctx, "10.0.0.3")
	assert.NoError(t, err)
	assert.NotNil(t, entry)

	// Act: falhas seguintes não criam um segundo bloqueio
	tracker.RecordFailure(ctx, "10.0.0.3")
	tracker.RecordFailure(ctx, "10.0.0.3")

	// Assert
	current, err := directory.FindActive(ctx, "10.0.0.3")
	assert.NoError(t, err)
	assert.Equal(t, entry.ID, current.ID)
	assert.Equal(t, 1, sink.count())
}

func TestTracker_RecordFailure_IsolatesAddresses(t *testing.T) {
	// Arrange
	tracker, directory, _ := newTestTracker(t, 3)
	ctx := context.Background()

	// Act: falhas divididas entre dois endereços
	tracker.RecordFailure(ctx, "10.0.0.4")
	tracker.RecordFailure(ctx, "10.0.0.4")
	tracker.RecordFailure(ctx, "10.0.0.5")

	// Assert: nenhum endereço atingiu o limiar sozinho
	entry, err := directory.FindActive(ctx, "10.0.0.4")
	assert.NoError(t, err)
	assert.Nil(t, entry)

	entry, err = directory.FindActive(ctx, "10.0.0.5")
	assert.NoError(t, err)
	assert.Nil(t, entry)
}

func TestTracker_RecordFailure_DirectoryUnavailable(t *testing.T) {
	// Diretório fora do ar não pode derrubar a resposta da requisição
	tracker, directory, sink := newTestTracker(t, 2)
	directory.SetAvailable(false)
	ctx := context.Background()

	tracker.RecordFailure(ctx, "10.0.0.6")
	tracker.RecordFailure(ctx, "10.0.0.6")

	assert.Equal(t, 0, sink.count())
}

func TestStaticTokenValidator_Validate(t *testing.T) {
	validator := NewStaticTokenValidator()
	ctx := context.Background()

	tests := []struct {
		name        string
		provided    string
		expected    string
		expectError bool
	}{
		{
			name:     "Should accept matching token",
			provided: "token-abc",
			expected: "token-abc",
		},
		{
			name:        "Should reject mismatched token",
			provided:    "token-xyz",
			expected:    "token-abc",
			expectError: true,
		},
		{
			name:        "Should reject missing token",
			provided:    "",
			expected:    "token-abc",
			expectError: true,
		},
		{
			name:     "Should pass through when no token is configured",
			provided: "anything",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(ctx, tt.provided, tt.expected)
			if tt.expectError {
				assert.ErrorIs(t, err, ErrTokenMismatch)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
