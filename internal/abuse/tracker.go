package abuse

import (
	"context"
	"fmt"
	"time"

	"secgate/internal/audit"
	"secgate/internal/domain"

	"github.com/google/uuid"
)

// SystemActor identifica bloqueios criados pelo próprio pipeline
const SystemActor = "system"

// Tracker acumula falhas de validação anti-forgery por endereço e,
// passado o limiar, cria um bloqueio temporário no diretório de blacklist
// Este componente é o lado de escrita; o enforcement fica no gate
type Tracker struct {
	cache     domain.Cache
	directory domain.BlacklistDirectory
	sink      domain.AuditSink
	logger    domain.Logger

	threshold     int64
	window        time.Duration
	blockDuration time.Duration
	now           func() time.Time
}

// NewTracker cria o tracker com os parâmetros da janela de abuso
func NewTracker(
	cache domain.Cache,
	directory domain.BlacklistDirectory,
	sink domain.AuditSink,
	logger domain.Logger,
	threshold int,
	window, blockDuration time.Duration,
) *Tracker {
	if threshold <= 0 {
		threshold = 10
	}
	if window <= 0 {
		window = time.Hour
	}
	if blockDuration <= 0 {
		blockDuration = 24 * time.Hour
	}
	return &Tracker{
		cache:         cache,
		directory:     directory,
		sink:          sink,
		logger:        logger,
		threshold:     int64(threshold),
		window:        window,
		blockDuration: blockDuration,
		now:           time.Now,
	}
}

// RecordFailure contabiliza uma falha de token e escala para bloqueio
// quando o contador pós-incremento atinge o limiar. O contador segue
// independente depois do bloqueio (não é zerado)
func (t *Tracker) RecordFailure(ctx context.Context, address string) {
	log := t.logger.WithContext(ctx)

	count, err := t.cache.Increment(ctx, counterKey(address), t.window)
	if err != nil {
		// Contador indisponível não pode derrubar a resposta da requisição
		log.Error("Failed to increment forgery failure counter", err, map[string]interface{}{
			"address": address,
		})
		return
	}

	log.Debug("Forgery validation failure recorded", map[string]interface{}{
		"address": address,
		"count":   count,
	})

	if count < t.threshold {
		return
	}

	// O guard de entrada ativa torna a escalada idempotente:
	// a 11ª falha não cria um segundo bloqueio
	existing, err := t.directory.FindActive(ctx, address)
	if err != nil {
		log.Error("Failed to check existing blacklist entry", err, map[string]interface{}{
			"address": address,
		})
		return
	}
	if existing != nil {
		return
	}

	now := t.now()
	expiresAt := now.Add(t.blockDuration)
	entry := &domain.BlacklistEntry{
		ID:        uuid.New().String(),
		Address:   address,
		Reason:    fmt.Sprintf("automatic block after %d forgery validation failures", count),
		CreatedBy: SystemActor,
		IsActive:  true,
		CreatedAt: now,
		ExpiresAt: &expiresAt,
	}

	if err := t.directory.Create(ctx, entry); err != nil {
		if err == domain.ErrActiveEntryExists {
			// Corrida com outra requisição do mesmo endereço; o invariante venceu
			return
		}
		log.Error("Failed to create automatic blacklist entry", err, map[string]interface{}{
			"address": address,
		})
		return
	}

	log.Warn("Address blacklisted after repeated forgery failures", map[string]interface{}{
		"address":    address,
		"count":      count,
		"expires_at": expiresAt,
	})

	t.sink.Record(ctx, &domain.AuditEvent{
		Action:        "abuse.auto_blacklist",
		Description:   "Address automatically blacklisted after repeated forgery validation failures",
		SourceAddress: address,
		IsSensitive:   true,
		Severity:      domain.SeverityHigh,
		Category:      audit.CategoryAbuse,
		Properties: map[string]interface{}{
			"entry_id":      entry.ID,
			"failure_count": count,
			"expires_at":    expiresAt,
		},
	})
}

// counterKey monta a chave do contador de falhas por endereço
func counterKey(address string) string {
	return "csrf_fail:" + address
}
