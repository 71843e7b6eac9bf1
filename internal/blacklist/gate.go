package blacklist

import (
	"context"
	"time"

	"secgate/internal/audit"
	"secgate/internal/domain"
)

// Gate é o estágio de enforcement da blacklist: lê o diretório e decide
// O lado de escrita pertence ao tracker de abuso e à superfície administrativa
type Gate struct {
	directory domain.BlacklistDirectory
	sink      domain.AuditSink
	logger    domain.Logger
	now       func() time.Time
}

// NewGate cria o gate de blacklist
func NewGate(directory domain.BlacklistDirectory, sink domain.AuditSink, logger domain.Logger) *Gate {
	return &Gate{
		directory: directory,
		sink:      sink,
		logger:    logger,
		now:       time.Now,
	}
}

// Request carrega o endereço de origem e os dados da requisição que
// entram no evento de auditoria de um bloqueio
type Request struct {
	Address   string
	URL       string
	Method    string
	UserAgent string
}

// Check decide se um endereço de origem está bloqueado
// Diretório indisponível significa fail open: a requisição segue
func (g *Gate) Check(ctx context.Context, req *Request) (*domain.BlacklistDecision, error) {
	address := req.Address
	if !g.directory.Available(ctx) {
		g.logger.WithContext(ctx).Warn("Blacklist directory unavailable, failing open", map[string]interface{}{
			"address": address,
		})
		return &domain.BlacklistDecision{Blocked: false}, nil
	}

	entry, err := g.directory.FindActive(ctx, address)
	if err != nil {
		// Erro de consulta também é fail open: indisponibilidade da
		// dependência não pode derrubar o tráfego legítimo
		g.logger.WithContext(ctx).Error("Blacklist lookup failed, failing open", err, map[string]interface{}{
			"address": address,
		})
		return &domain.BlacklistDecision{Blocked: false}, nil
	}

	if entry == nil {
		return &domain.BlacklistDecision{Blocked: false}, nil
	}

	now := g.now()

	// Expiração lazy: a transição acontece na consulta, não em sweep
	if entry.Expired(now) {
		entry.IsActive = false
		if err := g.directory.Update(ctx, entry); err != nil {
			g.logger.WithContext(ctx).Error("Failed to deactivate expired blacklist entry", err, map[string]interface{}{
				"address":  address,
				"entry_id": entry.ID,
			})
		}

		g.sink.Record(ctx, &domain.AuditEvent{
			Action:        "blacklist.expired",
			Description:   "Temporary blacklist entry expired and was deactivated",
			SourceAddress: address,
			Severity:      domain.SeverityLow,
			Category:      audit.CategoryBlacklist,
			Properties: map[string]interface{}{
				"entry_id":   entry.ID,
				"expired_at": entry.ExpiresAt,
			},
		})

		return &domain.BlacklistDecision{Blocked: false}, nil
	}

	// Bloqueio ativo: contabiliza a tentativa e emite evento de alta severidade
	entry.AttemptCount++
	entry.LastAttemptAt = &now
	if err := g.directory.Update(ctx, entry); err != nil {
		g.logger.WithContext(ctx).Error("Failed to record blocked attempt", err, map[string]interface{}{
			"address":  address,
			"entry_id": entry.ID,
		})
	}

	g.sink.Record(ctx, &domain.AuditEvent{
		Action:        "blacklist.blocked",
		Description:   "Request from blacklisted address was rejected",
		SourceAddress: address,
		UserAgent:     req.UserAgent,
		URL:           req.URL,
		Method:        req.Method,
		IsSensitive:   true,
		Severity:      domain.SeverityHigh,
		Category:      audit.CategoryBlacklist,
		Properties: map[string]interface{}{
			"entry_id":      entry.ID,
			"reason":        entry.Reason,
			"attempt_count": entry.AttemptCount,
			"expires_at":    entry.ExpiresAt,
		},
	})

	return &domain.BlacklistDecision{Blocked: true, Entry: entry}, nil
}
