package audit

import (
	"context"
	"encoding/json"
	"time"

	"secgate/internal/domain"

	"github.com/go-redis/redis/v8"
)

// Categorias padrão dos eventos emitidos pelo pipeline
const (
	CategoryBlacklist = "blacklist"
	CategoryRateLimit = "rate_limit"
	CategoryThreat    = "threat"
	CategoryAuthz     = "authorization"
	CategoryAbuse     = "abuse"
)

// LoggerSink grava eventos de auditoria direto no logger estruturado
// Usado em desenvolvimento e como canal de fallback do RedisSink
type LoggerSink struct {
	logger domain.Logger
}

// NewLoggerSink cria um sink baseado em logger
func NewLoggerSink(logger domain.Logger) *LoggerSink {
	return &LoggerSink{logger: logger}
}

// Record registra o evento; nunca propaga falha ao chamador
func (s *LoggerSink) Record(ctx context.Context, event *domain.AuditEvent) {
	if event == nil {
		return
	}
	stamp(event)

	fields := eventFields(event)
	log := s.logger.WithContext(ctx)

	switch event.Severity {
	case domain.SeverityCritical, domain.SeverityHigh:
		log.Warn("Security audit event", fields)
	default:
		log.Info("Security audit event", fields)
	}
}

// RedisSink empilha eventos em uma lista limitada no Redis
// Falhas de escrita são absorvidas e o evento vai para o fallback
type RedisSink struct {
	client   redis.Cmdable
	fallback domain.AuditSink
	logger   domain.Logger
	key      string
	maxSize  int64
}

// NewRedisSink cria o sink primário com fallback obrigatório
func NewRedisSink(client redis.Cmdable, fallback domain.AuditSink, logger domain.Logger) *RedisSink {
	return &RedisSink{
		client:   client,
		fallback: fallback,
		logger:   logger,
		key:      "audit:events",
		maxSize:  10000,
	}
}

// Record empilha o evento; em erro, redireciona ao fallback
// A durabilidade da trilha cede à disponibilidade da requisição
func (s *RedisSink) Record(ctx context.Context, event *domain.AuditEvent) {
	if event == nil {
		return
	}
	stamp(event)

	payload, err := json.Marshal(event)
	if err != nil {
		s.redirect(ctx, event, err)
		return
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, payload)
	pipe.LTrim(ctx, s.key, 0, s.maxSize-1)
	if _, err := pipe.Exec(ctx); err != nil {
		s.redirect(ctx, event, err)
	}
}

// redirect envia o evento ao canal de fallback
func (s *RedisSink) redirect(ctx context.Context, event *domain.AuditEvent, cause error) {
	if s.logger != nil {
		s.logger.Error("Audit sink write failed, using fallback", cause, map[string]interface{}{
			"action":   event.Action,
			"category": event.Category,
		})
	}
	if s.fallback != nil {
		s.fallback.Record(ctx, event)
	}
}

// stamp garante o instante de gravação do evento
func stamp(event *domain.AuditEvent) {
	if event.RecordedAt.IsZero() {
		event.RecordedAt = time.Now()
	}
}

// eventFields achata o evento em campos de log
func eventFields(event *domain.AuditEvent) map[string]interface{} {
	fields := map[string]interface{}{
		"action":      event.Action,
		"description": event.Description,
		"severity":    string(event.Severity),
		"category":    event.Category,
		"sensitive":   event.IsSensitive,
	}
	if event.ActorID != "" {
		fields["actor_id"] = event.ActorID
	}
	if event.SourceAddress != "" {
		fields["source_address"] = event.SourceAddress
	}
	if event.UserAgent != "" {
		fields["user_agent"] = event.UserAgent
	}
	if event.URL != "" {
		fields["url"] = event.URL
	}
	if event.Method != "" {
		fields["method"] = event.Method
	}
	for k, v := range event.Properties {
		fields["prop_"+k] = v
	}
	return fields
}
