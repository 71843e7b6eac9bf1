package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"secgate/internal/audit"
	"secgate/internal/domain"
)

// DefaultRuleName é a regra de fallback quando nenhum padrão casa
const DefaultRuleName = "default"

// Request carrega os dados da requisição relevantes para o limiter
type Request struct {
	Route     string // nome lógico da rota (ex.: "api.reports.export")
	RuleName  string // regra explícita; vence a resolução por padrão
	ClientIP  string
	UserID    string // vazio para chamadores anônimos
	URL       string
	Method    string
	UserAgent string
}

// Limiter avalia quotas por janela fixa sobre o cache TTL compartilhado
// As tabelas de regras e padrões são imutáveis após a construção
type Limiter struct {
	cache    domain.Cache
	rules    map[string]*domain.RateLimitRule
	patterns []domain.RoutePattern
	sink     domain.AuditSink
	logger   domain.Logger
}

// NewLimiter cria o limiter com as tabelas de regras carregadas na inicialização
func NewLimiter(
	cache domain.Cache,
	rules map[string]*domain.RateLimitRule,
	patterns []domain.RoutePattern,
	sink domain.AuditSink,
	logger domain.Logger,
) *Limiter {
	return &Limiter{
		cache:    cache,
		rules:    rules,
		patterns: patterns,
		sink:     sink,
		logger:   logger,
	}
}

// Evaluate verifica a quota da requisição contra a regra resolvida
// A checagem usa o valor pré-incremento: a requisição que atinge o
// limite exato é a negada, não a anterior
func (l *Limiter) Evaluate(ctx context.Context, req *Request) (*domain.RateLimitResult, error) {
	rule := l.ResolveRule(req.Route, req.RuleName)
	log := l.logger.WithContext(ctx)

	result := &domain.RateLimitResult{
		Rule:      rule.Name,
		Limit:     rule.MaxRequests,
		Remaining: rule.MaxRequests,
		ResetAt:   time.Now().Add(rule.Window()),
	}

	// Escopo `both` avalia as duas chaves em ordem fixa (ip, depois user)
	// e para na primeira excedida: negação pela chave de IP não consome
	// a quota do usuário
	for _, key := range l.scopeKeys(rule, req) {
		count, err := l.cache.Increment(ctx, l.counterKey(rule, key), rule.Window())
		if err != nil {
			// Cache indisponível: fail open com log, a quota volta a
			// valer quando a dependência se recuperar
			log.Error("Rate limit counter unavailable, failing open", err, map[string]interface{}{
				"rule": rule.Name,
				"key":  key,
			})
			return result, nil
		}

		remaining := rule.MaxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		if remaining < result.Remaining {
			result.Remaining = remaining
		}

		if count > int64(rule.MaxRequests) {
			result.Exceeded = true
			result.Remaining = 0

			log.Info("Rate limit exceeded", map[string]interface{}{
				"rule":  rule.Name,
				"key":   key,
				"count": count,
				"limit": rule.MaxRequests,
			})

			l.sink.Record(ctx, &domain.AuditEvent{
				ActorID:       req.UserID,
				Action:        "rate_limit.exceeded",
				Description:   fmt.Sprintf("Request quota exceeded for rule %q", rule.Name),
				SourceAddress: req.ClientIP,
				UserAgent:     req.UserAgent,
				URL:           req.URL,
				Method:        req.Method,
				Severity:      domain.SeverityMedium,
				Category:      audit.CategoryRateLimit,
				Properties: map[string]interface{}{
					"rule":  rule.Name,
					"scope": string(rule.Scope),
					"key":   key,
					"count": count,
					"limit": rule.MaxRequests,
				},
			})
			break
		}
	}

	return result, nil
}

// CounterStatus descreve o consumo corrente de uma chave de quota
type CounterStatus struct {
	Rule      string `json:"rule"`
	Key       string `json:"key"`
	Count     int64  `json:"count"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

// Status lê o consumo corrente da quota sem incrementar os contadores
// Superfície administrativa de inspeção
func (l *Limiter) Status(ctx context.Context, req *Request) ([]CounterStatus, error) {
	rule := l.ResolveRule(req.Route, req.RuleName)

	statuses := make([]CounterStatus, 0, 2)
	for _, key := range l.scopeKeys(rule, req) {
		count, err := l.cache.Counter(ctx, l.counterKey(rule, key))
		if err != nil {
			return nil, fmt.Errorf("failed to read rate limit status for %q: %w", key, err)
		}

		remaining := rule.MaxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}

		statuses = append(statuses, CounterStatus{
			Rule:      rule.Name,
			Key:       key,
			Count:     count,
			Limit:     rule.MaxRequests,
			Remaining: remaining,
		})
	}

	return statuses, nil
}

// Reset zera os contadores da regra resolvida para as chaves de escopo
// da requisição, reabrindo a janela imediatamente
func (l *Limiter) Reset(ctx context.Context, req *Request) error {
	rule := l.ResolveRule(req.Route, req.RuleName)
	log := l.logger.WithContext(ctx)

	for _, key := range l.scopeKeys(rule, req) {
		if err := l.cache.Delete(ctx, l.counterKey(rule, key)); err != nil {
			return fmt.Errorf("failed to reset rate limit counter for %q: %w", key, err)
		}

		log.Info("Rate limit counter reset", map[string]interface{}{
			"rule": rule.Name,
			"key":  key,
		})
	}

	return nil
}

// ResolveRule resolve a regra aplicável: nome explícito, padrões
// ordenados de rota, e por fim a regra default
func (l *Limiter) ResolveRule(route, explicit string) *domain.RateLimitRule {
	if explicit != "" {
		if rule, ok := l.rules[explicit]; ok {
			return rule
		}
	}

	for _, p := range l.patterns {
		if matchRoute(p.Pattern, route) {
			if rule, ok := l.rules[p.Rule]; ok {
				return rule
			}
		}
	}

	if rule, ok := l.rules[DefaultRuleName]; ok {
		return rule
	}

	// Sem regra default configurada: quota generosa para não travar tráfego
	return &domain.RateLimitRule{
		Name:          DefaultRuleName,
		MaxRequests:   1000,
		WindowSeconds: 60,
		Scope:         domain.ScopeIP,
	}
}

// matchRoute compara um padrão glob `prefix.*` com o nome da rota
func matchRoute(pattern, route string) bool {
	if pattern == route {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(route, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

// scopeKeys monta as chaves de contagem conforme o escopo da regra
// Chamadores anônimos em escopo de usuário caem para a chave de IP
func (l *Limiter) scopeKeys(rule *domain.RateLimitRule, req *Request) []string {
	userKey := ""
	if req.UserID != "" {
		userKey = "user:" + req.UserID
	}

	switch rule.Scope {
	case domain.ScopeUser:
		if userKey == "" {
			return []string{"ip:" + req.ClientIP}
		}
		return []string{userKey}
	case domain.ScopeBoth:
		keys := []string{"ip:" + req.ClientIP}
		if userKey != "" {
			keys = append(keys, userKey)
		}
		return keys
	default:
		return []string{"ip:" + req.ClientIP}
	}
}

// counterKey monta a chave de storage do contador
func (l *Limiter) counterKey(rule *domain.RateLimitRule, scopeKey string) string {
	return fmt.Sprintf("rate_limit:%s:%s", rule.Name, scopeKey)
}
