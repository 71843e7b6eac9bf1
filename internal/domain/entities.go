package domain

import "time"

// Severity classifica eventos de auditoria
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RiskLevel classifica achados do scanner de ameaças
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ScopeKind define o escopo de contagem de um rate limit
type ScopeKind string

const (
	ScopeIP   ScopeKind = "ip"
	ScopeUser ScopeKind = "user"
	ScopeBoth ScopeKind = "both"
)

// BlacklistEntry representa um bloqueio de endereço de origem
// ExpiresAt nulo significa bloqueio permanente
type BlacklistEntry struct {
	ID            string     `json:"id"`
	Address       string     `json:"address"`
	Reason        string     `json:"reason"`
	CreatedBy     string     `json:"createdBy"`
	IsActive      bool       `json:"isActive"`
	CreatedAt     time.Time  `json:"createdAt"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	AttemptCount  int        `json:"attemptCount"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
}

// Expired informa se o bloqueio temporário já venceu
func (e *BlacklistEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// BlacklistDecision é o resultado da verificação do BlacklistGate
type BlacklistDecision struct {
	Blocked bool            `json:"blocked"`
	Entry   *BlacklistEntry `json:"entry,omitempty"`
}

// RateLimitRule define uma regra nomeada de rate limiting
type RateLimitRule struct {
	Name          string    `json:"name"`
	MaxRequests   int       `json:"maxRequests"`
	WindowSeconds int       `json:"windowSeconds"`
	Scope         ScopeKind `json:"scope"`
	Description   string    `json:"description,omitempty"`
}

// Window retorna a janela da regra como duração
func (r *RateLimitRule) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// RoutePattern mapeia um padrão de rota (glob `prefix.*`) para uma regra
type RoutePattern struct {
	Pattern string `json:"pattern"`
	Rule    string `json:"rule"`
}

// RateLimitResult representa o resultado de uma avaliação de rate limit
type RateLimitResult struct {
	Exceeded  bool      `json:"exceeded"`
	Rule      string    `json:"rule"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// ThreatSignature é uma assinatura de padrão de ataque
// HighRisk marca o subconjunto que derruba a requisição com 403
type ThreatSignature struct {
	Name     string `json:"name"`
	Pattern  string `json:"pattern"`
	HighRisk bool   `json:"highRisk"`
}

// ThreatFinding agrupa os padrões casados em um campo da requisição
type ThreatFinding struct {
	FieldPath       string    `json:"fieldPath"`
	MatchedPatterns []string  `json:"matchedPatterns"`
	RiskLevel       RiskLevel `json:"riskLevel"`
}

// ScanResult é o resultado consolidado de um scan
type ScanResult struct {
	Findings map[string]*ThreatFinding `json:"findings"`
}

// HighRisk informa se algum campo atingiu risco alto
func (s *ScanResult) HighRisk() bool {
	for _, f := range s.Findings {
		if f.RiskLevel == RiskHigh {
			return true
		}
	}
	return false
}

// MaxRisk retorna o maior nível de risco encontrado
func (s *ScanResult) MaxRisk() RiskLevel {
	max := RiskLow
	for _, f := range s.Findings {
		switch f.RiskLevel {
		case RiskHigh:
			return RiskHigh
		case RiskMedium:
			max = RiskMedium
		}
	}
	return max
}

const RoleStatusActive = "active"

// RoleRef referencia um papel ativo do chamador
// Level menor significa papel mais privilegiado
type RoleRef struct {
	Name   string `json:"name"`
	Level  int    `json:"level"`
	Status string `json:"status"`
}

// Active informa se o papel está habilitado
func (r *RoleRef) Active() bool {
	return r.Status == RoleStatusActive
}

// Role é a visão completa de um papel no diretório
type Role struct {
	Name        string   `json:"name"`
	Level       int      `json:"level"`
	Status      string   `json:"status"`
	Permissions []string `json:"permissions,omitempty"`
}

// Caller é o chamador autenticado (ou não) da requisição
// Substitui o objeto de usuário ambiente: sempre passado explicitamente
type Caller struct {
	ID       string    `json:"id"`
	IsActive bool      `json:"isActive"`
	Roles    []RoleRef `json:"roles"`
}

// Anonymous informa se não há chamador autenticado
func (c *Caller) Anonymous() bool {
	return c == nil || c.ID == ""
}

// AuthzLogic combina os tokens exigidos em uma verificação
type AuthzLogic string

const (
	LogicAnd AuthzLogic = "and"
	LogicOr  AuthzLogic = "or"
)

// AuthzDecision carrega o resultado e o motivo de uma autorização
type AuthzDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// CspDirectiveSet é um conjunto ordenado de diretivas CSP
// A ordem de inserção das diretivas e das fontes é preservada
type CspDirectiveSet struct {
	order   []string
	sources map[string][]string
}

// NewCspDirectiveSet cria um conjunto vazio
func NewCspDirectiveSet() *CspDirectiveSet {
	return &CspDirectiveSet{sources: make(map[string][]string)}
}

// Add anexa fontes a uma diretiva, removendo duplicatas e
// preservando a ordem da primeira aparição
func (d *CspDirectiveSet) Add(directive string, sources ...string) {
	existing, ok := d.sources[directive]
	if !ok {
		d.order = append(d.order, directive)
		existing = []string{}
	}
	seen := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		seen[s] = struct{}{}
	}
	for _, s := range sources {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		existing = append(existing, s)
	}
	d.sources[directive] = existing
}

// Directives retorna os nomes de diretiva na ordem de inserção
func (d *CspDirectiveSet) Directives() []string {
	return d.order
}

// Sources retorna as fontes de uma diretiva
func (d *CspDirectiveSet) Sources(directive string) []string {
	return d.sources[directive]
}

// AuditEvent é o evento estruturado enviado ao sink de auditoria
type AuditEvent struct {
	ActorID       string                 `json:"actorId,omitempty"`
	Action        string                 `json:"action"`
	Description   string                 `json:"description"`
	Properties    map[string]interface{} `json:"properties,omitempty"`
	SourceAddress string                 `json:"sourceAddress,omitempty"`
	UserAgent     string                 `json:"userAgent,omitempty"`
	URL           string                 `json:"url,omitempty"`
	Method        string                 `json:"method,omitempty"`
	IsSensitive   bool                   `json:"isSensitive"`
	Severity      Severity               `json:"severity"`
	Category      string                 `json:"category"`
	RecordedAt    time.Time              `json:"recordedAt"`
}
