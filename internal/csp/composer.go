package csp

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"secgate/internal/domain"
)

// Directive é um par nome -> fontes; listas ordenadas preservam a
// ordem de serialização do header
type Directive struct {
	Name    string   `json:"directive"`
	Sources []string `json:"sources"`
}

// RouteOverride aplica diretivas extras a rotas casadas por glob
type RouteOverride struct {
	Pattern    string      `json:"pattern"`
	Directives []Directive `json:"directives"`
}

// Tables agrupa as camadas de regras do composer, carregadas uma vez
// e imutáveis em runtime: default -> ambiente -> rota -> administrador
type Tables struct {
	Defaults       []Directive            `json:"defaults"`
	EnvOverrides   map[string][]Directive `json:"envOverrides,omitempty"`
	RouteOverrides []RouteOverride        `json:"routeOverrides,omitempty"`
	AdminOverrides []Directive            `json:"adminOverrides,omitempty"`
	NonceRoutes    []string               `json:"nonceRoutes,omitempty"`
}

// DefaultTables retorna a camada base usada quando não há configuração externa
func DefaultTables() *Tables {
	return &Tables{
		Defaults: []Directive{
			{Name: "default-src", Sources: []string{"'self'"}},
			{Name: "script-src", Sources: []string{"'self'"}},
			{Name: "style-src", Sources: []string{"'self'", "'unsafe-inline'"}},
			{Name: "img-src", Sources: []string{"'self'", "data:"}},
			{Name: "font-src", Sources: []string{"'self'"}},
			{Name: "connect-src", Sources: []string{"'self'"}},
			{Name: "object-src", Sources: []string{"'none'"}},
			{Name: "frame-ancestors", Sources: []string{"'none'"}},
			{Name: "base-uri", Sources: []string{"'self'"}},
			{Name: "form-action", Sources: []string{"'self'"}},
			{Name: "upgrade-insecure-requests", Sources: nil},
		},
		EnvOverrides: map[string][]Directive{
			"local": {
				{Name: "script-src", Sources: []string{"'unsafe-eval'"}},
				{Name: "connect-src", Sources: []string{"ws:", "http://localhost:*"}},
			},
		},
		NonceRoutes: []string{"dashboard"},
	}
}

// Composer monta a política de segurança de conteúdo da resposta
// sobrepondo as camadas da tabela na ordem fixa do pipeline
type Composer struct {
	tables      *Tables
	environment string
	logger      domain.Logger
}

// NewComposer cria o composer para um ambiente
func NewComposer(tables *Tables, environment string, logger domain.Logger) *Composer {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Composer{
		tables:      tables,
		environment: environment,
		logger:      logger,
	}
}

// Build monta o conjunto de diretivas para uma rota
// Retorna também o nonce gerado (vazio quando a rota não é elegível)
func (c *Composer) Build(route string) (*domain.CspDirectiveSet, string, error) {
	set := domain.NewCspDirectiveSet()

	apply(set, c.tables.Defaults)

	if overrides, ok := c.tables.EnvOverrides[c.environment]; ok {
		apply(set, overrides)
	}

	// Todos os padrões de rota que casarem se aplicam, na ordem da tabela
	for _, ro := range c.tables.RouteOverrides {
		if matchRoute(ro.Pattern, route) {
			apply(set, ro.Directives)
		}
	}

	apply(set, c.tables.AdminOverrides)

	nonce := ""
	if c.NonceEligible(route) {
		generated, err := generateNonce()
		if err != nil {
			// Sem nonce a política base ainda vale; não derruba a resposta
			if c.logger != nil {
				c.logger.Error("Failed to generate CSP nonce", err, map[string]interface{}{
					"route": route,
				})
			}
		} else {
			nonce = generated
			set.Add("script-src", "'nonce-"+nonce+"'")
		}
	}

	return set, nonce, nil
}

// Serialize monta o valor do header: `directive fontes; directive; ...`
// Diretivas sem fontes são emitidas bare (ex.: upgrade-insecure-requests)
func Serialize(set *domain.CspDirectiveSet) string {
	parts := make([]string, 0, len(set.Directives()))
	for _, name := range set.Directives() {
		sources := set.Sources(name)
		if len(sources) == 0 {
			parts = append(parts, name)
			continue
		}
		parts = append(parts, name+" "+strings.Join(sources, " "))
	}
	return strings.Join(parts, "; ")
}

// NonceEligible informa se a rota recebe nonce (prefixos sensíveis fixos)
func (c *Composer) NonceEligible(route string) bool {
	for _, prefix := range c.tables.NonceRoutes {
		if strings.HasPrefix(route, prefix) {
			return true
		}
	}
	return false
}

// apply sobrepõe uma camada: diretiva existente une as fontes sem
// duplicatas; diretiva nova é anexada ao final
func apply(set *domain.CspDirectiveSet, layer []Directive) {
	for _, d := range layer {
		set.Add(d.Name, d.Sources...)
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

// generateNonce produz 128 bits aleatórios em base64
func generateNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
