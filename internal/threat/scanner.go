package threat

import (
	"fmt"
	"regexp"
	"strings"

	"secgate/internal/domain"
)

// mediumThreshold: acima deste número de padrões casados o campo vira medium
const mediumThreshold = 2

// compiledSignature é uma assinatura com a regex compilada na inicialização
type compiledSignature struct {
	name     string
	re       *regexp.Regexp
	highRisk bool
}

// Scanner testa cada valor escalar da requisição contra a tabela de
// assinaturas. Sem estado por requisição: a tabela é imutável
type Scanner struct {
	signatures   []compiledSignature
	exemptRoutes []string
	logger       domain.Logger
}

// NewScanner compila a tabela de assinaturas uma única vez
// Padrões inválidos são rejeitados na inicialização, não em runtime
func NewScanner(signatures []domain.ThreatSignature, exemptRoutes []string, logger domain.Logger) (*Scanner, error) {
	compiled := make([]compiledSignature, 0, len(signatures))
	for _, sig := range signatures {
		re, err := regexp.Compile(sig.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid threat signature %q: %w", sig.Name, err)
		}
		compiled = append(compiled, compiledSignature{
			name:     sig.Name,
			re:       re,
			highRisk: sig.HighRisk,
		})
	}

	return &Scanner{
		signatures:   compiled,
		exemptRoutes: exemptRoutes,
		logger:       logger,
	}, nil
}

// RouteExempt informa se a rota está isenta de scan (ex.: upload de arquivos)
func (s *Scanner) RouteExempt(route string) bool {
	for _, prefix := range s.exemptRoutes {
		if strings.HasPrefix(route, prefix) {
			return true
		}
	}
	return false
}

// Scan testa todos os campos achatados e classifica o risco por campo:
// high se qualquer padrão de alto risco casar; medium com mais de dois
// padrões casados; low caso contrário
func (s *Scanner) Scan(fields map[string]string) *domain.ScanResult {
	result := &domain.ScanResult{Findings: make(map[string]*domain.ThreatFinding)}

	for path, value := range fields {
		if value == "" {
			continue
		}

		var matched []string
		high := false
		for _, sig := range s.signatures {
			if sig.re.MatchString(value) {
				matched = append(matched, sig.name)
				if sig.highRisk {
					high = true
				}
			}
		}

		if len(matched) == 0 {
			continue
		}

		risk := domain.RiskLow
		switch {
		case high:
			risk = domain.RiskHigh
		case len(matched) > mediumThreshold:
			risk = domain.RiskMedium
		}

		result.Findings[path] = &domain.ThreatFinding{
			FieldPath:       path,
			MatchedPatterns: matched,
			RiskLevel:       risk,
		}
	}

	return result
}
