package threat

import "secgate/internal/domain"

// DefaultSignatures retorna a tabela padrão de assinaturas, em ordem de
// avaliação. O subconjunto HighRisk (DDL/DML encadeado, exec/procedures)
// derruba a requisição; o restante só pontua o risco do campo
func DefaultSignatures() []domain.ThreatSignature {
	return []domain.ThreatSignature{
		// Alto risco: derrubam a requisição com 403
		{
			Name:     "sqli-stacked-query",
			Pattern:  `(?i);\s*(drop|delete|insert|update|truncate|alter|create|grant)\b`,
			HighRisk: true,
		},
		{
			Name:     "sqli-ddl",
			Pattern:  `(?i)\b(drop|truncate|alter)\s+(table|database|index|view)\b`,
			HighRisk: true,
		},
		{
			Name:     "sqli-exec",
			Pattern:  `(?i)(\bexec(ute)?\s+\w|\bxp_\w+|\bsp_\w+)`,
			HighRisk: true,
		},
		{
			Name:     "sqli-outfile",
			Pattern:  `(?i)\binto\s+(out|dump)file\b`,
			HighRisk: true,
		},

		// Padrões comuns de injeção: pontuam o risco
		{
			Name:    "sqli-union-select",
			Pattern: `(?i)\bunion\b[\s\S]{0,20}\bselect\b`,
		},
		{
			Name:    "sqli-select-from",
			Pattern: `(?i)\bselect\b[\s\S]{0,40}\bfrom\b`,
		},
		{
			Name:    "sqli-boolean-blind",
			Pattern: `(?i)\b(or|and)\b\s+\d+\s*=\s*\d+`,
		},
		{
			Name:    "sqli-quote-logic",
			Pattern: `(?i)['"]\s*(or|and)\b`,
		},
		{
			Name:    "sqli-time-blind",
			Pattern: `(?i)\b(sleep|benchmark|pg_sleep)\s*\(|\bwaitfor\s+delay\b`,
		},
		{
			Name:    "sqli-error-based",
			Pattern: `(?i)\b(extractvalue|updatexml|cast|convert)\s*\(`,
		},
		{
			Name:    "sqli-comment-marker",
			Pattern: `(--|/\*|\*/)`,
		},
		{
			Name:    "sqli-schema-introspection",
			Pattern: `(?i)\b(information_schema|sysobjects|pg_catalog|mysql\.user)\b`,
		},
		{
			Name:    "sqli-hex-literal",
			Pattern: `(?i)\b0x[0-9a-f]{8,}`,
		},
		{
			Name:    "sqli-concat",
			Pattern: `(?i)(\|\||\bconcat(_ws)?\s*\(|\bchar\s*\(|\bchr\s*\()`,
		},
		{
			Name:    "sqli-subquery",
			Pattern: `(?i)\(\s*select\b`,
		},
	}
}
