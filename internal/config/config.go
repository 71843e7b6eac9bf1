package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"secgate/internal/csp"
	"secgate/internal/domain"

	"github.com/joho/godotenv"
)

// Config representa todas as configurações da aplicação
type Config struct {
	// Server
	ServerPort  string
	GinMode     string
	Environment string // ambiente lógico usado pelas camadas de CSP

	// Redis
	CacheBackend  string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Logging
	LogLevel  string
	LogFormat string

	// Autorização
	SuperRole          string
	SnapshotTTLMinutes int

	// Abuso (falhas de token anti-forgery)
	AbuseThreshold     int
	AbuseWindowMinutes int
	AbuseBlockHours    int
	ForgeryToken       string // vazio: validação desligada (configuration-absent)

	// Arquivos de tabelas de regras (dados, não código)
	RateRulesFile        string
	CspTablesFile        string
	ThreatSignaturesFile string
}

// RateRulesFileShape é a estrutura do arquivo de regras de rate limit
type RateRulesFileShape struct {
	Rules    []domain.RateLimitRule `json:"rules"`
	Patterns []domain.RoutePattern  `json:"patterns"`
}

// ThreatFileShape é a estrutura do arquivo de assinaturas
type ThreatFileShape struct {
	Signatures   []domain.ThreatSignature `json:"signatures"`
	ExemptRoutes []string                 `json:"exemptRoutes"`
}

// Loader carrega configurações de ambiente e arquivos de regras
type Loader struct {
	config *Config
}

// NewLoader cria uma nova instância do loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load carrega as configurações do .env e do ambiente
func (l *Loader) Load() (*Config, error) {
	// Carrega o arquivo .env se existir
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using system environment variables")
	}

	config := &Config{
		ServerPort:  getEnvWithDefault("SERVER_PORT", "8080"),
		GinMode:     getEnvWithDefault("GIN_MODE", "debug"),
		Environment: getEnvWithDefault("APP_ENV", "production"),

		CacheBackend:  getEnvWithDefault("CACHE_BACKEND", "memory"),
		RedisHost:     getEnvWithDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvWithDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvWithDefault("REDIS_PASSWORD", ""),

		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "json"),

		SuperRole:    getEnvWithDefault("SUPER_ROLE", "superadmin"),
		ForgeryToken: getEnvWithDefault("FORGERY_TOKEN", ""),

		RateRulesFile:        getEnvWithDefault("RATE_RULES_FILE", "internal/config/rate_rules.json"),
		CspTablesFile:        getEnvWithDefault("CSP_TABLES_FILE", "internal/config/csp_tables.json"),
		ThreatSignaturesFile: getEnvWithDefault("THREAT_SIGNATURES_FILE", "internal/config/threat_signatures.json"),
	}

	var err error
	if config.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if config.SnapshotTTLMinutes, err = getEnvInt("AUTHZ_SNAPSHOT_TTL_MINUTES", 30); err != nil {
		return nil, err
	}
	if config.AbuseThreshold, err = getEnvInt("ABUSE_THRESHOLD", 10); err != nil {
		return nil, err
	}
	if config.AbuseWindowMinutes, err = getEnvInt("ABUSE_WINDOW_MINUTES", 60); err != nil {
		return nil, err
	}
	if config.AbuseBlockHours, err = getEnvInt("ABUSE_BLOCK_HOURS", 24); err != nil {
		return nil, err
	}

	if err := l.validate(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	l.config = config
	return config, nil
}

// LoadRateRules carrega a tabela de regras de rate limit
// Arquivo ausente é condição configuration-absent: usa os defaults
func (l *Loader) LoadRateRules(path string) (map[string]*domain.RateLimitRule, []domain.RoutePattern, error) {
	data, err := readOptional(path)
	if err != nil {
		return nil, nil, err
	}
	if data == nil {
		return DefaultRateRules(), DefaultRoutePatterns(), nil
	}

	var shape RateRulesFileShape
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, nil, fmt.Errorf("failed to parse rate rules file %s: %w", path, err)
	}

	rules := make(map[string]*domain.RateLimitRule, len(shape.Rules))
	for i := range shape.Rules {
		rule := shape.Rules[i]
		if rule.Name == "" || rule.MaxRequests <= 0 || rule.WindowSeconds <= 0 {
			return nil, nil, fmt.Errorf("invalid rate rule at index %d in %s", i, path)
		}
		if rule.Scope == "" {
			rule.Scope = domain.ScopeIP
		}
		rules[rule.Name] = &rule
	}
	return rules, shape.Patterns, nil
}

// LoadCspTables carrega as camadas de CSP
func (l *Loader) LoadCspTables(path string) (*csp.Tables, error) {
	data, err := readOptional(path)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return csp.DefaultTables(), nil
	}

	var tables csp.Tables
	if err := json.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse CSP tables file %s: %w", path, err)
	}
	return &tables, nil
}

// LoadThreatSignatures carrega a tabela de assinaturas do scanner
func (l *Loader) LoadThreatSignatures(path string) ([]domain.ThreatSignature, []string, error) {
	data, err := readOptional(path)
	if err != nil {
		return nil, nil, err
	}
	if data == nil {
		return nil, nil, nil
	}

	var shape ThreatFileShape
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, nil, fmt.Errorf("failed to parse threat signatures file %s: %w", path, err)
	}
	for i, sig := range shape.Signatures {
		if sig.Name == "" || sig.Pattern == "" {
			return nil, nil, fmt.Errorf("invalid threat signature at index %d in %s", i, path)
		}
	}
	return shape.Signatures, shape.ExemptRoutes, nil
}

// DefaultRateRules retorna as regras compiladas quando não há arquivo
func DefaultRateRules() map[string]*domain.RateLimitRule {
	return map[string]*domain.RateLimitRule{
		"default": {
			Name:          "default",
			MaxRequests:   60,
			WindowSeconds: 60,
			Scope:         domain.ScopeIP,
			Description:   "Fallback rule for unmatched routes",
		},
		"api": {
			Name:          "api",
			MaxRequests:   120,
			WindowSeconds: 60,
			Scope:         domain.ScopeBoth,
			Description:   "Authenticated API traffic",
		},
		"auth": {
			Name:          "auth",
			MaxRequests:   10,
			WindowSeconds: 60,
			Scope:         domain.ScopeIP,
			Description:   "Login and token endpoints",
		},
	}
}

// DefaultRoutePatterns retorna o mapeamento padrão rota -> regra
func DefaultRoutePatterns() []domain.RoutePattern {
	return []domain.RoutePattern{
		{Pattern: "auth.*", Rule: "auth"},
		{Pattern: "api.*", Rule: "api"},
	}
}

// validate valida se as configurações são válidas
func (l *Loader) validate(config *Config) error {
	if config.RedisDB < 0 || config.RedisDB > 15 {
		return fmt.Errorf("REDIS_DB must be between 0 and 15")
	}
	if config.SnapshotTTLMinutes <= 0 {
		return fmt.Errorf("AUTHZ_SNAPSHOT_TTL_MINUTES must be greater than 0")
	}
	if config.AbuseThreshold <= 0 {
		return fmt.Errorf("ABUSE_THRESHOLD must be greater than 0")
	}
	if config.AbuseWindowMinutes <= 0 {
		return fmt.Errorf("ABUSE_WINDOW_MINUTES must be greater than 0")
	}
	if config.AbuseBlockHours <= 0 {
		return fmt.Errorf("ABUSE_BLOCK_HOURS must be greater than 0")
	}
	return nil
}

// readOptional lê um arquivo de regras; ausência não é erro
func readOptional(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("Warning: rule file %s not found, using built-in defaults\n", path)
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file %s: %w", path, err)
	}
	return data, nil
}

// getEnvWithDefault retorna o valor da variável de ambiente ou um valor padrão
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt faz o parse de uma variável inteira
func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return value, nil
}
