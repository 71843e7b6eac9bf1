package domain

import (
	"context"
	"errors"
	"time"
)

// ErrDirectoryUnavailable indica que o backing store do diretório
// não está provisionado ou não respondeu
var ErrDirectoryUnavailable = errors.New("directory unavailable")

// ErrActiveEntryExists indica violação do invariante de bloqueio único ativo
var ErrActiveEntryExists = errors.New("active blacklist entry already exists")

// Cache define a abstração de cache compartilhado com TTL
// Implementa o mesmo contrato para Redis e memória
type Cache interface {
	// Get recupera o valor de uma chave; ok=false significa ausência (ou TTL vencido)
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Put grava um valor com TTL
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Increment incrementa atomicamente um contador e retorna o novo valor
	// O TTL é aplicado apenas na primeira escrita da janela
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Counter lê o valor atual de um contador sem incrementá-lo
	// Chave ausente (ou vencida) vale zero
	Counter(ctx context.Context, key string) (int64, error)

	// Remember retorna o valor cacheado ou computa e grava com TTL
	Remember(ctx context.Context, key string, ttl time.Duration, compute func() ([]byte, error)) ([]byte, error)

	// Delete remove uma chave
	Delete(ctx context.Context, key string) error

	// Health verifica se o cache está saudável
	Health(ctx context.Context) error

	// Close fecha a conexão com o cache
	Close() error
}

// BlacklistDirectory é o diretório de bloqueios: leitura pelo gate,
// escrita pelo tracker de abuso e pela superfície administrativa
type BlacklistDirectory interface {
	// FindActive retorna a entrada ativa de um endereço, ou nil
	FindActive(ctx context.Context, address string) (*BlacklistEntry, error)

	// Create insere uma nova entrada; falha se já houver entrada ativa
	Create(ctx context.Context, entry *BlacklistEntry) error

	// Update persiste mutações de uma entrada existente
	Update(ctx context.Context, entry *BlacklistEntry) error

	// Available informa se o backing store está provisionado
	Available(ctx context.Context) bool
}

// RoleDirectory expõe o modelo de leitura de papéis e permissões
type RoleDirectory interface {
	// ActiveRoles retorna os papéis ativos de um usuário
	ActiveRoles(ctx context.Context, userID string) ([]Role, error)

	// RolePermissions consulta as permissões de um papel quando a
	// lista pré-computada não está presente no próprio papel
	RolePermissions(ctx context.Context, roleName string) ([]string, error)

	// FindRole retorna a definição de um papel pelo nome, ou nil
	FindRole(ctx context.Context, roleName string) (*Role, error)
}

// AuditSink recebe eventos de segurança estruturados
// Record nunca falha a requisição: erros de escrita são absorvidos
type AuditSink interface {
	Record(ctx context.Context, event *AuditEvent)
}

// Logger define a interface para logging estruturado
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
	WithContext(ctx context.Context) Logger
}

// TokenValidator é o colaborador externo de validação anti-forgery
// Retorna erro explícito em caso de mismatch (sem exceções interceptadas)
type TokenValidator interface {
	Validate(ctx context.Context, provided, expected string) error
}
