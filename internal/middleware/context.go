package middleware

import (
	"context"
	"net"
	"strings"
	"time"

	"secgate/internal/domain"
	"secgate/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Chaves usadas no contexto do gin pelo pipeline
const (
	ContextRequestID = "secgate.request_id"
	ContextClientIP  = "secgate.client_ip"
	ContextCaller    = "secgate.caller"
	ContextRouteName = "secgate.route_name"
	ContextRisk      = "secgate.threat_risk"
	ContextCspNonce  = "secgate.csp_nonce"
)

// stageTimeout limita operações de cache/diretório de cada estágio
const stageTimeout = 5 * time.Second

// RequestContext enriquece a requisição: request ID, IP do cliente e
// contexto de logging. Primeiro middleware da cadeia
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set(ContextRequestID, requestID)

		clientIP := ExtractClientIP(c)
		c.Set(ContextClientIP, clientIP)

		// O usuário entra no contexto depois, no Authenticate; aqui o
		// chamador ainda não foi resolvido
		ctx := logger.ContextWithRequestInfo(
			c.Request.Context(),
			requestID,
			clientIP,
			"",
			c.GetHeader("User-Agent"),
			c.Request.Method,
			c.Request.URL.Path,
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// ExtractClientIP extrai o IP do cliente considerando proxies
// Prioridade: X-Forwarded-For > X-Real-IP > RemoteAddr
func ExtractClientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			clientIP := strings.TrimSpace(ips[0])
			if clientIP != "" {
				return clientIP
			}
		}
	}

	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}
	return c.Request.RemoteAddr
}

// ClientIP retorna o IP já extraído pelo RequestContext
func ClientIP(c *gin.Context) string {
	if ip := c.GetString(ContextClientIP); ip != "" {
		return ip
	}
	return ExtractClientIP(c)
}

// RequestID retorna o request ID da requisição
func RequestID(c *gin.Context) string {
	return c.GetString(ContextRequestID)
}

// SetCaller injeta o chamador autenticado na requisição
// O authenticator é um colaborador externo ao pipeline
func SetCaller(c *gin.Context, caller *domain.Caller) {
	c.Set(ContextCaller, caller)
}

// GetCaller retorna o chamador da requisição; nil para anônimos
func GetCaller(c *gin.Context) *domain.Caller {
	value, exists := c.Get(ContextCaller)
	if !exists {
		return nil
	}
	caller, ok := value.(*domain.Caller)
	if !ok {
		return nil
	}
	return caller
}

// RouteName resolve o nome lógico da rota usado pelas tabelas de regras
// Handlers podem fixar um nome explícito; o fallback deriva do path
// (`/api/reports/export` -> `api.reports.export`)
func RouteName(c *gin.Context) string {
	if name := c.GetString(ContextRouteName); name != "" {
		return name
	}

	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "root"
	}
	return strings.ReplaceAll(trimmed, "/", ".")
}

// NamedRoute fixa o nome lógico da rota para os estágios seguintes
func NamedRoute(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextRouteName, name)
		c.Next()
	}
}

// RouteTable mapeia rotas registradas (method + path template do gin)
// para nomes lógicos. Preenchida na montagem das rotas e imutável depois
type RouteTable struct {
	names map[string]string
}

// NewRouteTable cria uma tabela de nomes de rota vazia
func NewRouteTable() *RouteTable {
	return &RouteTable{names: make(map[string]string)}
}

// Name registra o nome lógico de uma rota
func (t *RouteTable) Name(method, path, name string) {
	t.names[method+" "+path] = name
}

// Lookup resolve o nome lógico de uma rota registrada
func (t *RouteTable) Lookup(method, path string) (string, bool) {
	name, ok := t.names[method+" "+path]
	return name, ok
}

// RouteNames fixa o nome lógico das rotas registradas na tabela
// Precisa vir antes dos estágios que consultam RouteName, senão as
// tabelas de regras só enxergam nomes derivados do path
func RouteNames(table *RouteTable) gin.HandlerFunc {
	return func(c *gin.Context) {
		if name, ok := table.Lookup(c.Request.Method, c.FullPath()); ok {
			c.Set(ContextRouteName, name)
		}
		c.Next()
	}
}

// stageContext cria o contexto com timeout de um estágio do pipeline
func stageContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), stageTimeout)
}

// wantsJSON decide entre resposta JSON e redirect para negações
// Requisições de API (path ou Accept) recebem corpo JSON
func wantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api") {
		return true
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") ||
		c.GetHeader("X-Requested-With") == "XMLHttpRequest"
}
