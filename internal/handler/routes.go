package handler

import (
	"net/http"

	"secgate/internal/abuse"
	"secgate/internal/authz"
	"secgate/internal/blacklist"
	"secgate/internal/csp"
	"secgate/internal/domain"
	"secgate/internal/middleware"
	"secgate/internal/ratelimit"
	"secgate/internal/threat"

	"github.com/gin-gonic/gin"
)

// Pipeline agrupa os componentes de decisão na ordem dos estágios
type Pipeline struct {
	BlacklistGate *blacklist.Gate
	Limiter       *ratelimit.Limiter
	Scanner       *threat.Scanner
	AuthzGate     *authz.Gate
	Tracker       *abuse.Tracker
	Validator     domain.TokenValidator
	Composer      *csp.Composer
	Sink          domain.AuditSink
	Logger        domain.Logger
	Resolver      middleware.CallerResolver
	ForgeryToken  string
	CspReportOnly bool
}

// SetupRoutes monta a cadeia de middlewares e as rotas da aplicação
// A ordem dos estágios segue o fluxo da requisição: blacklist,
// rate limit, scan de ameaças, autorização; CSP no caminho de saída
func (h *Handlers) SetupRoutes(router *gin.Engine, p *Pipeline) {
	router.Use(middleware.RequestContext())
	router.Use(middleware.Authenticate(p.Resolver, p.Logger))

	// Rotas públicas (fora do pipeline de decisão)
	router.GET("/health", h.HealthHandler)
	router.GET("/metrics", h.MetricsHandler)

	// Nomes lógicos das rotas, resolvidos antes dos estágios de decisão
	// para que as tabelas de regras enxerguem os nomes registrados
	table := middleware.NewRouteTable()
	table.Name(http.MethodGet, "/dashboard", "dashboard")
	table.Name(http.MethodGet, "/api/reports", "api.reports.list")
	table.Name(http.MethodPost, "/api/reports", "api.reports.create")
	table.Name(http.MethodGet, "/api/admin/blacklist/:address", "admin.blacklist.show")
	table.Name(http.MethodPost, "/api/admin/blacklist", "admin.blacklist.create")
	table.Name(http.MethodDelete, "/api/admin/blacklist/:address", "admin.blacklist.remove")
	table.Name(http.MethodPost, "/api/admin/authz/invalidate/:user", "admin.authz.invalidate")
	table.Name(http.MethodGet, "/api/admin/ratelimit/status", "admin.ratelimit.status")
	table.Name(http.MethodPost, "/api/admin/ratelimit/reset", "admin.ratelimit.reset")

	// Estágios compartilhados por todo o tráfego protegido
	secured := router.Group("/")
	secured.Use(middleware.RouteNames(table))
	secured.Use(middleware.BlacklistGate(p.BlacklistGate, p.Logger))
	secured.Use(middleware.RateLimit(p.Limiter, "", p.Logger))
	secured.Use(middleware.ThreatScan(p.Scanner, p.Sink, p.Logger))
	secured.Use(middleware.ForgeryCheck(p.Validator, p.Tracker, p.ForgeryToken, p.Logger))
	secured.Use(middleware.ContentSecurityPolicy(p.Composer, p.CspReportOnly, p.Logger))

	// Superfície HTML autenticada
	secured.GET("/dashboard",
		middleware.RequirePermissions(p.AuthzGate, p.Sink, "dashboard.view", domain.LogicAnd),
		h.DashboardHandler,
	)

	// API de negócio
	api := secured.Group("/api")
	{
		api.GET("/reports",
			middleware.RequirePermissions(p.AuthzGate, p.Sink, "reports.view", domain.LogicAnd),
			h.ReportsHandler,
		)
		api.POST("/reports",
			middleware.RequirePermissions(p.AuthzGate, p.Sink, "reports.view,reports.create", domain.LogicAnd),
			h.CreateReportHandler,
		)
	}

	// Superfície administrativa: exige o papel admin (ou hierarquia)
	admin := secured.Group("/api/admin")
	admin.Use(middleware.RequireRoles(p.AuthzGate, p.Sink, "admin", domain.LogicAnd))
	{
		admin.GET("/blacklist/:address", h.GetBlacklistEntryHandler)
		admin.POST("/blacklist", h.CreateBlacklistEntryHandler)
		admin.DELETE("/blacklist/:address", h.RemoveBlacklistEntryHandler)
		admin.POST("/authz/invalidate/:user", h.InvalidateSnapshotHandler)
		admin.GET("/ratelimit/status", h.RateLimitStatusHandler)
		admin.POST("/ratelimit/reset", h.RateLimitResetHandler)
	}
}
