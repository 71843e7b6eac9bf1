package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"secgate/internal/abuse"
	"secgate/internal/audit"
	"secgate/internal/authz"
	"secgate/internal/blacklist"
	"secgate/internal/cache"
	"secgate/internal/config"
	"secgate/internal/csp"
	"secgate/internal/domain"
	"secgate/internal/handler"
	"secgate/internal/logger"
	"secgate/internal/middleware"
	"secgate/internal/ratelimit"
	"secgate/internal/threat"
)

func main() {
	// Carregar configurações
	configLoader := config.NewLoader()
	cfg, err := configLoader.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Inicializar logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	appLogger.Info("Starting Security Gateway", map[string]interface{}{
		"version":   "1.0.0",
		"log_level": cfg.LogLevel,
		"port":      cfg.ServerPort,
		"backend":   cfg.CacheBackend,
	})

	// Backend compartilhado: cache de contadores/snapshots, diretório de
	// blacklist e sink de auditoria usam a mesma instância do Redis.
	// Sem Redis alcançável, tudo cai para memória (fail open na dependência)
	backend, err := cache.NewBackend(&cache.BackendConfig{
		Type: cache.BackendType(cfg.CacheBackend),
		Redis: &cache.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			Database: cfg.RedisDB,
		},
	}, appLogger)
	if err != nil {
		log.Fatalf("Failed to create cache backend: %v", err)
	}

	var (
		blacklistDir domain.BlacklistDirectory
		auditSink    domain.AuditSink
	)
	loggerSink := audit.NewLoggerSink(appLogger)

	sharedCache := backend.Cache
	if backend.Client != nil {
		blacklistDir = blacklist.NewRedisDirectory(backend.Client, appLogger)
		auditSink = audit.NewRedisSink(backend.Client, loggerSink, appLogger)
	} else {
		appLogger.Info("Using memory backend", nil)
		blacklistDir = blacklist.NewMemoryDirectory()
		auditSink = loggerSink
	}
	defer sharedCache.Close()

	// Tabelas de regras (dados carregados na inicialização)
	rateRules, routePatterns, err := configLoader.LoadRateRules(cfg.RateRulesFile)
	if err != nil {
		log.Fatalf("Failed to load rate rules: %v", err)
	}
	cspTables, err := configLoader.LoadCspTables(cfg.CspTablesFile)
	if err != nil {
		log.Fatalf("Failed to load CSP tables: %v", err)
	}
	signatures, exemptRoutes, err := configLoader.LoadThreatSignatures(cfg.ThreatSignaturesFile)
	if err != nil {
		log.Fatalf("Failed to load threat signatures: %v", err)
	}
	if len(signatures) == 0 {
		signatures = threat.DefaultSignatures()
	}

	// Diretório de papéis em memória para o modo standalone
	roleDir := authz.NewMemoryRoleDirectory()
	seedRoles(roleDir)

	// Estágios do pipeline
	blacklistGate := blacklist.NewGate(blacklistDir, auditSink, appLogger)
	limiter := ratelimit.NewLimiter(sharedCache, rateRules, routePatterns, auditSink, appLogger)
	scanner, err := threat.NewScanner(signatures, exemptRoutes, appLogger)
	if err != nil {
		log.Fatalf("Failed to compile threat signatures: %v", err)
	}
	authzGate := authz.NewGate(
		roleDir,
		sharedCache,
		cfg.SuperRole,
		time.Duration(cfg.SnapshotTTLMinutes)*time.Minute,
		appLogger,
	)
	tracker := abuse.NewTracker(
		sharedCache,
		blacklistDir,
		auditSink,
		appLogger,
		cfg.AbuseThreshold,
		time.Duration(cfg.AbuseWindowMinutes)*time.Minute,
		time.Duration(cfg.AbuseBlockHours)*time.Hour,
	)
	composer := csp.NewComposer(cspTables, cfg.Environment, appLogger)

	// Inicializar handlers
	handlers := handler.NewHandlers(blacklistDir, authzGate, limiter, appLogger)

	// Configurar Gin
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Criar router
	router := gin.New()

	// Middlewares globais
	router.Use(gin.Recovery())

	// Middleware de logging customizado
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.TimeStamp.Format("2006/01/02 - 15:04:05"),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))

	// Configurar rotas e a cadeia de estágios
	handlers.SetupRoutes(router, &handler.Pipeline{
		BlacklistGate: blacklistGate,
		Limiter:       limiter,
		Scanner:       scanner,
		AuthzGate:     authzGate,
		Tracker:       tracker,
		Validator:     abuse.NewStaticTokenValidator(),
		Composer:      composer,
		Sink:          auditSink,
		Logger:        appLogger,
		Resolver:      middleware.HeaderCallerResolver(roleDir),
		ForgeryToken:  cfg.ForgeryToken,
	})

	// Configurar servidor HTTP
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Iniciar servidor em goroutine
	go func() {
		appLogger.Info("Starting HTTP server", map[string]interface{}{
			"port": cfg.ServerPort,
			"addr": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Failed to start server", err, nil)
			os.Exit(1)
		}
	}()

	// Aguardar sinais de interrupção
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	appLogger.Info("🛡️ Security Gateway is running!", map[string]interface{}{
		"port": cfg.ServerPort,
		"endpoints": []string{
			"GET    /health",
			"GET    /metrics",
			"GET    /dashboard                      (authz: dashboard.view)",
			"GET    /api/reports                    (authz: reports.view)",
			"POST   /api/reports                    (authz: reports.view+reports.create)",
			"GET    /api/admin/blacklist/:address   (role: admin)",
			"POST   /api/admin/blacklist            (role: admin)",
			"DELETE /api/admin/blacklist/:address   (role: admin)",
			"POST   /api/admin/authz/invalidate/:user",
		},
		"abuse": map[string]interface{}{
			"threshold":      cfg.AbuseThreshold,
			"window_minutes": cfg.AbuseWindowMinutes,
			"block_hours":    cfg.AbuseBlockHours,
		},
	})

	// Bloquear até receber sinal
	<-quit
	appLogger.Info("Shutting down server...", nil)

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", err, nil)
		os.Exit(1)
	}

	appLogger.Info("Server stopped gracefully", nil)
}

// seedRoles popula o diretório em memória do modo standalone
// O diretório real de papéis é um colaborador externo em produção
func seedRoles(dir *authz.MemoryRoleDirectory) {
	dir.PutRole(domain.Role{
		Name:   "admin",
		Level:  1,
		Status: domain.RoleStatusActive,
	}, []string{"dashboard.view", "reports.*", "blacklist.*", "authz.*"})

	dir.PutRole(domain.Role{
		Name:   "analyst",
		Level:  5,
		Status: domain.RoleStatusActive,
	}, []string{"dashboard.view", "reports.view", "reports.create"})

	dir.PutRole(domain.Role{
		Name:   "viewer",
		Level:  10,
		Status: domain.RoleStatusActive,
	}, []string{"dashboard.view", "reports.view"})

	dir.Assign("admin-1", "admin")
	dir.Assign("analyst-1", "analyst")
	dir.Assign("viewer-1", "viewer")
}
