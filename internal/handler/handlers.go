package handler

import (
	"net/http"
	"runtime"
	"strings"
	"time"

	"secgate/internal/authz"
	"secgate/internal/domain"
	"secgate/internal/middleware"
	"secgate/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers contém os handlers da API e a superfície administrativa
type Handlers struct {
	blacklistDir domain.BlacklistDirectory
	authzGate    *authz.Gate
	limiter      *ratelimit.Limiter
	logger       domain.Logger
	startTime    time.Time
}

// NewHandlers cria uma nova instância dos handlers
func NewHandlers(blacklistDir domain.BlacklistDirectory, authzGate *authz.Gate, limiter *ratelimit.Limiter, logger domain.Logger) *Handlers {
	return &Handlers{
		blacklistDir: blacklistDir,
		authzGate:    authzGate,
		limiter:      limiter,
		logger:       logger,
		startTime:    time.Now(),
	}
}

// HealthHandler implementa health check básico
func (h *Handlers) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "Security Gateway",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   "1.0.0",
	})
}

// MetricsHandler implementa endpoint de métricas do sistema
func (h *Handlers) MetricsHandler(c *gin.Context) {
	uptime := time.Since(h.startTime)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.JSON(http.StatusOK, gin.H{
		"service":        "Security Gateway",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime":         uptime.String(),
		"uptime_seconds": int64(uptime.Seconds()),
		"system": gin.H{
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
			"gc_runs":    m.NumGC,
		},
	})
}

// DashboardHandler renderiza a página protegida com a CSP aplicada
// O nonce da requisição vai no script inline de exemplo
func (h *Handlers) DashboardHandler(c *gin.Context) {
	nonce := middleware.CspNonce(c)

	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>Dashboard</title></head><body>")
	b.WriteString("<h1>Portal Dashboard</h1>")
	if nonce != "" {
		b.WriteString(`<script nonce="` + nonce + `">console.log("ready");</script>`)
	}
	b.WriteString("</body></html>")

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(b.String()))
}

// ReportsHandler é o endpoint de negócio de exemplo protegido pelo pipeline
func (h *Handlers) ReportsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "reports listing",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"risk":      c.GetString(middleware.ContextRisk),
	})
}

// CreateReportHandler é o endpoint mutável de exemplo (passa pelo forgery check)
func (h *Handlers) CreateReportHandler(c *gin.Context) {
	c.JSON(http.StatusCreated, gin.H{
		"message":   "report created",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetBlacklistEntryHandler consulta a entrada ativa de um endereço
func (h *Handlers) GetBlacklistEntryHandler(c *gin.Context) {
	ctx := c.Request.Context()
	address := strings.TrimSpace(c.Param("address"))
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "address parameter is required",
		})
		return
	}

	entry, err := h.blacklistDir.FindActive(ctx, address)
	if err != nil {
		h.logger.WithContext(ctx).Error("Failed to query blacklist entry", err, map[string]interface{}{
			"address": address,
		})
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "directory_unavailable",
			"message": "blacklist directory is not reachable",
		})
		return
	}

	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "no active blacklist entry for this address",
		})
		return
	}

	c.JSON(http.StatusOK, entry)
}

// createBlacklistRequest é o corpo da criação administrativa de bloqueio
type createBlacklistRequest struct {
	Address       string `json:"address" binding:"required"`
	Reason        string `json:"reason" binding:"required"`
	DurationHours int    `json:"durationHours"` // zero: bloqueio permanente
}

// CreateBlacklistEntryHandler cria um bloqueio manual (ação administrativa)
func (h *Handlers) CreateBlacklistEntryHandler(c *gin.Context) {
	ctx := c.Request.Context()

	var req createBlacklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	actor := ""
	if caller := middleware.GetCaller(c); !caller.Anonymous() {
		actor = caller.ID
	}

	entry := &domain.BlacklistEntry{
		ID:        uuid.New().String(),
		Address:   strings.TrimSpace(req.Address),
		Reason:    req.Reason,
		CreatedBy: actor,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	if req.DurationHours > 0 {
		expiresAt := time.Now().Add(time.Duration(req.DurationHours) * time.Hour)
		entry.ExpiresAt = &expiresAt
	}

	if err := h.blacklistDir.Create(ctx, entry); err != nil {
		if err == domain.ErrActiveEntryExists {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "conflict",
				"message": "an active blacklist entry already exists for this address",
			})
			return
		}
		h.logger.WithContext(ctx).Error("Failed to create blacklist entry", err, map[string]interface{}{
			"address": entry.Address,
		})
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "directory_unavailable",
			"message": "blacklist directory is not reachable",
		})
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// RemoveBlacklistEntryHandler desativa o bloqueio ativo de um endereço
func (h *Handlers) RemoveBlacklistEntryHandler(c *gin.Context) {
	ctx := c.Request.Context()
	address := strings.TrimSpace(c.Param("address"))

	entry, err := h.blacklistDir.FindActive(ctx, address)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "directory_unavailable",
			"message": "blacklist directory is not reachable",
		})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "no active blacklist entry for this address",
		})
		return
	}

	entry.IsActive = false
	if err := h.blacklistDir.Update(ctx, entry); err != nil {
		h.logger.WithContext(ctx).Error("Failed to deactivate blacklist entry", err, map[string]interface{}{
			"address": address,
		})
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "directory_unavailable",
			"message": "blacklist directory is not reachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "blacklist entry deactivated",
		"address": address,
	})
}

// InvalidateSnapshotHandler descarta o snapshot de permissões de um usuário
// Chamado quando atribuições de papéis mudam no diretório
func (h *Handlers) InvalidateSnapshotHandler(c *gin.Context) {
	ctx := c.Request.Context()
	userID := strings.TrimSpace(c.Param("user"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "user parameter is required",
		})
		return
	}

	if err := h.authzGate.InvalidateSnapshot(ctx, userID); err != nil {
		h.logger.WithContext(ctx).Error("Failed to invalidate permission snapshot", err, map[string]interface{}{
			"user_id": userID,
		})
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "cache_unavailable",
			"message": "permission snapshot cache is not reachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "permission snapshot invalidated",
		"user_id": userID,
	})
}

// RateLimitStatusHandler lê o consumo corrente de quota de um cliente
// sem incrementar os contadores
func (h *Handlers) RateLimitStatusHandler(c *gin.Context) {
	ctx := c.Request.Context()

	req := &ratelimit.Request{
		Route:    strings.TrimSpace(c.Query("route")),
		RuleName: strings.TrimSpace(c.Query("rule")),
		ClientIP: strings.TrimSpace(c.Query("ip")),
		UserID:   strings.TrimSpace(c.Query("user")),
	}
	if req.ClientIP == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "ip query parameter is required",
		})
		return
	}

	statuses, err := h.limiter.Status(ctx, req)
	if err != nil {
		h.logger.WithContext(ctx).Error("Failed to read rate limit status", err, map[string]interface{}{
			"ip": req.ClientIP,
		})
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "cache_unavailable",
			"message": "rate limit counters are not reachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"counters":  statuses,
	})
}

// resetRateLimitRequest é o corpo do reset administrativo de quota
type resetRateLimitRequest struct {
	IP    string `json:"ip" binding:"required"`
	User  string `json:"user"`
	Route string `json:"route"`
	Rule  string `json:"rule"`
}

// RateLimitResetHandler zera os contadores de quota de um cliente,
// reabrindo a janela imediatamente
func (h *Handlers) RateLimitResetHandler(c *gin.Context) {
	ctx := c.Request.Context()

	var req resetRateLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}

	err := h.limiter.Reset(ctx, &ratelimit.Request{
		Route:    strings.TrimSpace(req.Route),
		RuleName: strings.TrimSpace(req.Rule),
		ClientIP: strings.TrimSpace(req.IP),
		UserID:   strings.TrimSpace(req.User),
	})
	if err != nil {
		h.logger.WithContext(ctx).Error("Failed to reset rate limit counters", err, map[string]interface{}{
			"ip": req.IP,
		})
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "cache_unavailable",
			"message": "rate limit counters are not reachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "rate limit counters reset",
		"ip":      req.IP,
	})
}
