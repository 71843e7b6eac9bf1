package middleware

import (
	"net/http"

	"secgate/internal/audit"
	"secgate/internal/authz"
	"secgate/internal/domain"

	"github.com/gin-gonic/gin"
)

// Rotas de destino das negações renderizadas (não-API)
const (
	LoginRoute     = "/login"
	DashboardRoute = "/dashboard"
)

// RequirePermissions exige as permissões listadas (separadas por vírgula)
func RequirePermissions(gate *authz.Gate, sink domain.AuditSink, requiredSpec string, logic domain.AuthzLogic) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := stageContext(c)
		defer cancel()

		caller := GetCaller(c)
		decision, _ := gate.Authorize(ctx, caller, requiredSpec, logic)
		if decision.Allowed {
			c.Next()
			return
		}

		deny(c, sink, caller, requiredSpec, decision.Reason)
	}
}

// RequireRoles exige os papéis listados, com fallback de hierarquia
func RequireRoles(gate *authz.Gate, sink domain.AuditSink, requiredSpec string, logic domain.AuthzLogic) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := stageContext(c)
		defer cancel()

		caller := GetCaller(c)
		decision, _ := gate.CheckRole(ctx, caller, requiredSpec, logic)
		if decision.Allowed {
			c.Next()
			return
		}

		deny(c, sink, caller, requiredSpec, decision.Reason)
	}
}

// deny mapeia a negação para a resposta terminal:
// 401 para anônimos, 403 para autenticados sem acesso
// Não-API redireciona (nunca para a própria rota proibida)
func deny(c *gin.Context, sink domain.AuditSink, caller *domain.Caller, requiredSpec, reason string) {
	ctx := c.Request.Context()

	roleNames := []string{}
	actorID := ""
	if !caller.Anonymous() {
		actorID = caller.ID
		for _, r := range caller.Roles {
			roleNames = append(roleNames, r.Name)
		}
	}

	sink.Record(ctx, &domain.AuditEvent{
		ActorID:       actorID,
		Action:        "authorization.denied",
		Description:   "Caller lacks the required authorization for this route",
		SourceAddress: ClientIP(c),
		UserAgent:     c.GetHeader("User-Agent"),
		URL:           c.Request.URL.String(),
		Method:        c.Request.Method,
		Severity:      domain.SeverityMedium,
		Category:      audit.CategoryAuthz,
		Properties: map[string]interface{}{
			"required_spec": requiredSpec,
			"reason":        reason,
			"caller_roles":  roleNames,
		},
	})

	if caller.Anonymous() {
		if wantsJSON(c) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "authentication required",
			})
		} else {
			c.Redirect(http.StatusFound, LoginRoute)
		}
		c.Abort()
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "Forbidden",
			"message": "you do not have access to this resource",
			"code":    "access_denied",
		})
	} else {
		// Redirect fixo para o dashboard evita loop na rota proibida
		c.Redirect(http.StatusFound, DashboardRoute)
	}
	c.Abort()
}
