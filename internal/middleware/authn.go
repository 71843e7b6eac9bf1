package middleware

import (
	"context"

	"secgate/internal/domain"
	"secgate/internal/logger"

	"github.com/gin-gonic/gin"
)

// CallerResolver resolve o chamador autenticado da requisição
// A autenticação em si é colaborador externo ao pipeline de decisão
type CallerResolver func(ctx context.Context, c *gin.Context) (*domain.Caller, error)

// Authenticate injeta o chamador resolvido no contexto da requisição
// Falha de resolução deixa a requisição anônima; os gates decidem depois
func Authenticate(resolver CallerResolver, log domain.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := stageContext(c)
		defer cancel()

		caller, err := resolver(ctx, c)
		if err != nil {
			log.WithContext(ctx).Warn("Caller resolution failed, continuing as anonymous", map[string]interface{}{
				"error": err.Error(),
			})
		}
		if caller != nil {
			SetCaller(c, caller)

			// O contexto de logging passa a carregar o usuário resolvido
			c.Request = c.Request.WithContext(
				logger.ContextWithUserID(c.Request.Context(), caller.ID),
			)
		}

		c.Next()
	}
}

// HeaderCallerResolver resolve o chamador a partir do header X-User-ID,
// consultando os papéis ativos no diretório. Serve o modo standalone;
// em produção o authenticator real substitui este resolver
func HeaderCallerResolver(directory domain.RoleDirectory) CallerResolver {
	return func(ctx context.Context, c *gin.Context) (*domain.Caller, error) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			return nil, nil
		}

		roles, err := directory.ActiveRoles(ctx, userID)
		if err != nil {
			return nil, err
		}

		refs := make([]domain.RoleRef, 0, len(roles))
		for _, role := range roles {
			refs = append(refs, domain.RoleRef{
				Name:   role.Name,
				Level:  role.Level,
				Status: role.Status,
			})
		}

		return &domain.Caller{
			ID:       userID,
			IsActive: c.GetHeader("X-User-Inactive") != "true",
			Roles:    refs,
		}, nil
	}
}
