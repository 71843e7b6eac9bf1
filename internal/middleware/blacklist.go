package middleware

import (
	"net/http"

	"secgate/internal/blacklist"
	"secgate/internal/domain"

	"github.com/gin-gonic/gin"
)

// BlacklistGate rejeita requisições de endereços bloqueados
// Primeiro estágio de decisão do pipeline
func BlacklistGate(gate *blacklist.Gate, log domain.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := stageContext(c)
		defer cancel()

		address := ClientIP(c)
		decision, err := gate.Check(ctx, &blacklist.Request{
			Address:   address,
			URL:       c.Request.URL.String(),
			Method:    c.Request.Method,
			UserAgent: c.GetHeader("User-Agent"),
		})
		if err != nil {
			// O gate já decide fail open internamente; erro aqui é inesperado
			log.WithContext(ctx).Error("Blacklist check failed unexpectedly", err, map[string]interface{}{
				"address": address,
			})
			c.Next()
			return
		}

		if !decision.Blocked {
			c.Next()
			return
		}

		response := gin.H{
			"error":   "Forbidden",
			"message": "your address is blocked",
			"code":    "address_blacklisted",
		}
		if decision.Entry != nil {
			response["reason"] = decision.Entry.Reason
			if decision.Entry.ExpiresAt != nil {
				response["blocked_until"] = decision.Entry.ExpiresAt.Unix()
			}
		}

		c.JSON(http.StatusForbidden, response)
		c.Abort()
	}
}
