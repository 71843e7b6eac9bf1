package middleware

import (
	"net/http"

	"secgate/internal/abuse"
	"secgate/internal/domain"

	"github.com/gin-gonic/gin"
)

// ForgeryTokenHeader transporta o token anti-forgery do cliente
const ForgeryTokenHeader = "X-Security-Token"

// métodos de leitura não mutam estado e dispensam o token
var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// ForgeryCheck valida o token anti-forgery via colaborador externo
// O branch de erro alimenta o tracker de abuso, que escala para a
// blacklist após falhas repetidas do mesmo endereço
func ForgeryCheck(validator domain.TokenValidator, tracker *abuse.Tracker, expectedToken string, log domain.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if safeMethods[c.Request.Method] {
			c.Next()
			return
		}

		ctx, cancel := stageContext(c)
		defer cancel()

		provided := c.GetHeader(ForgeryTokenHeader)
		if err := validator.Validate(ctx, provided, expectedToken); err != nil {
			address := ClientIP(c)
			log.WithContext(ctx).Warn("Forgery token validation failed", map[string]interface{}{
				"address": address,
			})

			tracker.RecordFailure(ctx, address)

			c.JSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"message": "invalid security token",
				"code":    "token_mismatch",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
