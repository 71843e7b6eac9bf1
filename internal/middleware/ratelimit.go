package middleware

import (
	"net/http"
	"strconv"
	"time"

	"secgate/internal/domain"
	"secgate/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

// RateLimit avalia a quota da rota; regra explícita vazia resolve por padrão
func RateLimit(limiter *ratelimit.Limiter, explicitRule string, log domain.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := stageContext(c)
		defer cancel()

		caller := GetCaller(c)
		userID := ""
		if !caller.Anonymous() {
			userID = caller.ID
		}

		result, err := limiter.Evaluate(ctx, &ratelimit.Request{
			Route:     RouteName(c),
			RuleName:  explicitRule,
			ClientIP:  ClientIP(c),
			UserID:    userID,
			URL:       c.Request.URL.String(),
			Method:    c.Request.Method,
			UserAgent: c.GetHeader("User-Agent"),
		})
		if err != nil {
			// O limiter decide fail open internamente; erro aqui é inesperado
			log.WithContext(ctx).Error("Rate limit evaluation failed unexpectedly", err, nil)
			c.Next()
			return
		}

		// Headers de observabilidade em toda resposta, permitida ou não
		setRateLimitHeaders(c, result)

		if result.Exceeded {
			retryAfter := int(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "you have reached the maximum number of requests allowed within this time frame",
				"details": gin.H{
					"rule":       result.Rule,
					"limit":      result.Limit,
					"remaining":  result.Remaining,
					"reset_time": result.ResetAt.Unix(),
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// setRateLimitHeaders define os headers X-RateLimit-*
func setRateLimitHeaders(c *gin.Context, result *domain.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
