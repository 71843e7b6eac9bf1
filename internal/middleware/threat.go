package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"secgate/internal/audit"
	"secgate/internal/domain"
	"secgate/internal/logger"
	"secgate/internal/threat"

	"github.com/gin-gonic/gin"
)

// maxScannedBody limita o corpo inspecionado pelo scanner
const maxScannedBody = 1 << 20 // 1 MiB

// ThreatScan inspeciona todos os campos da requisição contra as
// assinaturas de ataque. Risco alto termina com 403; medium/low
// seguem adiante marcadas no contexto para degradação de confiança
func ThreatScan(scanner *threat.Scanner, sink domain.AuditSink, log domain.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := RouteName(c)
		if scanner.RouteExempt(route) {
			c.Next()
			return
		}

		fields := collectFields(c)
		result := scanner.Scan(fields)

		if len(result.Findings) == 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		if result.HighRisk() {
			sink.Record(ctx, &domain.AuditEvent{
				ActorID:       callerID(c),
				Action:        "threat.blocked",
				Description:   "Request blocked by high-risk attack signature match",
				SourceAddress: ClientIP(c),
				UserAgent:     c.GetHeader("User-Agent"),
				URL:           c.Request.URL.String(),
				Method:        c.Request.Method,
				IsSensitive:   true,
				Severity:      domain.SeverityCritical,
				Category:      audit.CategoryThreat,
				Properties:    findingProperties(result),
			})

			c.JSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"message": "request rejected by security policy",
				"code":    "malicious_payload",
			})
			c.Abort()
			return
		}

		// Achados medium/low: log de warning e marcação para os
		// estágios seguintes, a requisição continua
		risk := result.MaxRisk()
		log.WithContext(ctx).Warn("Suspicious payload detected, request allowed", map[string]interface{}{
			"risk":     string(risk),
			"findings": findingProperties(result),
		})

		c.Set(ContextRisk, string(risk))
		c.Request = c.Request.WithContext(
			context.WithValue(ctx, logger.RiskKey, string(risk)),
		)
		c.Next()
	}
}

// collectFields achata query, corpo (form ou JSON) e headers relevantes
func collectFields(c *gin.Context) map[string]string {
	fields := make(map[string]string)

	threat.FlattenValues("query", c.Request.URL.Query(), fields)
	threat.FlattenHeaders(c.GetHeader, fields)

	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return fields
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxScannedBody))
	if err != nil {
		return fields
	}
	// Restaura o corpo para os handlers seguintes; o que passou do
	// limite de inspeção continua no reader original
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), c.Request.Body))

	contentType := c.ContentType()
	switch {
	case strings.Contains(contentType, "application/json"):
		var decoded interface{}
		if err := json.Unmarshal(body, &decoded); err == nil {
			threat.FlattenJSON("body", decoded, fields)
		}
	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		if values, err := url.ParseQuery(string(body)); err == nil {
			threat.FlattenValues("form", values, fields)
		}
	}

	return fields
}

// findingProperties achata os achados para o evento de auditoria
func findingProperties(result *domain.ScanResult) map[string]interface{} {
	props := make(map[string]interface{}, len(result.Findings))
	for path, finding := range result.Findings {
		props[path] = map[string]interface{}{
			"patterns": finding.MatchedPatterns,
			"risk":     string(finding.RiskLevel),
		}
	}
	return props
}

// callerID retorna o ID do chamador, vazio para anônimos
func callerID(c *gin.Context) string {
	caller := GetCaller(c)
	if caller.Anonymous() {
		return ""
	}
	return caller.ID
}
