package middleware

import (
	"net/http"
	"strings"

	"secgate/internal/csp"
	"secgate/internal/domain"

	"github.com/gin-gonic/gin"
)

// Headers de política de segurança de conteúdo
const (
	CspHeader           = "Content-Security-Policy"
	CspReportOnlyHeader = "Content-Security-Policy-Report-Only"
)

// ContentSecurityPolicy compõe a política no caminho de saída
// Pulado para respostas de API, redirects e conteúdo não-HTML
func ContentSecurityPolicy(composer *csp.Composer, reportOnly bool, log domain.Logger) gin.HandlerFunc {
	header := CspHeader
	if reportOnly {
		header = CspReportOnlyHeader
	}

	return func(c *gin.Context) {
		// Respostas de API nunca recebem a política
		if wantsJSON(c) {
			c.Next()
			return
		}

		set, nonce, err := composer.Build(RouteName(c))
		if err != nil {
			log.WithContext(c.Request.Context()).Error("CSP composition failed", err, nil)
			c.Next()
			return
		}

		// O nonce fica disponível para helpers de template antes do handler
		if nonce != "" {
			c.Set(ContextCspNonce, nonce)
		}

		// O header é decidido no WriteHeader: redirects e conteúdo
		// não-HTML saem sem política
		c.Writer = &cspWriter{
			ResponseWriter: c.Writer,
			header:         header,
			value:          csp.Serialize(set),
		}

		c.Next()
	}
}

// CspNonce retorna o nonce gerado para a requisição, se houver
func CspNonce(c *gin.Context) string {
	return c.GetString(ContextCspNonce)
}

// cspWriter injeta o header de CSP no momento do WriteHeader,
// quando status e content-type finais já são conhecidos
type cspWriter struct {
	gin.ResponseWriter
	header string
	value  string
	done   bool
}

func (w *cspWriter) WriteHeader(status int) {
	w.inject(status)
	w.ResponseWriter.WriteHeader(status)
}

func (w *cspWriter) Write(data []byte) (int, error) {
	// Write sem WriteHeader explícito implica 200
	w.inject(http.StatusOK)
	return w.ResponseWriter.Write(data)
}

func (w *cspWriter) WriteString(s string) (int, error) {
	w.inject(http.StatusOK)
	return w.ResponseWriter.WriteString(s)
}

// inject aplica a política uma única vez, se a resposta for elegível
func (w *cspWriter) inject(status int) {
	if w.done {
		return
	}

	// O Render do gin chama WriteHeader(-1) como sentinela antes do
	// status real; a decisão espera um código válido
	if status <= 0 {
		return
	}
	w.done = true

	if status >= http.StatusMultipleChoices && status < http.StatusBadRequest {
		return
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "text/html") {
		return
	}

	w.Header().Set(w.header, w.value)
}
