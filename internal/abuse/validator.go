package abuse

import (
	"context"
	"crypto/subtle"
	"errors"
)

// ErrTokenMismatch é o resultado explícito de uma falha de validação
// O tracker é invocado no branch de erro, sem interceptação de exceção
var ErrTokenMismatch = errors.New("forgery token mismatch")

// StaticTokenValidator compara o token enviado com o esperado
// Não é uma implementação criptográfica de CSRF: apenas o colaborador
// de comparação que o pipeline consome
type StaticTokenValidator struct{}

// NewStaticTokenValidator cria o validador
func NewStaticTokenValidator() *StaticTokenValidator {
	return &StaticTokenValidator{}
}

// Validate retorna ErrTokenMismatch quando os tokens divergem
func (v *StaticTokenValidator) Validate(ctx context.Context, provided, expected string) error {
	if expected == "" {
		// Chave não configurada: condição configuration-absent, pass-through
		return nil
	}
	if provided == "" {
		return ErrTokenMismatch
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		return ErrTokenMismatch
	}
	return nil
}
