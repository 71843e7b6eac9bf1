package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"secgate/internal/domain"
)

// Motivos de negação expostos na decisão
const (
	ReasonInactiveCaller    = "caller inactive"
	ReasonAnonymous         = "unauthenticated"
	ReasonMissingPermission = "missing required permission"
	ReasonMissingRole       = "missing required role"
	ReasonDependencyError   = "authorization dependency unavailable"
)

// Gate valida permissões e papéis do chamador usando um snapshot
// cacheado por usuário. Dependência indisponível significa fail closed
type Gate struct {
	directory   domain.RoleDirectory
	cache       domain.Cache
	logger      domain.Logger
	superRole   string
	snapshotTTL time.Duration
}

// NewGate cria o gate de autorização
// superRole libera qualquer verificação (papel de superusuário)
func NewGate(directory domain.RoleDirectory, cache domain.Cache, superRole string, snapshotTTL time.Duration, logger domain.Logger) *Gate {
	if snapshotTTL <= 0 {
		snapshotTTL = 30 * time.Minute
	}
	return &Gate{
		directory:   directory,
		cache:       cache,
		logger:      logger,
		superRole:   superRole,
		snapshotTTL: snapshotTTL,
	}
}

// Authorize verifica se o chamador possui as permissões exigidas
// requiredSpec é uma lista separada por vírgula; logic combina os tokens
func (g *Gate) Authorize(ctx context.Context, caller *domain.Caller, requiredSpec string, logic domain.AuthzLogic) (*domain.AuthzDecision, error) {
	if caller.Anonymous() {
		return &domain.AuthzDecision{Allowed: false, Reason: ReasonAnonymous}, nil
	}
	if !caller.IsActive {
		return &domain.AuthzDecision{Allowed: false, Reason: ReasonInactiveCaller}, nil
	}
	if g.holdsSuperRole(caller) {
		return &domain.AuthzDecision{Allowed: true}, nil
	}

	held, err := g.Permissions(ctx, caller)
	if err != nil {
		// Fail closed: sem snapshot confiável não há autorização
		g.logger.WithContext(ctx).Error("Permission snapshot unavailable, denying", err, map[string]interface{}{
			"user_id": caller.ID,
		})
		return &domain.AuthzDecision{Allowed: false, Reason: ReasonDependencyError}, err
	}

	required := splitSpec(requiredSpec)
	if len(required) == 0 {
		return &domain.AuthzDecision{Allowed: true}, nil
	}

	results := make([]bool, 0, len(required))
	for _, token := range required {
		results = append(results, holdsPermission(held, token))
	}

	if combine(results, logic) {
		return &domain.AuthzDecision{Allowed: true}, nil
	}

	g.logDenial(ctx, caller, requiredSpec, held)
	return &domain.AuthzDecision{Allowed: false, Reason: ReasonMissingPermission}, nil
}

// CheckRole verifica papéis por nome, com fallback de hierarquia:
// nível mínimo do chamador numericamente menor ou igual ao nível
// mínimo exigido passa (nível menor = mais privilegiado)
func (g *Gate) CheckRole(ctx context.Context, caller *domain.Caller, requiredSpec string, logic domain.AuthzLogic) (*domain.AuthzDecision, error) {
	if caller.Anonymous() {
		return &domain.AuthzDecision{Allowed: false, Reason: ReasonAnonymous}, nil
	}
	if !caller.IsActive {
		return &domain.AuthzDecision{Allowed: false, Reason: ReasonInactiveCaller}, nil
	}
	if g.holdsSuperRole(caller) {
		return &domain.AuthzDecision{Allowed: true}, nil
	}

	required := splitSpec(requiredSpec)
	if len(required) == 0 {
		return &domain.AuthzDecision{Allowed: true}, nil
	}

	heldNames := make(map[string]struct{})
	for _, role := range caller.Roles {
		if role.Active() {
			heldNames[role.Name] = struct{}{}
		}
	}

	results := make([]bool, 0, len(required))
	for _, name := range required {
		_, ok := heldNames[name]
		results = append(results, ok)
	}
	if combine(results, logic) {
		return &domain.AuthzDecision{Allowed: true}, nil
	}

	// Fallback de hierarquia sobre os níveis dos papéis exigidos
	callerMin, callerOK := g.minCallerLevel(caller)
	requiredMin, requiredOK := g.minRequiredLevel(ctx, required)
	if callerOK && requiredOK && callerMin <= requiredMin {
		return &domain.AuthzDecision{Allowed: true}, nil
	}

	g.logDenial(ctx, caller, requiredSpec, nil)
	return &domain.AuthzDecision{Allowed: false, Reason: ReasonMissingRole}, nil
}

// Permissions retorna o snapshot de permissões do chamador
// (cache-or-compute com TTL; invalidado quando papéis mudam)
func (g *Gate) Permissions(ctx context.Context, caller *domain.Caller) ([]string, error) {
	payload, err := g.cache.Remember(ctx, snapshotKey(caller.ID), g.snapshotTTL, func() ([]byte, error) {
		perms, err := g.computePermissions(ctx, caller)
		if err != nil {
			return nil, err
		}
		return json.Marshal(perms)
	})
	if err != nil {
		return nil, err
	}

	var perms []string
	if err := json.Unmarshal(payload, &perms); err != nil {
		return nil, fmt.Errorf("failed to decode permission snapshot for user %s: %w", caller.ID, err)
	}
	return perms, nil
}

// InvalidateSnapshot remove o snapshot de um usuário após mudança de papéis
func (g *Gate) InvalidateSnapshot(ctx context.Context, userID string) error {
	return g.cache.Delete(ctx, snapshotKey(userID))
}

// computePermissions une as permissões de todos os papéis ativos,
// preferindo a lista pré-computada do papel sobre a consulta viva
func (g *Gate) computePermissions(ctx context.Context, caller *domain.Caller) ([]string, error) {
	roles, err := g.directory.ActiveRoles(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active roles for user %s: %w", caller.ID, err)
	}

	seen := make(map[string]struct{})
	var union []string
	for _, role := range roles {
		perms := role.Permissions
		if perms == nil {
			perms, err = g.directory.RolePermissions(ctx, role.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to load permissions for role %s: %w", role.Name, err)
			}
		}
		for _, p := range perms {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			union = append(union, p)
		}
	}
	return union, nil
}

// holdsPermission testa pertencimento direto e depois por wildcard:
// permissão retida contendo `*`/`?` vira regex contra o token exigido
func holdsPermission(held []string, required string) bool {
	for _, p := range held {
		if p == required {
			return true
		}
	}
	for _, p := range held {
		if !strings.ContainsAny(p, "*?") {
			continue
		}
		re, err := wildcardRegex(p)
		if err != nil {
			continue
		}
		if re.MatchString(required) {
			return true
		}
	}
	return false
}

// wildcardRegex compila uma permissão wildcard (`*`→`.*`, `?`→`.`)
func wildcardRegex(pattern string) (*regexp.Regexp, error) {
	quoted := regexp.QuoteMeta(pattern)
	quoted = strings.ReplaceAll(quoted, `\*`, `.*`)
	quoted = strings.ReplaceAll(quoted, `\?`, `.`)
	return regexp.Compile("^" + quoted + "$")
}

// minCallerLevel retorna o menor nível entre os papéis ativos do chamador
func (g *Gate) minCallerLevel(caller *domain.Caller) (int, bool) {
	min, found := 0, false
	for _, role := range caller.Roles {
		if !role.Active() {
			continue
		}
		if !found || role.Level < min {
			min = role.Level
			found = true
		}
	}
	return min, found
}

// minRequiredLevel resolve no diretório o menor nível dos papéis exigidos
func (g *Gate) minRequiredLevel(ctx context.Context, names []string) (int, bool) {
	min, found := 0, false
	for _, name := range names {
		role, err := g.directory.FindRole(ctx, name)
		if err != nil || role == nil {
			continue
		}
		if !found || role.Level < min {
			min = role.Level
			found = true
		}
	}
	return min, found
}

// holdsSuperRole testa o papel de superusuário configurado
func (g *Gate) holdsSuperRole(caller *domain.Caller) bool {
	if g.superRole == "" {
		return false
	}
	for _, role := range caller.Roles {
		if role.Active() && role.Name == g.superRole {
			return true
		}
	}
	return false
}

// logDenial registra a negação com rota, exigência e papéis do chamador
func (g *Gate) logDenial(ctx context.Context, caller *domain.Caller, requiredSpec string, held []string) {
	roleNames := make([]string, 0, len(caller.Roles))
	for _, r := range caller.Roles {
		roleNames = append(roleNames, r.Name)
	}
	fields := map[string]interface{}{
		"user_id":       caller.ID,
		"required_spec": requiredSpec,
		"caller_roles":  roleNames,
	}
	if held != nil {
		fields["caller_permissions"] = held
	}
	g.logger.WithContext(ctx).Warn("Authorization denied", fields)
}

// combine aplica a lógica and/or sobre os resultados por token
func combine(results []bool, logic domain.AuthzLogic) bool {
	if len(results) == 0 {
		return true
	}
	if logic == domain.LogicOr {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

// splitSpec quebra a lista separada por vírgula, ignorando vazios
func splitSpec(spec string) []string {
	parts := strings.Split(spec, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// snapshotKey monta a chave de cache do snapshot por usuário
func snapshotKey(userID string) string {
	return "authz:perms:" + userID
}
