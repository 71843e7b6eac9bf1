package authz

import (
	"context"
	"sync"

	"secgate/internal/domain"
)

// MemoryRoleDirectory implementa domain.RoleDirectory em memória
// O diretório real é um colaborador externo; esta implementação serve
// desenvolvimento, testes e o modo standalone do serviço
type MemoryRoleDirectory struct {
	roles       map[string]*domain.Role  // nome -> definição
	assignments map[string][]string      // usuário -> nomes de papéis
	permissions map[string][]string      // papel -> consulta viva (fallback)
	mutex       sync.RWMutex
}

// NewMemoryRoleDirectory cria um diretório vazio
func NewMemoryRoleDirectory() *MemoryRoleDirectory {
	return &MemoryRoleDirectory{
		roles:       make(map[string]*domain.Role),
		assignments: make(map[string][]string),
		permissions: make(map[string][]string),
	}
}

// PutRole registra ou substitui a definição de um papel
// Permissions nil força o fallback de consulta viva em RolePermissions
func (d *MemoryRoleDirectory) PutRole(role domain.Role, livePermissions []string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	copied := role
	d.roles[role.Name] = &copied
	if livePermissions != nil {
		d.permissions[role.Name] = livePermissions
	}
}

// Assign associa papéis a um usuário
func (d *MemoryRoleDirectory) Assign(userID string, roleNames ...string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.assignments[userID] = append(d.assignments[userID], roleNames...)
}

// ActiveRoles retorna os papéis ativos de um usuário
func (d *MemoryRoleDirectory) ActiveRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	var active []domain.Role
	for _, name := range d.assignments[userID] {
		role, ok := d.roles[name]
		if !ok || role.Status != domain.RoleStatusActive {
			continue
		}
		active = append(active, *role)
	}
	return active, nil
}

// RolePermissions faz a consulta viva de permissões de um papel
func (d *MemoryRoleDirectory) RolePermissions(ctx context.Context, roleName string) ([]string, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	perms := d.permissions[roleName]
	out := make([]string, len(perms))
	copy(out, perms)
	return out, nil
}

// FindRole retorna a definição de um papel pelo nome, ou nil
func (d *MemoryRoleDirectory) FindRole(ctx context.Context, roleName string) (*domain.Role, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	role, ok := d.roles[roleName]
	if !ok {
		return nil, nil
	}
	copied := *role
	return &copied, nil
}
