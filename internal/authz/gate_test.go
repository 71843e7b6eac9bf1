package authz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"secgate/internal/cache"
	"secgate/internal/domain"
	"secgate/internal/logger"
)

func newTestGate(t *testing.T) (*Gate, *MemoryRoleDirectory) {
	t.Helper()
	c := cache.NewMemoryCache(logger.NewLogger("debug", "text"))
	t.Cleanup(func() { c.Close() })

	directory := NewMemoryRoleDirectory()
	directory.PutRole(domain.Role{Name: "admin", Level: 1, Status: domain.RoleStatusActive},
		[]string{"users.*", "reports.*"})
	directory.PutRole(domain.Role{Name: "analyst", Level: 5, Status: domain.RoleStatusActive},
		[]string{"reports.view", "reports.create"})
	directory.PutRole(domain.Role{Name: "viewer", Level: 10, Status: domain.RoleStatusActive},
		[]string{"reports.view"})
	directory.PutRole(domain.Role{Name: "legacy", Level: 3, Status: "disabled"},
		[]string{"everything.*"})

	directory.Assign("admin-1", "admin")
	directory.Assign("analyst-1", "analyst")
	directory.Assign("viewer-1", "viewer")

	gate := NewGate(directory, c, "superadmin", 30*time.Minute, logger.NewLogger("debug", "text"))
	return gate, directory
}

func caller(id string, roles ...domain.RoleRef) *domain.Caller {
	return &domain.Caller{ID: id, IsActive: true, Roles: roles}
}

func roleRef(name string, level int) domain.RoleRef {
	return domain.RoleRef{Name: name, Level: level, Status: domain.RoleStatusActive}
}

func TestGate_Authorize(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		caller  *domain.Caller
		spec    string
		logic   domain.AuthzLogic
		allowed bool
		reason  string
	}{
		{
			name:    "Should allow caller with exact permission",
			caller:  caller("viewer-1", roleRef("viewer", 10)),
			spec:    "reports.view",
			logic:   domain.LogicAnd,
			allowed: true,
		},
		{
			name:    "Should allow wildcard permission to match concrete token",
			caller:  caller("admin-1", roleRef("admin", 1)),
			spec:    "users.update",
			logic:   domain.LogicAnd,
			allowed: true,
		},
		{
			name:    "Should not let wildcard leak across segments",
			caller:  caller("admin-1", roleRef("admin", 1)),
			spec:    "roles.update",
			logic:   domain.LogicAnd,
			allowed: false,
			reason:  ReasonMissingPermission,
		},
		{
			name:    "Should require all tokens with and logic",
			caller:  caller("viewer-1", roleRef("viewer", 10)),
			spec:    "reports.view,reports.create",
			logic:   domain.LogicAnd,
			allowed: false,
			reason:  ReasonMissingPermission,
		},
		{
			name:    "Should accept any token with or logic",
			caller:  caller("viewer-1", roleRef("viewer", 10)),
			spec:    "reports.create,reports.view",
			logic:   domain.LogicOr,
			allowed: true,
		},
		{
			name:    "Should deny anonymous caller",
			caller:  nil,
			spec:    "reports.view",
			logic:   domain.LogicAnd,
			allowed: false,
			reason:  ReasonAnonymous,
		},
		{
			name: "Should deny inactive caller",
			caller: &domain.Caller{
				ID:       "analyst-1",
				IsActive: false,
				Roles:    []domain.RoleRef{roleRef("analyst", 5)},
			},
			spec:    "reports.view",
			logic:   domain.LogicAnd,
			allowed: false,
			reason:  ReasonInactiveCaller,
		},
		{
			name:    "Should allow super role regardless of permissions",
			caller:  caller("root-1", roleRef("superadmin", 0)),
			spec:    "anything.at.all",
			logic:   domain.LogicAnd,
			allowed: true,
		},
		{
			name:    "Should allow empty spec",
			caller:  caller("viewer-1", roleRef("viewer", 10)),
			spec:    "",
			logic:   domain.LogicAnd,
			allowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			decision, err := gate.Authorize(ctx, tt.caller, tt.spec, tt.logic)

			// Assert
			assert.NoError(t, err)
			assert.Equal(t, tt.allowed, decision.Allowed)
			if !tt.allowed {
				assert.Equal(t, tt.reason, decision.Reason)
			}
		})
	}
}

func TestGate_Authorize_SnapshotCaching(t *testing.T) {
	// Arrange
	gate, directory := newTestGate(t)
	ctx := context.Background()
	c := caller("viewer-1", roleRef("viewer", 10))

	decision, err := gate.Authorize(ctx, c, "reports.create", domain.LogicAnd)
	assert.NoError(t, err)
	assert.False(t, decision.Allowed)

	// Act: o diretório muda, mas o snapshot cacheado ainda vale
	directory.Assign("viewer-1", "analyst")

	decision, err = gate.Authorize(ctx, c, "reports.create", domain.LogicAnd)
	assert.NoError(t, err)
	assert.False(t, decision.Allowed)

	// A invalidação força o recompute com os papéis novos
	err = gate.InvalidateSnapshot(ctx, "viewer-1")
	assert.NoError(t, err)

	decision, err = gate.Authorize(ctx, c, "reports.create", domain.LogicAnd)
	assert.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestGate_Authorize_IgnoresInactiveRolePermissions(t *testing.T) {
	// Papel desabilitado no diretório não contribui permissões
	gate, directory := newTestGate(t)
	directory.Assign("ghost-1", "legacy")

	decision, err := gate.Authorize(context.Background(),
		caller("ghost-1", roleRef("legacy", 3)), "everything.else", domain.LogicAnd)

	assert.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestGate_CheckRole(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		caller  *domain.Caller
		spec    string
		logic   domain.AuthzLogic
		allowed bool
	}{
		{
			name:    "Should allow caller holding the role by name",
			caller:  caller("analyst-1", roleRef("analyst", 5)),
			spec:    "analyst",
			logic:   domain.LogicAnd,
			allowed: true,
		},
		{
			name:    "Should allow more privileged role via hierarchy",
			caller:  caller("admin-1", roleRef("admin", 1)),
			spec:    "analyst",
			logic:   domain.LogicAnd,
			allowed: true,
		},
		{
			name:    "Should deny less privileged role via hierarchy",
			caller:  caller("viewer-1", roleRef("viewer", 10)),
			spec:    "analyst",
			logic:   domain.LogicAnd,
			allowed: false,
		},
		{
			name:    "Should deny inactive role reference",
			caller:  caller("ghost-1", domain.RoleRef{Name: "admin", Level: 1, Status: "disabled"}),
			spec:    "admin",
			logic:   domain.LogicAnd,
			allowed: false,
		},
		{
			name:    "Should deny role unknown to the directory",
			caller:  caller("viewer-1", roleRef("viewer", 10)),
			spec:    "auditor",
			logic:   domain.LogicAnd,
			allowed: false,
		},
		{
			name:    "Should accept any role with or logic",
			caller:  caller("analyst-1", roleRef("analyst", 5)),
			spec:    "admin,analyst",
			logic:   domain.LogicOr,
			allowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := gate.CheckRole(ctx, tt.caller, tt.spec, tt.logic)
			assert.NoError(t, err)
			assert.Equal(t, tt.allowed, decision.Allowed)
		})
	}
}

func TestHoldsPermission(t *testing.T) {
	tests := []struct {
		name     string
		held     []string
		required string
		expected bool
	}{
		{name: "Should match exact token", held: []string{"reports.view"}, required: "reports.view", expected: true},
		{name: "Should match star wildcard", held: []string{"users.*"}, required: "users.delete", expected: true},
		{name: "Should match question mark wildcard", held: []string{"region-?"}, required: "region-7", expected: true},
		{name: "Should not match different prefix", held: []string{"users.*"}, required: "roles.delete", expected: false},
		{name: "Should not treat required token as pattern", held: []string{"users.view"}, required: "users.*", expected: false},
		{name: "Should handle empty held list", held: nil, required: "reports.view", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, holdsPermission(tt.held, tt.required))
		})
	}
}
