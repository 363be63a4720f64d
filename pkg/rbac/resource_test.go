package rbac_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreiam/rbac-authzd/pkg/apierrors"
	"github.com/coreiam/rbac-authzd/pkg/rbac"
	"github.com/coreiam/rbac-authzd/pkg/rbacstore/fake"
)

func TestCreateResource_DuplicateIsAlreadyExists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo()
	require.NoError(t, repo.CreateResource(ctx, "api://x"))

	err := repo.CreateResource(ctx, "api://x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrAlreadyExists))
}

func TestGetResource_MissingReturnsNil(t *testing.T) {
	t.Parallel()

	repo := newRepo()
	got, err := repo.GetResource(context.Background(), "api://nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreateScope_RejectsReservedDefault(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo()
	require.NoError(t, repo.CreateResource(ctx, "api://x"))

	err := repo.CreateScope(ctx, "api://x", rbac.DefaultScope)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierrors.ErrValidationFailed))
}

func TestCreateScope_RequiresParentResource(t *testing.T) {
	t.Parallel()

	repo := newRepo()
	err := repo.CreateScope(context.Background(), "api://nope", "rbac")
	require.Error(t, err)
}

// P3: after Resource.Delete succeeds, a full scan yields zero items
// referencing the resource.
func TestDeleteResource_P3_CascadeCompleteness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := fake.New()
	repo := rbac.New(store, permissiveValidator{})

	require.NoError(t, repo.CreateResource(ctx, "api://x"))
	require.NoError(t, repo.CreateScope(ctx, "api://x", "rbac"))
	require.NoError(t, repo.CreateRole(ctx, "api://x", "rbac.read"))
	require.NoError(t, repo.CreateScopeAssignment(ctx, alice, "api://x", "rbac"))
	require.NoError(t, repo.CreateRoleAssignment(ctx, alice, "api://x", "rbac.read"))

	require.NoError(t, repo.DeleteResource(ctx, "api://x"))

	assert.Equal(t, 0, store.CountReferencing("api://x"))
}

func TestDeleteScope_CascadesAssignmentsOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := fake.New()
	repo := rbac.New(store, permissiveValidator{})

	require.NoError(t, repo.CreateResource(ctx, "api://x"))
	require.NoError(t, repo.CreateScope(ctx, "api://x", "rbac"))
	require.NoError(t, repo.CreateRole(ctx, "api://x", "rbac.read"))
	require.NoError(t, repo.CreateScopeAssignment(ctx, alice, "api://x", "rbac"))
	require.NoError(t, repo.CreateRoleAssignment(ctx, alice, "api://x", "rbac.read"))

	require.NoError(t, repo.DeleteScope(ctx, "api://x", "rbac"))

	got, err := repo.GetScope(ctx, "api://x", "rbac")
	require.NoError(t, err)
	assert.Nil(t, got)

	// The resource and role survive; only the scope's assignment is gone.
	resource, err := repo.GetResource(ctx, "api://x")
	require.NoError(t, err)
	assert.NotNil(t, resource)

	access, err := repo.GetAccess(ctx, alice, "api://x", "")
	require.NoError(t, err)
	assert.Empty(t, access.Scopes)
}
