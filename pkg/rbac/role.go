package rbac

import (
	"context"

	"github.com/coreiam/rbac-authzd/pkg/apierrors"
	"github.com/coreiam/rbac-authzd/pkg/nameenc"
	"github.com/coreiam/rbac-authzd/pkg/rbacstore"
)

// CreateRole creates a role under resourceName, requiring the parent
// resource to exist (same ConditionCheck pattern as CreateScope).
func (r *Repository) CreateRole(ctx context.Context, resourceName, roleName string) error {
	okR, resourceName := r.validator.Validate(resourceName)
	okRole, roleName := r.validator.Validate(roleName)
	if !okR {
		return apierrors.NewValidationFailed("resourceName", "invalid resource name")
	}
	if !okRole {
		return apierrors.NewValidationFailed("roleName", "invalid role name")
	}

	resourcePI := nameenc.ResourceScopedPI(resourceName)
	ops := []rbacstore.TransactOp{
		{Kind: rbacstore.TransactConditionCheck, PI: nameenc.ResourcePI(), SI: nameenc.ResourceSI(resourceName), Condition: rbacstore.ConditionMustExist},
		{Kind: rbacstore.TransactPut, Item: rbacstore.Item{PI: resourcePI, SI: nameenc.RoleSI(roleName)}, Condition: rbacstore.ConditionMustNotExist},
	}

	if err := r.retryTransact(ctx, func() error { return r.store.Transact(ctx, ops) }); err != nil {
		return translateStoreErr(err, "Role", roleName)
	}
	return nil
}

// GetRole returns the role, or (nil, nil) if it does not exist.
func (r *Repository) GetRole(ctx context.Context, resourceName, roleName string) (*Role, error) {
	okR, resourceName := r.validator.Validate(resourceName)
	okRole, roleName := r.validator.Validate(roleName)
	if !okR {
		return nil, apierrors.NewValidationFailed("resourceName", "invalid resource name")
	}
	if !okRole {
		return nil, apierrors.NewValidationFailed("roleName", "invalid role name")
	}

	item, err := r.store.Get(ctx, nameenc.ResourceScopedPI(resourceName), nameenc.RoleSI(roleName))
	if err != nil {
		return nil, translateStoreErr(err, "Role", roleName)
	}
	if item == nil {
		return nil, nil
	}
	return &Role{ResourceName: resourceName, RoleName: roleName}, nil
}

// DeleteRole cascades to every RoleAssignment of this role before removing
// the role row itself.
func (r *Repository) DeleteRole(ctx context.Context, resourceName, roleName string) error {
	okR, resourceName := r.validator.Validate(resourceName)
	okRole, roleName := r.validator.Validate(roleName)
	if !okR {
		return apierrors.NewValidationFailed("resourceName", "invalid resource name")
	}
	if !okRole {
		return apierrors.NewValidationFailed("roleName", "invalid role name")
	}

	resourcePI := nameenc.ResourceScopedPI(resourceName)
	rows, err := drainAll(ctx, r.store.Query(ctx, resourcePI, nameenc.RoleAssignmentsForRolePrefix(roleName)))
	if err != nil {
		return translateStoreErr(err, "Role", roleName)
	}

	var ops []rbacstore.TransactOp
	for _, row := range rows {
		_, principalID, ok := nameenc.DecodeRoleAssignmentRoleSI(row.SI)
		if !ok {
			continue
		}
		ops = append(ops,
			deleteOp(resourcePI, row.SI),
			deleteOp(nameenc.PrincipalPI(principalID), nameenc.RoleAssignmentPrincipalSI(resourceName, roleName)),
		)
	}
	ops = append(ops, deleteOp(resourcePI, nameenc.RoleSI(roleName)))

	return r.execBatches(ctx, ops)
}
