package rbac

import (
	"context"

	"github.com/coreiam/rbac-authzd/pkg/apierrors"
	"github.com/coreiam/rbac-authzd/pkg/nameenc"
	"github.com/coreiam/rbac-authzd/pkg/rbacstore"
)

// CreateResource creates a new resource. Re-creation is not idempotent: it
// returns AlreadyExists (spec §4.3).
func (r *Repository) CreateResource(ctx context.Context, resourceName string) error {
	ok, normalized := r.validator.Validate(resourceName)
	if !ok {
		return apierrors.NewValidationFailed("resourceName", "invalid resource name")
	}

	item := rbacstore.Item{PI: nameenc.ResourcePI(), SI: nameenc.ResourceSI(normalized)}
	if err := r.store.Put(ctx, item, rbacstore.ConditionMustNotExist); err != nil {
		return translateStoreErr(err, "Resource", normalized)
	}
	return nil
}

// GetResource returns the resource, or (nil, nil) if it does not exist.
func (r *Repository) GetResource(ctx context.Context, resourceName string) (*Resource, error) {
	ok, normalized := r.validator.Validate(resourceName)
	if !ok {
		return nil, apierrors.NewValidationFailed("resourceName", "invalid resource name")
	}

	item, err := r.store.Get(ctx, nameenc.ResourcePI(), nameenc.ResourceSI(normalized))
	if err != nil {
		return nil, translateStoreErr(err, "Resource", normalized)
	}
	if item == nil {
		return nil, nil
	}
	return &Resource{ResourceName: normalized}, nil
}

// DeleteResource cascades to every scope, role, and assignment under the
// resource (spec §4.3), deleting in the fixed order scope-assignments,
// role-assignments, scopes, roles, resource -- the resource row goes last so
// a crash mid-cascade leaves it addressable for a retried Delete (spec §5).
func (r *Repository) DeleteResource(ctx context.Context, resourceName string) error {
	ok, normalized := r.validator.Validate(resourceName)
	if !ok {
		return apierrors.NewValidationFailed("resourceName", "invalid resource name")
	}

	resourcePI := nameenc.ResourceScopedPI(normalized)

	scopeRows, err := drainAll(ctx, r.store.Query(ctx, resourcePI, nameenc.ScopePrefix()))
	if err != nil {
		return translateStoreErr(err, "Resource", normalized)
	}
	roleRows, err := drainAll(ctx, r.store.Query(ctx, resourcePI, nameenc.RolePrefix()))
	if err != nil {
		return translateStoreErr(err, "Resource", normalized)
	}
	scopeAssignRows, err := drainAll(ctx, r.store.Query(ctx, resourcePI, nameenc.ScopeAssignmentsUnderResourcePrefix()))
	if err != nil {
		return translateStoreErr(err, "Resource", normalized)
	}
	roleAssignRows, err := drainAll(ctx, r.store.Query(ctx, resourcePI, nameenc.RoleAssignmentsUnderResourcePrefix()))
	if err != nil {
		return translateStoreErr(err, "Resource", normalized)
	}

	var ops []rbacstore.TransactOp

	for _, row := range scopeAssignRows {
		scopeName, principalID, ok := nameenc.DecodeScopeAssignmentScopeSI(row.SI)
		if !ok {
			continue
		}
		ops = append(ops,
			deleteOp(resourcePI, row.SI),
			deleteOp(nameenc.PrincipalPI(principalID), nameenc.ScopeAssignmentPrincipalSI(normalized, scopeName)),
		)
	}
	for _, row := range roleAssignRows {
		roleName, principalID, ok := nameenc.DecodeRoleAssignmentRoleSI(row.SI)
		if !ok {
			continue
		}
		ops = append(ops,
			deleteOp(resourcePI, row.SI),
			deleteOp(nameenc.PrincipalPI(principalID), nameenc.RoleAssignmentPrincipalSI(normalized, roleName)),
		)
	}
	for _, row := range scopeRows {
		ops = append(ops, deleteOp(resourcePI, row.SI))
	}
	for _, row := range roleRows {
		ops = append(ops, deleteOp(resourcePI, row.SI))
	}
	ops = append(ops, deleteOp(nameenc.ResourcePI(), nameenc.ResourceSI(normalized)))

	return r.execBatches(ctx, ops)
}
