package rbac

import (
	"context"
	"errors"

	"github.com/coreiam/rbac-authzd/pkg/apierrors"
	"github.com/coreiam/rbac-authzd/pkg/nameenc"
	"github.com/coreiam/rbac-authzd/pkg/rbacstore"
)

// CreateScopeAssignment binds principalId to scopeName on resourceName. The
// four-step transaction (resource exists, scope exists, both mirror rows
// mustNotExist) is atomic: a re-create aborts the whole transaction and is
// reported as AlreadyExists, not a generic failure (spec §4.3).
func (r *Repository) CreateScopeAssignment(ctx context.Context, principalID, resourceName, scopeName string) error {
	okR, resourceName := r.validator.Validate(resourceName)
	okS, scopeName := r.validator.Validate(scopeName)
	if !okR {
		return apierrors.NewValidationFailed("resourceName", "invalid resource name")
	}
	if !okS {
		return apierrors.NewValidationFailed("scopeName", "invalid scope name")
	}
	if principalID == "" {
		return apierrors.NewValidationFailed("principalId", "must not be empty")
	}

	resourcePI := nameenc.ResourceScopedPI(resourceName)
	ops := []rbacstore.TransactOp{
		{Kind: rbacstore.TransactConditionCheck, PI: nameenc.ResourcePI(), SI: nameenc.ResourceSI(resourceName), Condition: rbacstore.ConditionMustExist},
		{Kind: rbacstore.TransactConditionCheck, PI: resourcePI, SI: nameenc.ScopeSI(scopeName), Condition: rbacstore.ConditionMustExist},
		{Kind: rbacstore.TransactPut, Item: rbacstore.Item{PI: nameenc.PrincipalPI(principalID), SI: nameenc.ScopeAssignmentPrincipalSI(resourceName, scopeName)}, Condition: rbacstore.ConditionMustNotExist},
		{Kind: rbacstore.TransactPut, Item: rbacstore.Item{PI: resourcePI, SI: nameenc.ScopeAssignmentScopeSI(scopeName, principalID)}, Condition: rbacstore.ConditionMustNotExist},
	}

	err := r.retryTransact(ctx, func() error { return r.store.Transact(ctx, ops) })
	return translateAssignmentCreateErr(err, "ScopeAssignment", principalID, resourceName, scopeName)
}

// DeleteScopeAssignment deletes both mirror rows unconditionally; a
// half-present pair (repair case) is tolerated (spec §4.3).
func (r *Repository) DeleteScopeAssignment(ctx context.Context, principalID, resourceName, scopeName string) error {
	okR, resourceName := r.validator.Validate(resourceName)
	okS, scopeName := r.validator.Validate(scopeName)
	if !okR {
		return apierrors.NewValidationFailed("resourceName", "invalid resource name")
	}
	if !okS {
		return apierrors.NewValidationFailed("scopeName", "invalid scope name")
	}

	ops := []rbacstore.TransactOp{
		deleteOp(nameenc.PrincipalPI(principalID), nameenc.ScopeAssignmentPrincipalSI(resourceName, scopeName)),
		deleteOp(nameenc.ResourceScopedPI(resourceName), nameenc.ScopeAssignmentScopeSI(scopeName, principalID)),
	}

	if err := r.retryTransact(ctx, func() error { return r.store.Transact(ctx, ops) }); err != nil {
		return translateStoreErr(err, "ScopeAssignment", principalID)
	}
	return nil
}

// CreateRoleAssignment binds principalId to roleName on resourceName,
// symmetric to CreateScopeAssignment.
func (r *Repository) CreateRoleAssignment(ctx context.Context, principalID, resourceName, roleName string) error {
	okR, resourceName := r.validator.Validate(resourceName)
	okRole, roleName := r.validator.Validate(roleName)
	if !okR {
		return apierrors.NewValidationFailed("resourceName", "invalid resource name")
	}
	if !okRole {
		return apierrors.NewValidationFailed("roleName", "invalid role name")
	}
	if principalID == "" {
		return apierrors.NewValidationFailed("principalId", "must not be empty")
	}

	resourcePI := nameenc.ResourceScopedPI(resourceName)
	ops := []rbacstore.TransactOp{
		{Kind: rbacstore.TransactConditionCheck, PI: nameenc.ResourcePI(), SI: nameenc.ResourceSI(resourceName), Condition: rbacstore.ConditionMustExist},
		{Kind: rbacstore.TransactConditionCheck, PI: resourcePI, SI: nameenc.RoleSI(roleName), Condition: rbacstore.ConditionMustExist},
		{Kind: rbacstore.TransactPut, Item: rbacstore.Item{PI: nameenc.PrincipalPI(principalID), SI: nameenc.RoleAssignmentPrincipalSI(resourceName, roleName)}, Condition: rbacstore.ConditionMustNotExist},
		{Kind: rbacstore.TransactPut, Item: rbacstore.Item{PI: resourcePI, SI: nameenc.RoleAssignmentRoleSI(roleName, principalID)}, Condition: rbacstore.ConditionMustNotExist},
	}

	err := r.retryTransact(ctx, func() error { return r.store.Transact(ctx, ops) })
	return translateAssignmentCreateErr(err, "RoleAssignment", principalID, resourceName, roleName)
}

// DeleteRoleAssignment deletes both mirror rows unconditionally.
func (r *Repository) DeleteRoleAssignment(ctx context.Context, principalID, resourceName, roleName string) error {
	okR, resourceName := r.validator.Validate(resourceName)
	okRole, roleName := r.validator.Validate(roleName)
	if !okR {
		return apierrors.NewValidationFailed("resourceName", "invalid resource name")
	}
	if !okRole {
		return apierrors.NewValidationFailed("roleName", "invalid role name")
	}

	ops := []rbacstore.TransactOp{
		deleteOp(nameenc.PrincipalPI(principalID), nameenc.RoleAssignmentPrincipalSI(resourceName, roleName)),
		deleteOp(nameenc.ResourceScopedPI(resourceName), nameenc.RoleAssignmentRoleSI(roleName, principalID)),
	}

	if err := r.retryTransact(ctx, func() error { return r.store.Transact(ctx, ops) }); err != nil {
		return translateStoreErr(err, "RoleAssignment", principalID)
	}
	return nil
}

// translateAssignmentCreateErr distinguishes the AlreadyExists case (the
// assignment Put already held the row) from the NotFound case (the resource
// or scope/role ConditionCheck failed), both surfaced through the same
// aborted transaction.
func translateAssignmentCreateErr(err error, entityKind, principalID, resourceName, subName string) error {
	if err == nil {
		return nil
	}

	var se *rbacstore.Error
	if errors.As(err, &se) && se.Code == rbacstore.ErrorCodeTransactionAborted {
		var cause *rbacstore.Error
		if errors.As(se.Cause, &cause) {
			switch cause.Code {
			case rbacstore.ErrorCodeAlreadyExists:
				return apierrors.NewAlreadyExists(entityKind, principalID+"/"+resourceName+"/"+subName)
			case rbacstore.ErrorCodeNotFound:
				return apierrors.NewNotFound("Resource", resourceName)
			}
		}
	}
	return translateStoreErr(err, entityKind, principalID)
}

// ListAssignmentsByPrincipal returns the (resourceName, scopeName) and
// (resourceName, roleName) pairs assigned to principalID.
func (r *Repository) ListAssignmentsByPrincipal(ctx context.Context, principalID string) ([]ScopeAssignment, []RoleAssignment, error) {
	pi := nameenc.PrincipalPI(principalID)

	scopeRows, err := drainAll(ctx, r.store.Query(ctx, pi, nameenc.ScopeAssignmentsUnderResourcePrefix()))
	if err != nil {
		return nil, nil, translateStoreErr(err, "Principal", principalID)
	}
	roleRows, err := drainAll(ctx, r.store.Query(ctx, pi, nameenc.RoleAssignmentsUnderResourcePrefix()))
	if err != nil {
		return nil, nil, translateStoreErr(err, "Principal", principalID)
	}

	var scopeAssignments []ScopeAssignment
	for _, row := range scopeRows {
		resourceName, scopeName, ok := nameenc.DecodeScopeAssignmentPrincipalSI(row.SI)
		if !ok {
			continue
		}
		scopeAssignments = append(scopeAssignments, ScopeAssignment{PrincipalID: principalID, ResourceName: resourceName, ScopeName: scopeName})
	}

	var roleAssignments []RoleAssignment
	for _, row := range roleRows {
		resourceName, roleName, ok := nameenc.DecodeRoleAssignmentPrincipalSI(row.SI)
		if !ok {
			continue
		}
		roleAssignments = append(roleAssignments, RoleAssignment{PrincipalID: principalID, ResourceName: resourceName, RoleName: roleName})
	}

	return scopeAssignments, roleAssignments, nil
}

// ListScopeAssignmentsByScope returns the principals holding scopeName on
// resourceName.
func (r *Repository) ListScopeAssignmentsByScope(ctx context.Context, resourceName, scopeName string) ([]string, error) {
	okR, resourceName := r.validator.Validate(resourceName)
	okS, scopeName := r.validator.Validate(scopeName)
	if !okR {
		return nil, apierrors.NewValidationFailed("resourceName", "invalid resource name")
	}
	if !okS {
		return nil, apierrors.NewValidationFailed("scopeName", "invalid scope name")
	}

	rows, err := drainAll(ctx, r.store.Query(ctx, nameenc.ResourceScopedPI(resourceName), nameenc.ScopeAssignmentsForScopePrefix(scopeName)))
	if err != nil {
		return nil, translateStoreErr(err, "Scope", scopeName)
	}

	principals := make([]string, 0, len(rows))
	for _, row := range rows {
		_, principalID, ok := nameenc.DecodeScopeAssignmentScopeSI(row.SI)
		if ok {
			principals = append(principals, principalID)
		}
	}
	return principals, nil
}

// ListRoleAssignmentsByRole returns the principals holding roleName on
// resourceName.
func (r *Repository) ListRoleAssignmentsByRole(ctx context.Context, resourceName, roleName string) ([]string, error) {
	okR, resourceName := r.validator.Validate(resourceName)
	okRole, roleName := r.validator.Validate(roleName)
	if !okR {
		return nil, apierrors.NewValidationFailed("resourceName", "invalid resource name")
	}
	if !okRole {
		return nil, apierrors.NewValidationFailed("roleName", "invalid role name")
	}

	rows, err := drainAll(ctx, r.store.Query(ctx, nameenc.ResourceScopedPI(resourceName), nameenc.RoleAssignmentsForRolePrefix(roleName)))
	if err != nil {
		return nil, translateStoreErr(err, "Role", roleName)
	}

	principals := make([]string, 0, len(rows))
	for _, row := range rows {
		_, principalID, ok := nameenc.DecodeRoleAssignmentRoleSI(row.SI)
		if ok {
			principals = append(principals, principalID)
		}
	}
	return principals, nil
}
