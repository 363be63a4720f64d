package rbac

import (
	"context"

	"github.com/coreiam/rbac-authzd/pkg/nameenc"
	"github.com/coreiam/rbac-authzd/pkg/rbacstore"
)

// DeletePrincipal removes every assignment referencing principalID, both
// mirror rows of each. There is no principal row to delete; a principal
// with no assignments is a no-op success (spec §4.3).
func (r *Repository) DeletePrincipal(ctx context.Context, principalID string) error {
	pi := nameenc.PrincipalPI(principalID)

	scopeRows, err := drainAll(ctx, r.store.Query(ctx, pi, nameenc.ScopeAssignmentsUnderResourcePrefix()))
	if err != nil {
		return translateStoreErr(err, "Principal", principalID)
	}
	roleRows, err := drainAll(ctx, r.store.Query(ctx, pi, nameenc.RoleAssignmentsUnderResourcePrefix()))
	if err != nil {
		return translateStoreErr(err, "Principal", principalID)
	}

	var ops []rbacstore.TransactOp
	for _, row := range scopeRows {
		resourceName, scopeName, ok := nameenc.DecodeScopeAssignmentPrincipalSI(row.SI)
		if !ok {
			continue
		}
		ops = append(ops,
			deleteOp(pi, row.SI),
			deleteOp(nameenc.ResourceScopedPI(resourceName), nameenc.ScopeAssignmentScopeSI(scopeName, principalID)),
		)
	}
	for _, row := range roleRows {
		resourceName, roleName, ok := nameenc.DecodeRoleAssignmentPrincipalSI(row.SI)
		if !ok {
			continue
		}
		ops = append(ops,
			deleteOp(pi, row.SI),
			deleteOp(nameenc.ResourceScopedPI(resourceName), nameenc.RoleAssignmentRoleSI(roleName, principalID)),
		)
	}

	if len(ops) == 0 {
		return nil
	}
	return r.execBatches(ctx, ops)
}
