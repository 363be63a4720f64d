package rbac

import (
	"context"

	"github.com/coreiam/rbac-authzd/pkg/apierrors"
	"github.com/coreiam/rbac-authzd/pkg/nameenc"
	"github.com/coreiam/rbac-authzd/pkg/rbacstore"
)

// CreateScope creates a scope under resourceName. The parent resource must
// exist; this is enforced with a ConditionCheck inside the same transaction
// as the Put, so the two checks are atomic (spec §4.3).
func (r *Repository) CreateScope(ctx context.Context, resourceName, scopeName string) error {
	okR, resourceName := r.validator.Validate(resourceName)
	okS, scopeName := r.validator.Validate(scopeName)
	if !okR {
		return apierrors.NewValidationFailed("resourceName", "invalid resource name")
	}
	if !okS {
		return apierrors.NewValidationFailed("scopeName", "invalid scope name")
	}
	if scopeName == DefaultScope {
		return apierrors.NewValidationFailed("scopeName", "\".default\" is reserved and cannot be created")
	}

	resourcePI := nameenc.ResourceScopedPI(resourceName)
	ops := []rbacstore.TransactOp{
		{Kind: rbacstore.TransactConditionCheck, PI: nameenc.ResourcePI(), SI: nameenc.ResourceSI(resourceName), Condition: rbacstore.ConditionMustExist},
		{Kind: rbacstore.TransactPut, Item: rbacstore.Item{PI: resourcePI, SI: nameenc.ScopeSI(scopeName)}, Condition: rbacstore.ConditionMustNotExist},
	}

	if err := r.retryTransact(ctx, func() error { return r.store.Transact(ctx, ops) }); err != nil {
		return translateStoreErr(err, "Scope", scopeName)
	}
	return nil
}

// GetScope returns the scope, or (nil, nil) if it does not exist.
func (r *Repository) GetScope(ctx context.Context, resourceName, scopeName string) (*Scope, error) {
	okR, resourceName := r.validator.Validate(resourceName)
	okS, scopeName := r.validator.Validate(scopeName)
	if !okR {
		return nil, apierrors.NewValidationFailed("resourceName", "invalid resource name")
	}
	if !okS {
		return nil, apierrors.NewValidationFailed("scopeName", "invalid scope name")
	}

	item, err := r.store.Get(ctx, nameenc.ResourceScopedPI(resourceName), nameenc.ScopeSI(scopeName))
	if err != nil {
		return nil, translateStoreErr(err, "Scope", scopeName)
	}
	if item == nil {
		return nil, nil
	}
	return &Scope{ResourceName: resourceName, ScopeName: scopeName}, nil
}

// DeleteScope cascades to every ScopeAssignment of this scope (both mirror
// rows) before removing the scope row itself.
func (r *Repository) DeleteScope(ctx context.Context, resourceName, scopeName string) error {
	okR, resourceName := r.validator.Validate(resourceName)
	okS, scopeName := r.validator.Validate(scopeName)
	if !okR {
		return apierrors.NewValidationFailed("resourceName", "invalid resource name")
	}
	if !okS {
		return apierrors.NewValidationFailed("scopeName", "invalid scope name")
	}

	resourcePI := nameenc.ResourceScopedPI(resourceName)
	rows, err := drainAll(ctx, r.store.Query(ctx, resourcePI, nameenc.ScopeAssignmentsForScopePrefix(scopeName)))
	if err != nil {
		return translateStoreErr(err, "Scope", scopeName)
	}

	var ops []rbacstore.TransactOp
	for _, row := range rows {
		_, principalID, ok := nameenc.DecodeScopeAssignmentScopeSI(row.SI)
		if !ok {
			continue
		}
		ops = append(ops,
			deleteOp(resourcePI, row.SI),
			deleteOp(nameenc.PrincipalPI(principalID), nameenc.ScopeAssignmentPrincipalSI(resourceName, scopeName)),
		)
	}
	ops = append(ops, deleteOp(resourcePI, nameenc.ScopeSI(scopeName)))

	return r.execBatches(ctx, ops)
}
