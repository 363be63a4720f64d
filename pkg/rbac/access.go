package rbac

import (
	"context"
	"sort"

	"github.com/coreiam/rbac-authzd/pkg/apierrors"
	"github.com/coreiam/rbac-authzd/pkg/nameenc"
)

// GetAccess is the central authorization algorithm (spec §4.4): given a
// principal, a resource, and an optional scope filter, it returns the
// scopes and roles the principal holds, gated by the rule that a role
// assignment alone grants nothing -- the principal must also hold at least
// one scope on the resource. scopeName may be empty (no filter) or the
// reserved literal DefaultScope (equivalent to no filter); any other value
// is treated as a specific scope to check membership against.
func (r *Repository) GetAccess(ctx context.Context, principalID, resourceName, scopeName string) (*Access, error) {
	okR, resourceName := r.validator.Validate(resourceName)
	if !okR {
		return nil, apierrors.NewValidationFailed("resourceName", "invalid resource name")
	}

	resourceItem, err := r.store.Get(ctx, nameenc.ResourcePI(), nameenc.ResourceSI(resourceName))
	if err != nil {
		return nil, translateStoreErr(err, "Resource", resourceName)
	}
	if resourceItem == nil {
		return nil, apierrors.NewNotFound("Resource", resourceName)
	}

	filterScope := scopeName != "" && scopeName != DefaultScope
	if filterScope {
		okS, normalizedScope := r.validator.Validate(scopeName)
		if !okS {
			return nil, apierrors.NewValidationFailed("scopeName", "invalid scope name")
		}
		scopeName = normalizedScope

		scopeItem, err := r.store.Get(ctx, nameenc.ResourceScopedPI(resourceName), nameenc.ScopeSI(scopeName))
		if err != nil {
			return nil, translateStoreErr(err, "Scope", scopeName)
		}
		if scopeItem == nil {
			return nil, apierrors.NewNotFound("Scope", scopeName)
		}
	}

	pi := nameenc.PrincipalPI(principalID)

	scopeRows, err := drainAll(ctx, r.store.Query(ctx, pi, nameenc.ScopeAssignmentsForPrincipalResourcePrefix(resourceName)))
	if err != nil {
		return nil, translateStoreErr(err, "Principal", principalID)
	}

	heldScopes := make(map[string]struct{}, len(scopeRows))
	for _, row := range scopeRows {
		_, s, ok := nameenc.DecodeScopeAssignmentPrincipalSI(row.SI)
		if ok {
			heldScopes[s] = struct{}{}
		}
	}

	// Scope-gating rule: zero scope assignments means zero roles,
	// regardless of any role assignments the principal holds (spec §4.4
	// step 5, property P2).
	if len(heldScopes) == 0 {
		return &Access{ResourceName: resourceName, Scopes: []string{}, Roles: []string{}}, nil
	}

	if filterScope {
		if _, held := heldScopes[scopeName]; !held {
			return &Access{ResourceName: resourceName, Scopes: []string{}, Roles: []string{}}, nil
		}
	}

	roleRows, err := drainAll(ctx, r.store.Query(ctx, pi, nameenc.RoleAssignmentsForPrincipalResourcePrefix(resourceName)))
	if err != nil {
		return nil, translateStoreErr(err, "Principal", principalID)
	}

	roles := make([]string, 0, len(roleRows))
	for _, row := range roleRows {
		_, roleName, ok := nameenc.DecodeRoleAssignmentPrincipalSI(row.SI)
		if ok {
			roles = append(roles, roleName)
		}
	}
	sort.Strings(roles)

	var scopes []string
	if filterScope {
		scopes = []string{scopeName}
	} else {
		scopes = make([]string, 0, len(heldScopes))
		for s := range heldScopes {
			scopes = append(scopes, s)
		}
		sort.Strings(scopes)
	}

	return &Access{ResourceName: resourceName, Scopes: scopes, Roles: roles}, nil
}
