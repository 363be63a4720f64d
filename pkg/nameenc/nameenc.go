// Package nameenc implements the canonical marker-prefix encoding of
// composite partition/sort keys described in spec §4.1. It is a pure,
// allocation-light string encoder: it performs no I/O and does not validate
// that field values are well-formed names (that is the external name
// validators' job per spec §4.3) -- it only assumes valid names never
// contain the "##" compound separator.
//
// Encoding is total and injective over valid inputs: distinct logical
// identifiers always produce distinct (PI, SI) pairs, and every encoded
// string can be decoded back to the exact fields it was built from.
package nameenc

import "strings"

// Marker prefixes separate fields within a partition or sort identifier.
const (
	MarkerResource        = "RESOURCE#"
	MarkerScope           = "SCOPE#"
	MarkerRole            = "ROLE#"
	MarkerPrincipal       = "PRINCIPAL#"
	MarkerScopeAssignment = "SCOPEASSIGNMENT#"
	MarkerRoleAssignment  = "ROLEASSIGNMENT#"
)

// sep is the fixed double-separator joining fragments of a compound sort
// identifier. It cannot appear in a valid field value, so splitting on it is
// unambiguous.
const sep = "##"

// ResourcePI is the fixed partition identifier all Resource items share.
func ResourcePI() string { return MarkerResource }

// ResourceSI builds the sort identifier for a Resource item.
func ResourceSI(resourceName string) string { return MarkerResource + resourceName }

// DecodeResourceSI extracts the resource name from a Resource sort identifier.
func DecodeResourceSI(si string) (resourceName string, ok bool) {
	if !strings.HasPrefix(si, MarkerResource) {
		return "", false
	}
	return strings.TrimPrefix(si, MarkerResource), true
}

// ResourceScopedPI is the partition identifier shared by Scopes, Roles, and
// the resource-anchored (scope/role view) halves of assignments -- every
// item that lives "under" a given resource.
func ResourceScopedPI(resourceName string) string { return MarkerResource + resourceName }

// ScopeSI builds the sort identifier for a Scope item.
func ScopeSI(scopeName string) string { return MarkerScope + scopeName }

// DecodeScopeSI extracts the scope name from a Scope sort identifier.
func DecodeScopeSI(si string) (scopeName string, ok bool) {
	if !strings.HasPrefix(si, MarkerScope) {
		return "", false
	}
	return strings.TrimPrefix(si, MarkerScope), true
}

// RoleSI builds the sort identifier for a Role item.
func RoleSI(roleName string) string { return MarkerRole + roleName }

// DecodeRoleSI extracts the role name from a Role sort identifier.
func DecodeRoleSI(si string) (roleName string, ok bool) {
	if !strings.HasPrefix(si, MarkerRole) {
		return "", false
	}
	return strings.TrimPrefix(si, MarkerRole), true
}

// PrincipalPI builds the partition identifier anchoring all items owned by a
// principal (its scope- and role-assignment principal-view rows).
func PrincipalPI(principalID string) string { return MarkerPrincipal + principalID }

// ScopeAssignmentPrincipalSI builds the sort identifier for the
// principal-anchored view of a ScopeAssignment.
func ScopeAssignmentPrincipalSI(resourceName, scopeName string) string {
	return MarkerScopeAssignment + sep + MarkerResource + resourceName + sep + MarkerScope + scopeName
}

// DecodeScopeAssignmentPrincipalSI extracts (resourceName, scopeName) from a
// principal-anchored ScopeAssignment sort identifier.
func DecodeScopeAssignmentPrincipalSI(si string) (resourceName, scopeName string, ok bool) {
	prefix := MarkerScopeAssignment + sep + MarkerResource
	if !strings.HasPrefix(si, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(si, prefix)
	parts := strings.SplitN(rest, sep+MarkerScope, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// ScopeAssignmentScopeSI builds the sort identifier for the
// scope-anchored (resource-partitioned) view of a ScopeAssignment.
func ScopeAssignmentScopeSI(scopeName, principalID string) string {
	return MarkerScopeAssignment + sep + MarkerScope + scopeName + sep + MarkerPrincipal + principalID
}

// DecodeScopeAssignmentScopeSI extracts (scopeName, principalID) from a
// scope-anchored ScopeAssignment sort identifier.
func DecodeScopeAssignmentScopeSI(si string) (scopeName, principalID string, ok bool) {
	prefix := MarkerScopeAssignment + sep + MarkerScope
	if !strings.HasPrefix(si, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(si, prefix)
	parts := strings.SplitN(rest, sep+MarkerPrincipal, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// RoleAssignmentPrincipalSI builds the sort identifier for the
// principal-anchored view of a RoleAssignment.
func RoleAssignmentPrincipalSI(resourceName, roleName string) string {
	return MarkerRoleAssignment + sep + MarkerResource + resourceName + sep + MarkerRole + roleName
}

// DecodeRoleAssignmentPrincipalSI extracts (resourceName, roleName) from a
// principal-anchored RoleAssignment sort identifier.
func DecodeRoleAssignmentPrincipalSI(si string) (resourceName, roleName string, ok bool) {
	prefix := MarkerRoleAssignment + sep + MarkerResource
	if !strings.HasPrefix(si, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(si, prefix)
	parts := strings.SplitN(rest, sep+MarkerRole, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// RoleAssignmentRoleSI builds the sort identifier for the role-anchored
// (resource-partitioned) view of a RoleAssignment.
func RoleAssignmentRoleSI(roleName, principalID string) string {
	return MarkerRoleAssignment + sep + MarkerRole + roleName + sep + MarkerPrincipal + principalID
}

// DecodeRoleAssignmentRoleSI extracts (roleName, principalID) from a
// role-anchored RoleAssignment sort identifier.
func DecodeRoleAssignmentRoleSI(si string) (roleName, principalID string, ok bool) {
	prefix := MarkerRoleAssignment + sep + MarkerRole
	if !strings.HasPrefix(si, prefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(si, prefix)
	parts := strings.SplitN(rest, sep+MarkerPrincipal, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// Prefix generators for range queries (spec §4.1, "all items under resource
// X with SI starting with ...").

// ScopePrefix matches all Scope items under a resource's PI.
func ScopePrefix() string { return MarkerScope }

// RolePrefix matches all Role items under a resource's PI.
func RolePrefix() string { return MarkerRole }

// ScopeAssignmentsUnderResourcePrefix matches every scope-anchored
// ScopeAssignment view row under a resource's PI, across all scopes. The
// same prefix also matches every principal-anchored ScopeAssignment row
// under a PRINCIPAL# PI, across all resources -- used by the Principal.Delete
// cascade (spec §4.3) to enumerate everything a principal holds.
func ScopeAssignmentsUnderResourcePrefix() string { return MarkerScopeAssignment + sep }

// ScopeAssignmentsForScopePrefix matches scope-anchored ScopeAssignment view
// rows under a resource's PI for one specific scope (used when deleting a
// single scope, as opposed to the whole resource).
func ScopeAssignmentsForScopePrefix(scopeName string) string {
	return MarkerScopeAssignment + sep + MarkerScope + scopeName + sep
}

// RoleAssignmentsUnderResourcePrefix matches every role-anchored
// RoleAssignment view row under a resource's PI, across all roles. The same
// prefix also matches every principal-anchored RoleAssignment row under a
// PRINCIPAL# PI, across all resources.
func RoleAssignmentsUnderResourcePrefix() string { return MarkerRoleAssignment + sep }

// RoleAssignmentsForRolePrefix matches role-anchored RoleAssignment view rows
// under a resource's PI for one specific role.
func RoleAssignmentsForRolePrefix(roleName string) string {
	return MarkerRoleAssignment + sep + MarkerRole + roleName + sep
}

// ScopeAssignmentsForPrincipalResourcePrefix matches principal-anchored
// ScopeAssignment rows for one principal, scoped to one resource -- used by
// the principal-access query (spec §4.4 step 3).
func ScopeAssignmentsForPrincipalResourcePrefix(resourceName string) string {
	return MarkerScopeAssignment + sep + MarkerResource + resourceName + sep
}

// RoleAssignmentsForPrincipalResourcePrefix matches principal-anchored
// RoleAssignment rows for one principal, scoped to one resource -- used by
// the principal-access query (spec §4.4 step 4).
func RoleAssignmentsForPrincipalResourcePrefix(resourceName string) string {
	return MarkerRoleAssignment + sep + MarkerResource + resourceName + sep
}

