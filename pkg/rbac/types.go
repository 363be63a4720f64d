package rbac

// DefaultScope is the reserved query-time sentinel meaning "every scope the
// principal currently holds on the resource." It can never be created as a
// real scope name (spec §3 I5).
const DefaultScope = ".default"

// Resource is a protected audience identified by an api:// URI.
type Resource struct {
	ResourceName string
}

// Scope is a named authorization boundary under a resource.
type Scope struct {
	ResourceName string
	ScopeName    string
}

// Role is a named permission set under a resource.
type Role struct {
	ResourceName string
	RoleName     string
}

// ScopeAssignment binds a principal to a scope within a resource.
type ScopeAssignment struct {
	PrincipalID  string
	ResourceName string
	ScopeName    string
}

// RoleAssignment binds a principal to a role within a resource.
type RoleAssignment struct {
	PrincipalID  string
	ResourceName string
	RoleName     string
}

// Access is the result of a principal-access query (§4.4): the scopes and
// roles a principal holds on a resource, already sorted ascending by name.
type Access struct {
	ResourceName string
	Scopes       []string
	Roles        []string
}
