// Package rbac implements the RBAC authorization engine: CRUD over
// resources, scopes, roles, and their assignments to principals, plus the
// principal-access query that is the system's sole authorization decision
// point. Name-grammar validation, AWS wiring, and HTTP transport are all
// external collaborators.
package rbac

// NameValidator checks a candidate identifier (resource, scope, or role
// name) against an external grammar and returns its normalized form. A
// validator implementation lives outside this package; rbac only depends on
// this interface.
type NameValidator interface {
	Validate(name string) (ok bool, normalized string)
}
