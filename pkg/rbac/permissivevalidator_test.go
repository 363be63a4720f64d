package rbac_test

import "strings"

// permissiveValidator accepts any non-empty name that doesn't contain the
// nameenc compound separator, standing in for the external name-grammar
// validators this package only depends on through an interface.
type permissiveValidator struct{}

func (permissiveValidator) Validate(name string) (bool, string) {
	if name == "" || strings.Contains(name, "##") {
		return false, ""
	}
	return true, name
}
