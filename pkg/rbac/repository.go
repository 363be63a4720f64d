package rbac

import (
	"github.com/coreiam/rbac-authzd/pkg/rbacstore"
)

// Repository is the RBAC authorization engine (spec §4.3): it owns all CRUD
// on resources, scopes, roles, and assignments, and the principal-access
// query.
type Repository struct {
	store      rbacstore.Adapter
	validator  NameValidator
	maxRetries uint
}

// Option configures a Repository.
type Option func(*Repository)

// WithMaxTransactRetries overrides the default retry budget for
// TransactionAborted store errors.
func WithMaxTransactRetries(n uint) Option {
	return func(r *Repository) { r.maxRetries = n }
}

// New builds a Repository over store, validating every identifier with
// validator before it touches the store.
func New(store rbacstore.Adapter, validator NameValidator, opts ...Option) *Repository {
	r := &Repository{store: store, validator: validator, maxRetries: defaultMaxTransactRetries}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
