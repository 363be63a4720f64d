package rbac

import (
	"errors"

	"github.com/coreiam/rbac-authzd/pkg/apierrors"
	"github.com/coreiam/rbac-authzd/pkg/rbacstore"
)

// translateStoreErr maps a store-adapter error onto the repository-boundary
// taxonomy. entityKind/identity populate NotFound/AlreadyExists; conflict
// distinguishes a concurrent-writer abort (409) from any other cause (503).
func translateStoreErr(err error, entityKind, identity string) error {
	if err == nil {
		return nil
	}

	var se *rbacstore.Error
	if !errors.As(err, &se) {
		return apierrors.NewInternal(err)
	}

	switch se.Code {
	case rbacstore.ErrorCodeNotFound:
		return apierrors.NewNotFound(entityKind, identity)
	case rbacstore.ErrorCodeAlreadyExists:
		return apierrors.NewAlreadyExists(entityKind, identity)
	case rbacstore.ErrorCodeTransactionAborted:
		return apierrors.NewTransactionAborted(se, isConflictCause(se))
	case rbacstore.ErrorCodeTransactionTooLarge:
		return apierrors.NewInternal(se)
	case rbacstore.ErrorCodeUnavailable:
		return apierrors.NewTransactionAborted(se, false)
	default:
		return apierrors.NewInternal(se)
	}
}

// isConflictCause reports whether a TransactionAborted error was caused by a
// condition-check failure (a concurrent writer winning the race) as opposed
// to an infrastructure failure, which maps to 409 vs 503 (spec §7).
func isConflictCause(se *rbacstore.Error) bool {
	var cause *rbacstore.Error
	if errors.As(se.Cause, &cause) {
		return cause.Code == rbacstore.ErrorCodeAlreadyExists || cause.Code == rbacstore.ErrorCodeNotFound
	}
	return false
}
