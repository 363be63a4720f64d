package rbac

import (
	"context"

	"github.com/coreiam/rbac-authzd/pkg/rbacstore"
)

// execBatches splits ops into chunks of at most rbacstore.MaxTransactItems
// and commits each chunk in its own Transact call, retrying
// TransactionAborted per chunk. Batches run in slice order, which callers
// use to satisfy the "parent row deleted last" rule (spec §4.3, §5): an
// interrupted cascade leaves the parent addressable for a retried Delete.
func (r *Repository) execBatches(ctx context.Context, ops []rbacstore.TransactOp) error {
	for start := 0; start < len(ops); start += rbacstore.MaxTransactItems {
		end := min(start+rbacstore.MaxTransactItems, len(ops))
		batch := ops[start:end]

		if err := r.retryTransact(ctx, func() error {
			return r.store.Transact(ctx, batch)
		}); err != nil {
			return translateStoreErr(err, "", "")
		}
	}
	return nil
}

// deleteOp builds an unconditional Delete op, tolerant of a missing item
// (spec §4.3 "the missing-side delete is tolerated").
func deleteOp(pi, si string) rbacstore.TransactOp {
	return rbacstore.TransactOp{Kind: rbacstore.TransactDelete, PI: pi, SI: si}
}

// drainAll exhausts a QueryPaginator into a single slice. RBAC tables are
// small enough per resource/principal that this is safe; the paginator
// abstraction exists for store implementations, not for bounding memory
// here.
func drainAll(ctx context.Context, p rbacstore.QueryPaginator) ([]rbacstore.Item, error) {
	var all []rbacstore.Item
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
	}
	return all, nil
}
