// Package fake provides an in-memory rbacstore.Adapter used by repository
// unit tests in place of a live DynamoDB table. It enforces the same
// conditional-write, transaction-atomicity, and pagination semantics as the
// real adapter so that tests exercise the invariants in spec §5 and §8, not a
// simplified stand-in.
package fake

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/coreiam/rbac-authzd/pkg/rbacstore"
)

type key struct{ pi, si string }

// Store is a thread-safe in-memory implementation of rbacstore.Adapter.
type Store struct {
	mu    sync.Mutex
	items map[key]rbacstore.Item
}

// New creates an empty fake store.
func New() *Store {
	return &Store{items: make(map[key]rbacstore.Item)}
}

func (s *Store) Get(_ context.Context, pi, si string) (*rbacstore.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key{pi, si}]
	if !ok {
		return nil, nil
	}
	cp := item
	cp.Attributes = maps.Clone(item.Attributes)
	return &cp, nil
}

func (s *Store) Put(_ context.Context, item rbacstore.Item, cond rbacstore.Condition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.putLocked(item, cond)
}

func (s *Store) putLocked(item rbacstore.Item, cond rbacstore.Condition) error {
	k := key{item.PI, item.SI}
	_, exists := s.items[k]

	switch cond {
	case rbacstore.ConditionMustNotExist:
		if exists {
			return &rbacstore.Error{Code: rbacstore.ErrorCodeAlreadyExists}
		}
	case rbacstore.ConditionMustExist:
		if !exists {
			return &rbacstore.Error{Code: rbacstore.ErrorCodeNotFound}
		}
	case rbacstore.ConditionAny:
	}

	cp := item
	cp.Attributes = maps.Clone(item.Attributes)
	s.items[k] = cp
	return nil
}

func (s *Store) deleteLocked(pi, si string) {
	delete(s.items, key{pi, si})
}

func (s *Store) checkLocked(pi, si string, cond rbacstore.Condition) error {
	_, exists := s.items[key{pi, si}]
	switch cond {
	case rbacstore.ConditionMustExist:
		if !exists {
			return &rbacstore.Error{Code: rbacstore.ErrorCodeNotFound}
		}
	case rbacstore.ConditionMustNotExist:
		if exists {
			return &rbacstore.Error{Code: rbacstore.ErrorCodeAlreadyExists}
		}
	case rbacstore.ConditionAny:
	}
	return nil
}

func (s *Store) Transact(_ context.Context, ops []rbacstore.TransactOp) error {
	if len(ops) > rbacstore.MaxTransactItems {
		return &rbacstore.Error{Code: rbacstore.ErrorCodeTransactionTooLarge}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every condition before mutating anything, so the transaction
	// is all-or-nothing (spec §4.2, §5 I3).
	for _, op := range ops {
		switch op.Kind {
		case rbacstore.TransactPut:
			if _, exists := s.items[key{op.Item.PI, op.Item.SI}]; op.Condition == rbacstore.ConditionMustNotExist && exists {
				return &rbacstore.Error{Code: rbacstore.ErrorCodeTransactionAborted,
					Cause: &rbacstore.Error{Code: rbacstore.ErrorCodeAlreadyExists}}
			}
			if op.Condition == rbacstore.ConditionMustExist {
				if _, exists := s.items[key{op.Item.PI, op.Item.SI}]; !exists {
					return &rbacstore.Error{Code: rbacstore.ErrorCodeTransactionAborted,
						Cause: &rbacstore.Error{Code: rbacstore.ErrorCodeNotFound}}
				}
			}
		case rbacstore.TransactConditionCheck:
			if err := s.checkLocked(op.PI, op.SI, op.Condition); err != nil {
				return &rbacstore.Error{Code: rbacstore.ErrorCodeTransactionAborted, Cause: err}
			}
		case rbacstore.TransactDelete:
			// Unconditional; tolerates a missing item (spec §4.3).
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case rbacstore.TransactPut:
			_ = s.putLocked(op.Item, rbacstore.ConditionAny)
		case rbacstore.TransactDelete:
			s.deleteLocked(op.PI, op.SI)
		case rbacstore.TransactConditionCheck:
			// No mutation.
		}
	}

	return nil
}

func (s *Store) Query(_ context.Context, pi, siPrefix string) rbacstore.QueryPaginator {
	s.mu.Lock()
	var matched []rbacstore.Item
	for k, item := range s.items {
		if k.pi == pi && strings.HasPrefix(k.si, siPrefix) {
			cp := item
			cp.Attributes = maps.Clone(item.Attributes)
			matched = append(matched, cp)
		}
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].SI < matched[j].SI })

	return &pager{items: matched}
}

type pager struct {
	items []rbacstore.Item
	done  bool
}

func (p *pager) HasMorePages() bool { return !p.done }

func (p *pager) NextPage(_ context.Context) ([]rbacstore.Item, error) {
	p.done = true
	return p.items, nil
}

// Len reports the number of items currently stored, for tests asserting on
// cascade completeness (spec §8 P3).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// CountReferencing returns the number of items whose PI or SI contains the
// given substring, for tests
// asserting "zero items whose SI or PI references r" (spec §8 P3).
func (s *Store) CountReferencing(substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.items {
		if strings.Contains(k.pi, substr) || strings.Contains(k.si, substr) {
			n++
		}
	}
	return n
}
