// Package remote declares the contract the sync layer expects from the
// authoritative document store. The store itself is an external collaborator;
// this package owns only the interface and the Document codec.
package remote

import (
	"context"
	"time"
)

// Field names every collection shares. Adapters assign ID and CreatedAt on
// create; both are immutable afterwards.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldCreatedBy = "createdBy"
)

// Condition is a single equality or comparison filter.
type Condition struct {
	Field string
	Op    string // "==", "<", "<=", ">", ">=", "array-contains"
	Value any
}

// Query narrows and orders a List or Subscribe.
type Query struct {
	Where   []Condition
	OrderBy string
	Desc    bool
	Limit   int
}

// Created reports the server-assigned identity of a new document.
type Created struct {
	ID        string
	CreatedAt time.Time
}

// SnapshotFunc receives the full matching document set each time it changes.
// Consumers replace their local state wholesale with each delivery.
type SnapshotFunc func(docs []Document)

// CancelFunc tears down a subscription. Safe to call more than once.
type CancelFunc func()

// Adapter is the keyed collection store the sync layer runs against.
//
// Error contract: Get and Update return a syncerrors KindNotFound error for an
// absent id; Delete of an absent id is a no-op; every other failure is
// KindTransport (or KindPermission when the store rejects the caller).
type Adapter interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string, q Query) ([]Document, error)
	Create(ctx context.Context, collection string, doc Document) (Created, error)
	Update(ctx context.Context, collection, id string, patch Document) error
	Delete(ctx context.Context, collection, id string) error
	Subscribe(ctx context.Context, collection string, q Query, fn SnapshotFunc) (CancelFunc, error)
}

// AtomicAdder is an optional adapter capability: append a member to a set
// field and keep its counter equal to the set's cardinality in one server-side
// operation. The dedup ledger prefers this over read-then-write when offered.
type AtomicAdder interface {
	// AddToSetAndCount returns false with no change when member is already
	// present.
	AddToSetAndCount(ctx context.Context, collection, id, setField, counterField, member string) (bool, error)
	// RemoveFromSetAndCount returns false with no change when member is
	// absent.
	RemoveFromSetAndCount(ctx context.Context, collection, id, setField, counterField, member string) (bool, error)
}
