// Package memory implements the remote store contract in process. It is the
// reference implementation for adapter semantics and the backend for unit
// tests; production deployments use the postgres adapter.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"condosync/internal/remote"
	"condosync/pkg/syncerrors"
)

type subscriber struct {
	collection string
	query      remote.Query
	fn         remote.SnapshotFunc
}

// Adapter stores documents per collection guarded by one RWMutex, and fans a
// fresh snapshot out to matching subscribers after every commit.
type Adapter struct {
	mu          sync.RWMutex
	collections map[string]map[string]remote.Document
	subscribers map[int]*subscriber
	nextSub     int
	lastStamp   time.Time
}

var _ remote.Adapter = (*Adapter)(nil)
var _ remote.AtomicAdder = (*Adapter)(nil)

func New() *Adapter {
	return &Adapter{
		collections: make(map[string]map[string]remote.Document),
		subscribers: make(map[int]*subscriber),
	}
}

// stamp returns a strictly increasing server timestamp so createdAt ordering
// is total even within one clock tick. Callers hold mu.
func (a *Adapter) stamp() time.Time {
	now := time.Now().UTC()
	if !now.After(a.lastStamp) {
		now = a.lastStamp.Add(time.Microsecond)
	}
	a.lastStamp = now
	return now
}

func (a *Adapter) Get(_ context.Context, collection, id string) (remote.Document, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	doc, ok := a.collections[collection][id]
	if !ok {
		return nil, syncerrors.NotFound("%s/%s", collection, id)
	}
	return doc.Clone(), nil
}

func (a *Adapter) List(_ context.Context, collection string, q remote.Query) ([]remote.Document, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.listLocked(collection, q), nil
}

func (a *Adapter) listLocked(collection string, q remote.Query) []remote.Document {
	docs := make([]remote.Document, 0, len(a.collections[collection]))
	for _, doc := range a.collections[collection] {
		docs = append(docs, doc.Clone())
	}
	return q.Apply(docs)
}

func (a *Adapter) Create(_ context.Context, collection string, doc remote.Document) (remote.Created, error) {
	a.mu.Lock()
	stored := doc.Clone()
	id := uuid.NewString()
	createdAt := a.stamp()
	stored[remote.FieldID] = id
	stored[remote.FieldCreatedAt] = createdAt
	if a.collections[collection] == nil {
		a.collections[collection] = make(map[string]remote.Document)
	}
	a.collections[collection][id] = stored
	a.mu.Unlock()

	a.notify(collection)
	return remote.Created{ID: id, CreatedAt: createdAt}, nil
}

func (a *Adapter) Update(_ context.Context, collection, id string, patch remote.Document) error {
	a.mu.Lock()
	doc, ok := a.collections[collection][id]
	if !ok {
		a.mu.Unlock()
		return syncerrors.NotFound("%s/%s", collection, id)
	}
	updated := doc.Clone().Merge(patch.Clone())
	updated[remote.FieldID] = id
	updated[remote.FieldCreatedAt] = doc[remote.FieldCreatedAt]
	updated[remote.FieldUpdatedAt] = a.stamp()
	a.collections[collection][id] = updated
	a.mu.Unlock()

	a.notify(collection)
	return nil
}

// Delete is idempotent: an absent id is not an error.
func (a *Adapter) Delete(_ context.Context, collection, id string) error {
	a.mu.Lock()
	_, existed := a.collections[collection][id]
	delete(a.collections[collection], id)
	a.mu.Unlock()

	if existed {
		a.notify(collection)
	}
	return nil
}

func (a *Adapter) Subscribe(_ context.Context, collection string, q remote.Query, fn remote.SnapshotFunc) (remote.CancelFunc, error) {
	a.mu.Lock()
	key := a.nextSub
	a.nextSub++
	a.subscribers[key] = &subscriber{collection: collection, query: q, fn: fn}
	initial := a.listLocked(collection, q)
	a.mu.Unlock()

	// Initial snapshot delivers current truth before any commit.
	fn(initial)

	return func() {
		a.mu.Lock()
		delete(a.subscribers, key)
		a.mu.Unlock()
	}, nil
}

// AddToSetAndCount appends member and sets the counter to the set's new
// cardinality in one commit. Returns false without change when member is
// already present.
func (a *Adapter) AddToSetAndCount(_ context.Context, collection, id, setField, counterField, member string) (bool, error) {
	return a.mutateSet(collection, id, setField, counterField, member, true)
}

// RemoveFromSetAndCount removes member, keeping the counter equal to the set
// size. Returns false without change when member is absent.
func (a *Adapter) RemoveFromSetAndCount(_ context.Context, collection, id, setField, counterField, member string) (bool, error) {
	return a.mutateSet(collection, id, setField, counterField, member, false)
}

func (a *Adapter) mutateSet(collection, id, setField, counterField, member string, add bool) (bool, error) {
	a.mu.Lock()
	doc, ok := a.collections[collection][id]
	if !ok {
		a.mu.Unlock()
		return false, syncerrors.NotFound("%s/%s", collection, id)
	}
	set := doc.StringSlice(setField)
	present := false
	for _, m := range set {
		if m == member {
			present = true
			break
		}
	}
	if add == present {
		a.mu.Unlock()
		return false, nil
	}
	if add {
		set = append(set, member)
	} else {
		kept := set[:0]
		for _, m := range set {
			if m != member {
				kept = append(kept, m)
			}
		}
		set = kept
	}
	updated := doc.Clone()
	updated[setField] = set
	updated[counterField] = len(set)
	updated[remote.FieldUpdatedAt] = a.stamp()
	a.collections[collection][id] = updated
	a.mu.Unlock()

	a.notify(collection)
	return true, nil
}

func (a *Adapter) notify(collection string) {
	a.mu.RLock()
	type delivery struct {
		fn   remote.SnapshotFunc
		docs []remote.Document
	}
	var pending []delivery
	for _, sub := range a.subscribers {
		if sub.collection == collection {
			pending = append(pending, delivery{sub.fn, a.listLocked(collection, sub.query)})
		}
	}
	a.mu.RUnlock()

	for _, d := range pending {
		d.fn(d.docs)
	}
}

