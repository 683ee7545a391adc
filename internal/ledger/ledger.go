// Package ledger makes per-user exactly-once actions safe against repeated
// taps and duplicate event delivery. Two primitives: Membership guards
// set-plus-counter fields on entities, Emission guards side-effect creation
// (one notification per logical event).
//
// The underlying read-then-write is not atomic from the client's point of
// view, so every operation is coalesced with singleflight: duplicate
// in-flight attempts for the same (entity, user, field) share one round-trip.
// When the adapter offers AtomicAdder the mutation is additionally pushed
// down as a single server-side operation.
package ledger

import (
	"context"
	"strings"

	"golang.org/x/sync/singleflight"

	"condosync/internal/platform/metrics"
	"condosync/internal/remote"
	"condosync/pkg/syncerrors"
)

// Result reports what a membership operation did and the confirmed document
// afterwards, so callers can reconcile their cache without a refetch.
type Result struct {
	Changed bool
	Doc     remote.Document
}

// Membership applies dedup-gated set mutations against one adapter.
type Membership struct {
	adapter remote.Adapter
	metrics *metrics.Metrics
	group   singleflight.Group
}

func NewMembership(adapter remote.Adapter, m *metrics.Metrics) *Membership {
	return &Membership{adapter: adapter, metrics: m}
}

// Add appends userID to the entity's set field and keeps the counter equal
// to the set's cardinality. A second call for the same user is a no-op
// returning the unchanged state.
func (m *Membership) Add(ctx context.Context, collection, id, setField, counterField, userID string) (Result, error) {
	return m.mutate(ctx, collection, id, setField, counterField, userID, true)
}

// Remove is the inverse of Add, used for attendance cancellation and unlike.
func (m *Membership) Remove(ctx context.Context, collection, id, setField, counterField, userID string) (Result, error) {
	return m.mutate(ctx, collection, id, setField, counterField, userID, false)
}

func (m *Membership) mutate(ctx context.Context, collection, id, setField, counterField, userID string, add bool) (Result, error) {
	if userID == "" {
		return Result{}, syncerrors.Validation("acting user id is required")
	}
	op := "remove"
	if add {
		op = "add"
	}
	key := strings.Join([]string{collection, id, setField, userID, op}, "\x00")

	v, err, _ := m.group.Do(key, func() (any, error) {
		return m.mutateOnce(ctx, collection, id, setField, counterField, userID, add)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (m *Membership) mutateOnce(ctx context.Context, collection, id, setField, counterField, userID string, add bool) (Result, error) {
	if atomic, ok := m.adapter.(remote.AtomicAdder); ok {
		var changed bool
		var err error
		if add {
			changed, err = atomic.AddToSetAndCount(ctx, collection, id, setField, counterField, userID)
		} else {
			changed, err = atomic.RemoveFromSetAndCount(ctx, collection, id, setField, counterField, userID)
		}
		if err != nil {
			return Result{}, err
		}
		if !changed {
			m.suppressed(collection, setField)
		}
		doc, err := m.adapter.Get(ctx, collection, id)
		if err != nil {
			return Result{}, err
		}
		return Result{Changed: changed, Doc: doc}, nil
	}

	doc, err := m.adapter.Get(ctx, collection, id)
	if err != nil {
		return Result{}, err
	}
	members := doc.StringSlice(setField)
	present := doc.HasMember(setField, userID)
	if add == present {
		m.suppressed(collection, setField)
		return Result{Changed: false, Doc: doc}, nil
	}
	if add {
		members = append(members, userID)
	} else {
		kept := members[:0]
		for _, member := range members {
			if member != userID {
				kept = append(kept, member)
			}
		}
		members = kept
	}

	// Set and counter travel in one patch; the counter is derived from the
	// new set so it can never drift from the cardinality.
	patch := remote.Document{setField: members, counterField: len(members)}
	if err := m.adapter.Update(ctx, collection, id, patch); err != nil {
		return Result{}, err
	}
	confirmed, err := m.adapter.Get(ctx, collection, id)
	if err != nil {
		return Result{}, err
	}
	return Result{Changed: true, Doc: confirmed}, nil
}

func (m *Membership) suppressed(collection, setField string) {
	if m.metrics != nil {
		m.metrics.DedupSuppressed.WithLabelValues(collection, setField).Inc()
	}
}

// Emission guards "create one record per logical event". The key is the
// triple (eventType, relatedItemID, targetUserID); the record is created
// only when no record with that key exists yet.
type Emission struct {
	adapter    remote.Adapter
	collection string
	group      singleflight.Group
}

func NewEmission(adapter remote.Adapter, collection string) *Emission {
	return &Emission{adapter: adapter, collection: collection}
}

// EmitOnce creates the document built by build unless a record with the same
// key already exists. Returns whether a record was created.
func (e *Emission) EmitOnce(ctx context.Context, eventType, relatedItemID, targetUserID string, build func() remote.Document) (bool, error) {
	key := strings.Join([]string{eventType, relatedItemID, targetUserID}, "\x00")

	v, err, _ := e.group.Do(key, func() (any, error) {
		existing, err := e.adapter.List(ctx, e.collection, remote.Query{
			Where: []remote.Condition{
				{Field: "type", Op: "==", Value: eventType},
				{Field: "relatedItemId", Op: "==", Value: relatedItemID},
				{Field: "targetUserId", Op: "==", Value: targetUserID},
			},
			Limit: 1,
		})
		if err != nil {
			return false, err
		}
		if len(existing) > 0 {
			return false, nil
		}
		doc := build()
		doc["type"] = eventType
		doc["relatedItemId"] = relatedItemID
		doc["targetUserId"] = targetUserID
		if _, err := e.adapter.Create(ctx, e.collection, doc); err != nil {
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}
