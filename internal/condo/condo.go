// Package condo holds the condominium domain services. Each domain owns one
// typed store built on the generic entity engine, with its collection codec,
// local validation, permission hooks, status transitions and membership
// ledgers wired per domain.
package condo

import (
	"context"
	"log/slog"

	"condosync/internal/entity"
	"condosync/internal/identity"
	"condosync/internal/ledger"
	"condosync/internal/notify"
	"condosync/internal/platform/metrics"
	"condosync/internal/remote"
	"condosync/pkg/syncerrors"
)

// Deps carries the shared infrastructure every domain service is built from.
// Services are explicitly constructed from it; nothing here is global.
type Deps struct {
	Adapter  remote.Adapter
	Identity identity.Provider
	Ledger   *ledger.Membership
	Notifier *notify.Notifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

func (d Deps) actor(ctx context.Context) (identity.Identity, error) {
	if d.Identity == nil {
		return identity.Identity{}, syncerrors.PermissionDenied("sign-in required")
	}
	actor, ok := d.Identity.Current(ctx)
	if !ok {
		return identity.Identity{}, syncerrors.PermissionDenied("sign-in required")
	}
	return actor, nil
}

// Transitions is a status machine: the set of states each state may move to.
// States absent from the map are terminal.
type Transitions map[string][]string

// Allowed reports whether from may move to to.
func (t Transitions) Allowed(from, to string) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Check returns a validation error naming the rejected transition.
func (t Transitions) Check(entity, from, to string) error {
	if !t.Allowed(from, to) {
		return syncerrors.Validation("%s cannot move from %q to %q", entity, from, to)
	}
	return nil
}

func descendingByCreation() remote.Query {
	return remote.Query{OrderBy: remote.FieldCreatedAt, Desc: true}
}

// loadOne reads one entity from the store's cache, fetching the collection
// first when the cache has not seen the id yet.
func loadOne[T any](ctx context.Context, store *entity.Store[T], kind, id string) (T, error) {
	if item, ok := store.GetByID(id); ok {
		return item, nil
	}
	var zero T
	if err := store.Fetch(ctx); err != nil {
		return zero, err
	}
	item, ok := store.GetByID(id)
	if !ok {
		return zero, syncerrors.NotFound("%s %s", kind, id)
	}
	return item, nil
}
