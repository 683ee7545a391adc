package entity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"condosync/internal/identity"
	"condosync/internal/platform/metrics"
	"condosync/internal/remote"
	"condosync/pkg/syncerrors"
)

var tracer = otel.Tracer("condosync/entity")

// Config wires one Store instance. Stores are explicitly constructed and
// injectable; nothing in this package is a singleton.
type Config[T any] struct {
	Codec    Codec[T]
	Adapter  remote.Adapter
	Identity identity.Provider
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// Query orders and narrows Fetch; typically createdAt descending.
	Query remote.Query

	// Validate runs before Create issues any remote call. Return a
	// KindValidation error to fail fast.
	Validate func(T) error

	// CanCreate and CanMutate gate mutations. A nil hook allows everyone;
	// denial short-circuits with zero adapter calls.
	CanCreate func(identity.Identity, T) bool
	CanMutate func(identity.Identity, T) bool
}

// Store is the sole in-memory owner of the cached list for its collection.
// Reads return copies of the snapshot; callers never mutate cached entities.
type Store[T any] struct {
	cfg Config[T]

	mu    sync.RWMutex
	items []T
	index map[string]int
	state State
	err   error
}

func NewStore[T any](cfg Config[T]) *Store[T] {
	return &Store[T]{
		cfg:   cfg,
		index: make(map[string]int),
		state: StateIdle,
	}
}

// Collection returns the remote collection this store caches.
func (s *Store[T]) Collection() string { return s.cfg.Codec.Collection }

// Snapshot returns the cached list, the store state, and the last error. On
// a failed fetch the previous list is retained (stale-but-available), so
// items can be non-empty while state is StateErrored.
func (s *Store[T]) Snapshot() ([]T, State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]T(nil), s.items...), s.state, s.err
}

// GetByID looks up the current snapshot. ok=false covers both "not yet
// loaded" and "does not exist"; callers cannot distinguish the two.
func (s *Store[T]) GetByID(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.index[id]; ok {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

// Fetch replaces the entire cached list with the remote collection. On
// failure the previous list is kept and the error is recorded.
func (s *Store[T]) Fetch(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateLoading
	s.mu.Unlock()

	docs, err := s.list(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = StateErrored
		s.err = err
		s.mu.Unlock()
		return err
	}

	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		items = append(items, s.cfg.Codec.Decode(doc))
	}

	s.mu.Lock()
	s.replaceLocked(items)
	s.mu.Unlock()
	return nil
}

// Create validates locally, consults the gate, then writes remotely. The
// confirmed entity (server id and timestamp applied) is appended to the
// cache directly instead of refetching the whole collection; a full Fetch
// happens only if decoding the server's answer requires it.
func (s *Store[T]) Create(ctx context.Context, item T) (T, error) {
	var zero T
	if s.cfg.Validate != nil {
		if err := s.cfg.Validate(item); err != nil {
			return zero, err
		}
	}
	if s.cfg.CanCreate != nil {
		actor, ok := s.currentUser(ctx)
		if !ok || !s.cfg.CanCreate(actor, item) {
			return zero, syncerrors.PermissionDenied("create %s", s.Collection())
		}
	}

	doc := s.cfg.Codec.Encode(item)
	created, err := s.create(ctx, doc)
	if err != nil {
		return zero, err
	}

	doc[remote.FieldID] = created.ID
	doc[remote.FieldCreatedAt] = created.CreatedAt
	confirmed := s.cfg.Codec.Decode(doc)

	s.mu.Lock()
	s.upsertLocked(confirmed)
	s.mu.Unlock()
	return confirmed, nil
}

// Update verifies the target exists remotely, consults the gate against the
// current remote entity, patches, and applies the known delta locally. When
// the cache already holds the target, a denial is decided there before any
// remote call.
func (s *Store[T]) Update(ctx context.Context, id string, patch remote.Document) error {
	if err := s.cachedDenial(ctx, id, "update"); err != nil {
		return err
	}
	current, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if s.cfg.CanMutate != nil {
		actor, ok := s.currentUser(ctx)
		if !ok || !s.cfg.CanMutate(actor, s.cfg.Codec.Decode(current)) {
			return syncerrors.PermissionDenied("update %s/%s", s.Collection(), id)
		}
	}

	if err := s.update(ctx, id, patch); err != nil {
		// The existence check passed moments ago, so a failure here may
		// mean the cache and the store disagree; resync wholesale.
		if syncerrors.Is(err, syncerrors.KindNotFound) {
			_ = s.Fetch(ctx)
		}
		return err
	}

	s.mu.Lock()
	s.upsertLocked(s.cfg.Codec.Decode(current.Clone().Merge(patch)))
	s.mu.Unlock()
	return nil
}

// Delete removes the entity remotely and filters it out of the cache. An
// already-absent id is a no-op, not an error.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if err := s.cachedDenial(ctx, id, "delete"); err != nil {
		return err
	}
	current, err := s.get(ctx, id)
	if err != nil {
		if syncerrors.Is(err, syncerrors.KindNotFound) {
			return nil
		}
		return err
	}
	if s.cfg.CanMutate != nil {
		actor, ok := s.currentUser(ctx)
		if !ok || !s.cfg.CanMutate(actor, s.cfg.Codec.Decode(current)) {
			return syncerrors.PermissionDenied("delete %s/%s", s.Collection(), id)
		}
	}

	if err := s.deleteRemote(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	s.removeLocked(id)
	s.mu.Unlock()
	return nil
}

// Reconcile upserts one confirmed document into the cache. The dedup ledger
// calls this after a membership write so counters appear without a refetch.
func (s *Store[T]) Reconcile(doc remote.Document) {
	s.mu.Lock()
	s.upsertLocked(s.cfg.Codec.Decode(doc))
	s.mu.Unlock()
}

// ApplySnapshot replaces the cached list wholesale with a push delivery.
// Used as the subscription manager's snapshot sink.
func (s *Store[T]) ApplySnapshot(docs []remote.Document) {
	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		items = append(items, s.cfg.Codec.Decode(doc))
	}
	s.mu.Lock()
	s.replaceLocked(items)
	s.mu.Unlock()
}

// cachedDenial rejects a mutation before any remote call when the cached
// copy already shows the actor cannot touch the entity. A cache miss decides
// nothing; the caller re-checks against the fresh remote document, which may
// carry newer facts than the cache.
func (s *Store[T]) cachedDenial(ctx context.Context, id, op string) error {
	if s.cfg.CanMutate == nil {
		return nil
	}
	cached, ok := s.GetByID(id)
	if !ok {
		return nil
	}
	actor, ok := s.currentUser(ctx)
	if !ok || !s.cfg.CanMutate(actor, cached) {
		return syncerrors.PermissionDenied("%s %s/%s", op, s.Collection(), id)
	}
	return nil
}

func (s *Store[T]) currentUser(ctx context.Context) (identity.Identity, bool) {
	if s.cfg.Identity == nil {
		return identity.Identity{}, false
	}
	return s.cfg.Identity.Current(ctx)
}

// replaceLocked installs items as the new truth and clears any prior error.
func (s *Store[T]) replaceLocked(items []T) {
	s.items = items
	s.index = make(map[string]int, len(items))
	for i, item := range items {
		s.index[s.cfg.Codec.ID(item)] = i
	}
	s.state = StatePopulated
	s.err = nil
}

func (s *Store[T]) upsertLocked(item T) {
	id := s.cfg.Codec.ID(item)
	if i, ok := s.index[id]; ok {
		s.items[i] = item
	} else {
		s.index[id] = len(s.items)
		s.items = append(s.items, item)
	}
	if s.state == StateIdle {
		s.state = StatePopulated
	}
}

func (s *Store[T]) removeLocked(id string) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.items); j++ {
		s.index[s.cfg.Codec.ID(s.items[j])] = j
	}
}

// Instrumented adapter round-trips. Every call gets a span and, when metrics
// are wired, a counter and latency observation.

func (s *Store[T]) list(ctx context.Context) ([]remote.Document, error) {
	var docs []remote.Document
	err := s.observe(ctx, "list", func(ctx context.Context) error {
		var err error
		docs, err = s.cfg.Adapter.List(ctx, s.Collection(), s.cfg.Query)
		return err
	})
	return docs, err
}

func (s *Store[T]) get(ctx context.Context, id string) (remote.Document, error) {
	var doc remote.Document
	err := s.observe(ctx, "get", func(ctx context.Context) error {
		var err error
		doc, err = s.cfg.Adapter.Get(ctx, s.Collection(), id)
		return err
	})
	return doc, err
}

func (s *Store[T]) create(ctx context.Context, doc remote.Document) (remote.Created, error) {
	var created remote.Created
	err := s.observe(ctx, "create", func(ctx context.Context) error {
		var err error
		created, err = s.cfg.Adapter.Create(ctx, s.Collection(), doc)
		return err
	})
	return created, err
}

func (s *Store[T]) update(ctx context.Context, id string, patch remote.Document) error {
	return s.observe(ctx, "update", func(ctx context.Context) error {
		return s.cfg.Adapter.Update(ctx, s.Collection(), id, patch)
	})
}

func (s *Store[T]) deleteRemote(ctx context.Context, id string) error {
	return s.observe(ctx, "delete", func(ctx context.Context) error {
		return s.cfg.Adapter.Delete(ctx, s.Collection(), id)
	})
}

func (s *Store[T]) observe(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "store."+op, trace.WithAttributes(
		attribute.String("collection", s.Collection()),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.AdapterCalls.WithLabelValues(s.Collection(), op).Inc()
		s.cfg.Metrics.AdapterLatency.WithLabelValues(s.Collection(), op).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		err = normalize(err, op, s.Collection())
		span.RecordError(err)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.AdapterErrors.WithLabelValues(s.Collection(), string(syncerrors.KindOf(err))).Inc()
		}
		if s.cfg.Logger != nil {
			s.cfg.Logger.Warn("adapter call failed",
				"collection", s.Collection(),
				"op", op,
				"kind", string(syncerrors.KindOf(err)),
				"error", err,
			)
		}
	}
	return err
}

// normalize guarantees every error leaving the store carries a Kind.
func normalize(err error, op, collection string) error {
	var se *syncerrors.Error
	if errors.As(err, &se) {
		return err
	}
	return syncerrors.Transport(err, "%s %s", op, collection)
}
