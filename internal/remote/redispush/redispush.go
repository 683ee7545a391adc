// Package redispush decorates a remote adapter with a Redis pub/sub push
// channel, for deployments where the document store itself cannot push.
// Every committed mutation publishes an invalidation for its collection;
// subscribers re-list on each invalidation and deliver a full snapshot,
// keeping the replace-not-merge contract intact.
package redispush

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"condosync/internal/remote"
	"condosync/pkg/syncerrors"
)

const channelPrefix = "condosync:changed:"

// Bridge implements remote.Adapter by delegating storage to the inner
// adapter and carrying push over Redis.
type Bridge struct {
	inner  remote.Adapter
	client *redis.Client
}

var _ remote.Adapter = (*Bridge)(nil)

func New(inner remote.Adapter, client *redis.Client) *Bridge {
	return &Bridge{inner: inner, client: client}
}

func (b *Bridge) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	return b.inner.Get(ctx, collection, id)
}

func (b *Bridge) List(ctx context.Context, collection string, q remote.Query) ([]remote.Document, error) {
	return b.inner.List(ctx, collection, q)
}

func (b *Bridge) Create(ctx context.Context, collection string, doc remote.Document) (remote.Created, error) {
	created, err := b.inner.Create(ctx, collection, doc)
	if err == nil {
		b.publish(ctx, collection)
	}
	return created, err
}

func (b *Bridge) Update(ctx context.Context, collection, id string, patch remote.Document) error {
	err := b.inner.Update(ctx, collection, id, patch)
	if err == nil {
		b.publish(ctx, collection)
	}
	return err
}

func (b *Bridge) Delete(ctx context.Context, collection, id string) error {
	err := b.inner.Delete(ctx, collection, id)
	if err == nil {
		b.publish(ctx, collection)
	}
	return err
}

// AddToSetAndCount passes through when the inner adapter is atomic-capable,
// so the bridge never weakens the membership guarantee.
func (b *Bridge) AddToSetAndCount(ctx context.Context, collection, id, setField, counterField, member string) (bool, error) {
	atomic, ok := b.inner.(remote.AtomicAdder)
	if !ok {
		return false, syncerrors.Transport(nil, "inner adapter lacks atomic membership")
	}
	changed, err := atomic.AddToSetAndCount(ctx, collection, id, setField, counterField, member)
	if err == nil && changed {
		b.publish(ctx, collection)
	}
	return changed, err
}

func (b *Bridge) RemoveFromSetAndCount(ctx context.Context, collection, id, setField, counterField, member string) (bool, error) {
	atomic, ok := b.inner.(remote.AtomicAdder)
	if !ok {
		return false, syncerrors.Transport(nil, "inner adapter lacks atomic membership")
	}
	changed, err := atomic.RemoveFromSetAndCount(ctx, collection, id, setField, counterField, member)
	if err == nil && changed {
		b.publish(ctx, collection)
	}
	return changed, err
}

// Subscribe re-lists the collection on every invalidation message. go-redis
// resubscribes internally after connection loss; the first message after a
// reconnect triggers a full resync, and the initial snapshot is delivered
// before any message arrives.
func (b *Bridge) Subscribe(ctx context.Context, collection string, q remote.Query, fn remote.SnapshotFunc) (remote.CancelFunc, error) {
	pubsub := b.client.Subscribe(ctx, channelPrefix+collection)
	// Force the subscription onto the wire before the initial snapshot, so
	// no commit can slip between snapshot and subscription.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, syncerrors.Transport(err, "subscribe %s", collection)
	}

	deliver := func() {
		docs, err := b.inner.List(ctx, collection, q)
		if err != nil {
			return
		}
		fn(docs)
	}
	deliver()

	done := make(chan struct{})
	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				deliver()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}, nil
}

func (b *Bridge) publish(ctx context.Context, collection string) {
	_ = b.client.Publish(ctx, channelPrefix+collection, "changed").Err()
}
