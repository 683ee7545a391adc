// Package subscription owns the live push listeners. It enforces at most one
// listener per (resource, consumer) pair, guarantees teardown, and reattaches
// with capped backoff when the transport refuses the initial connection.
package subscription

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"condosync/internal/platform/metrics"
	"condosync/internal/remote"
)

const (
	backoffInitial = 250 * time.Millisecond
	backoffMax     = 30 * time.Second
)

type key struct {
	resource string
	consumer string
}

// Manager multiplexes push subscriptions over one adapter.
type Manager struct {
	adapter remote.Adapter
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	active map[key]*listener
}

func NewManager(adapter remote.Adapter, m *metrics.Metrics, logger *slog.Logger) *Manager {
	return &Manager{
		adapter: adapter,
		metrics: m,
		logger:  logger,
		active:  make(map[key]*listener),
	}
}

// Subscribe attaches fn to the resource's push stream. Each snapshot replaces
// the consumer's state wholesale. A second Subscribe for the same (resource,
// consumer) first tears down the prior listener. The returned cancel must be
// called on consumer disposal; it is safe to call more than once.
func (m *Manager) Subscribe(ctx context.Context, resource, consumer string, q remote.Query, fn remote.SnapshotFunc) remote.CancelFunc {
	k := key{resource: resource, consumer: consumer}

	l := &listener{
		manager:  m,
		resource: resource,
		query:    q,
		fn:       fn,
		done:     make(chan struct{}),
	}

	m.mu.Lock()
	if prior, ok := m.active[k]; ok {
		prior.stop()
	}
	m.active[k] = l
	m.mu.Unlock()

	go l.run(ctx)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.active[k] == l {
				delete(m.active, k)
			}
			m.mu.Unlock()
			l.stop()
		})
	}
}

// Active returns the number of live listeners, for tests and health checks.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

type listener struct {
	manager  *Manager
	resource string
	query    remote.Query
	fn       remote.SnapshotFunc

	stopOnce sync.Once
	done     chan struct{}
}

func (l *listener) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// run attaches to the transport, retrying with jittered capped backoff until
// attached or stopped. Mid-stream reconnection is the transport's own job
// (pq.Listener and the redis bridge both resubscribe internally); this loop
// covers the initial connection.
func (l *listener) run(ctx context.Context) {
	backoff := backoffInitial
	for {
		cancel, err := l.manager.adapter.Subscribe(ctx, l.resource, l.query, l.deliver)
		if err == nil {
			if l.manager.metrics != nil {
				l.manager.metrics.SubscriptionsLive.Inc()
			}
			select {
			case <-l.done:
			case <-ctx.Done():
			}
			cancel()
			if l.manager.metrics != nil {
				l.manager.metrics.SubscriptionsLive.Dec()
			}
			return
		}

		if l.manager.logger != nil {
			l.manager.logger.Warn("push subscribe failed, retrying",
				"resource", l.resource,
				"backoff", backoff.String(),
				"error", err,
			)
		}
		if l.manager.metrics != nil {
			l.manager.metrics.SubscribeReattach.Inc()
		}

		select {
		case <-time.After(jitter(backoff)):
		case <-l.done:
			return
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

// deliver forwards a snapshot unless the listener is already torn down, so a
// late transport callback cannot resurrect stale state.
func (l *listener) deliver(docs []remote.Document) {
	select {
	case <-l.done:
		return
	default:
	}
	l.fn(docs)
}

func jitter(d time.Duration) time.Duration {
	return d/2 + time.Duration(rand.Int63n(int64(d)))
}
