// Package notify creates per-user notification records with exactly-once
// semantics and optionally fans them out to Kafka for external delivery
// (push gateways, email bridges). Record creation is guarded by the emission
// ledger keyed (type, relatedItemId, targetUserId), so retried or double-
// triggered events produce exactly one record.
package notify

import (
	"context"
	"log/slog"
	"time"

	"condosync/internal/ledger"
	"condosync/internal/platform/metrics"
	"condosync/internal/remote"
	"condosync/pkg/syncerrors"
)

// Collection is the remote collection holding notification records.
const Collection = "notifications"

// Event types carried in the dedup key.
const (
	TypeMeetingCreated   = "meeting_created"
	TypePackageArrived   = "package_arrived"
	TypePackageDelivered = "package_delivered"
	TypeDebtorResolved   = "debtor_resolved"
	TypeAnnouncement     = "announcement"
)

// Notification is the record shape produced by this layer.
type Notification struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	Type          string    `json:"type"`
	RelatedItemID string    `json:"relatedItemId,omitempty"`
	TargetUserID  string    `json:"targetUserId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	Read          bool      `json:"read"`
}

func decode(doc remote.Document) Notification {
	return Notification{
		ID:            doc.ID(),
		Title:         doc.String("title"),
		Message:       doc.String("message"),
		Type:          doc.String("type"),
		RelatedItemID: doc.String("relatedItemId"),
		TargetUserID:  doc.String("targetUserId"),
		CreatedAt:     doc.Time(remote.FieldCreatedAt),
		Read:          doc.Bool("read"),
	}
}

// Sink receives confirmed notifications for external fan-out. The Kafka
// producer implements it; a nil sink disables fan-out.
type Sink interface {
	Publish(ctx context.Context, n Notification) error
}

// Notifier is the single entry point for emitting notifications.
type Notifier struct {
	adapter  remote.Adapter
	emission *ledger.Emission
	sink     Sink
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewNotifier(adapter remote.Adapter, sink Sink, m *metrics.Metrics, logger *slog.Logger) *Notifier {
	return &Notifier{
		adapter:  adapter,
		emission: ledger.NewEmission(adapter, Collection),
		sink:     sink,
		metrics:  m,
		logger:   logger,
	}
}

// Notify creates the record unless one with the same (type, relatedItemId,
// targetUserId) key exists. Returns whether a record was created. Fan-out
// failures are logged, not returned: the record is the source of truth and
// external delivery is best-effort.
func (n *Notifier) Notify(ctx context.Context, note Notification) (bool, error) {
	if note.Title == "" || note.Type == "" {
		return false, syncerrors.Validation("notification title and type are required")
	}

	created, err := n.emission.EmitOnce(ctx, note.Type, note.RelatedItemID, note.TargetUserID, func() remote.Document {
		return remote.Document{
			"title":   note.Title,
			"message": note.Message,
			"read":    false,
		}
	})
	if err != nil {
		return false, err
	}
	if !created {
		if n.metrics != nil {
			n.metrics.NotificationsDeduped.Inc()
		}
		return false, nil
	}

	if n.metrics != nil {
		n.metrics.NotificationsSent.Inc()
	}
	if n.sink != nil {
		if err := n.sink.Publish(ctx, note); err != nil && n.logger != nil {
			n.logger.Warn("notification fan-out failed",
				"type", note.Type,
				"relatedItemId", note.RelatedItemID,
				"error", err,
			)
		}
	}
	return true, nil
}

// ListForUser returns the user's notifications, newest first.
func (n *Notifier) ListForUser(ctx context.Context, userID string) ([]Notification, error) {
	docs, err := n.adapter.List(ctx, Collection, remote.Query{
		Where:   []remote.Condition{{Field: "targetUserId", Op: "==", Value: userID}},
		OrderBy: remote.FieldCreatedAt,
		Desc:    true,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(docs))
	for _, doc := range docs {
		out = append(out, decode(doc))
	}
	return out, nil
}

// MarkRead flips the read flag. Marking an already-read record again is
// harmless.
func (n *Notifier) MarkRead(ctx context.Context, id string) error {
	return n.adapter.Update(ctx, Collection, id, remote.Document{"read": true})
}
