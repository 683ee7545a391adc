package notify

import (
	"context"
	"log/slog"
)

// Worker drains an inbox channel into the notifier so mutation paths never
// block on notification persistence or broker round-trips.
type Worker struct {
	notifier *Notifier
	inbox    <-chan Notification
	logger   *slog.Logger
}

func NewWorker(notifier *Notifier, inbox <-chan Notification, logger *slog.Logger) *Worker {
	return &Worker{notifier: notifier, inbox: inbox, logger: logger}
}

// Run processes until ctx is cancelled. Emission failures are logged and
// skipped; the dedup key makes a later retry of the same event safe.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case note := <-w.inbox:
			if _, err := w.notifier.Notify(ctx, note); err != nil && w.logger != nil {
				w.logger.Warn("notification emission failed",
					"type", note.Type,
					"relatedItemId", note.RelatedItemID,
					"error", err,
				)
			}
		}
	}
}
