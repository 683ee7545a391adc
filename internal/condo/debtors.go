package condo

import (
	"context"
	"time"

	"condosync/internal/entity"
	"condosync/internal/identity"
	"condosync/internal/notify"
	"condosync/internal/permission"
	"condosync/internal/remote"
	"condosync/pkg/syncerrors"
)

// Debtor statuses. Resolved is terminal.
const (
	DebtorPending     = "pending"
	DebtorNegotiating = "negotiating"
	DebtorResolved    = "resolved"
)

var debtorTransitions = Transitions{
	DebtorPending:     {DebtorNegotiating, DebtorResolved},
	DebtorNegotiating: {DebtorResolved},
}

// Debtor tracks an outstanding balance for one unit.
type Debtor struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	UserName  string    `json:"userName"`
	Apartment string    `json:"apartment"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

func debtorCodec() entity.Codec[Debtor] {
	return entity.Codec[Debtor]{
		Collection: "debtors",
		Encode: func(d Debtor) remote.Document {
			return remote.Document{
				"userId":    d.UserID,
				"userName":  d.UserName,
				"apartment": d.Apartment,
				"amount":    d.Amount,
				"status":    d.Status,
			}
		},
		Decode: func(doc remote.Document) Debtor {
			return Debtor{
				ID:        doc.ID(),
				UserID:    doc.String("userId"),
				UserName:  doc.String("userName"),
				Apartment: doc.String("apartment"),
				Amount:    doc.Float("amount"),
				Status:    doc.String("status"),
				CreatedAt: doc.Time(remote.FieldCreatedAt),
				UpdatedAt: doc.Time(remote.FieldUpdatedAt),
			}
		},
		ID: func(d Debtor) string { return d.ID },
	}
}

// Debtors manages delinquency records; writes are manager-or-admin.
type Debtors struct {
	*entity.Store[Debtor]
	deps Deps
}

func NewDebtors(deps Deps) *Debtors {
	staff := func(actor identity.Identity, _ Debtor) bool {
		return permission.CanPerform(actor.Role, permission.ActionDebtorWrite, actor.ID, permission.Target{})
	}
	return &Debtors{
		deps: deps,
		Store: entity.NewStore(entity.Config[Debtor]{
			Codec:    debtorCodec(),
			Adapter:  deps.Adapter,
			Identity: deps.Identity,
			Metrics:  deps.Metrics,
			Logger:   deps.Logger,
			Query:    descendingByCreation(),
			Validate: func(d Debtor) error {
				if d.UserName == "" || d.Apartment == "" {
					return syncerrors.Validation("debtor name and apartment are required")
				}
				if d.Amount <= 0 {
					return syncerrors.Validation("debtor amount must be positive")
				}
				if d.Status == "" {
					return syncerrors.Validation("debtor status is required")
				}
				return nil
			},
			CanCreate: staff,
			CanMutate: staff,
		}),
	}
}

// Open opens a pending record for the given unit.
func (d *Debtors) Open(ctx context.Context, debtor Debtor) (Debtor, error) {
	debtor.Status = DebtorPending
	return d.Create(ctx, debtor)
}

// SetStatus advances the record through pending → negotiating → resolved.
// Resolving notifies the debtor user; the notification is deduped, so a
// repeated call after a terminal-state rejection cannot double-send.
func (d *Debtors) SetStatus(ctx context.Context, id, status string) error {
	current, err := loadOne(ctx, d.Store, "debtor", id)
	if err != nil {
		return err
	}
	if err := debtorTransitions.Check("debtor", current.Status, status); err != nil {
		return err
	}
	if err := d.Update(ctx, id, remote.Document{"status": status}); err != nil {
		return err
	}

	if status == DebtorResolved && d.deps.Notifier != nil && current.UserID != "" {
		_, err := d.deps.Notifier.Notify(ctx, notify.Notification{
			Title:         "Balance settled",
			Message:       "Your outstanding balance for apartment " + current.Apartment + " is resolved.",
			Type:          notify.TypeDebtorResolved,
			RelatedItemID: id,
			TargetUserID:  current.UserID,
		})
		if err != nil && d.deps.Logger != nil {
			d.deps.Logger.Warn("debtor resolution notification failed", "debtor", id, "error", err)
		}
	}
	return nil
}
