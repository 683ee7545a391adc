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

// Package statuses. Delivered is terminal.
const (
	PackageReceived  = "received"
	PackageDelivered = "delivered"
)

var packageTransitions = Transitions{
	PackageReceived: {PackageDelivered},
}

// Package is a parcel logged at the front desk until the recipient picks it
// up.
type Package struct {
	ID            string    `json:"id"`
	RecipientID   string    `json:"recipientId,omitempty"`
	RecipientName string    `json:"recipientName"`
	Apartment     string    `json:"apartment"`
	Description   string    `json:"description,omitempty"`
	Status        string    `json:"status"`
	SignedBy      string    `json:"signedBy,omitempty"`
	DeliveredAt   time.Time `json:"deliveredAt,omitzero"`
	CreatedAt     time.Time `json:"createdAt"`
}

func packageCodec() entity.Codec[Package] {
	return entity.Codec[Package]{
		Collection: "packages",
		Encode: func(p Package) remote.Document {
			return remote.Document{
				"recipientId":   p.RecipientID,
				"recipientName": p.RecipientName,
				"apartment":     p.Apartment,
				"description":   p.Description,
				"status":        p.Status,
			}
		},
		Decode: func(doc remote.Document) Package {
			return Package{
				ID:            doc.ID(),
				RecipientID:   doc.String("recipientId"),
				RecipientName: doc.String("recipientName"),
				Apartment:     doc.String("apartment"),
				Description:   doc.String("description"),
				Status:        doc.String("status"),
				SignedBy:      doc.String("signedBy"),
				DeliveredAt:   doc.Time("deliveredAt"),
				CreatedAt:     doc.Time(remote.FieldCreatedAt),
			}
		},
		ID: func(p Package) string { return p.ID },
	}
}

// Packages manages the front-desk parcel log. Handling is doorman-or-above.
type Packages struct {
	*entity.Store[Package]
	deps Deps
}

func NewPackages(deps Deps) *Packages {
	frontDesk := func(actor identity.Identity, _ Package) bool {
		return permission.CanPerform(actor.Role, permission.ActionPackageHandle, actor.ID, permission.Target{})
	}
	return &Packages{
		deps: deps,
		Store: entity.NewStore(entity.Config[Package]{
			Codec:    packageCodec(),
			Adapter:  deps.Adapter,
			Identity: deps.Identity,
			Metrics:  deps.Metrics,
			Logger:   deps.Logger,
			Query:    descendingByCreation(),
			Validate: func(p Package) error {
				if p.RecipientName == "" || p.Apartment == "" {
					return syncerrors.Validation("package recipient and apartment are required")
				}
				return nil
			},
			CanCreate: frontDesk,
			CanMutate: frontDesk,
		}),
	}
}

// Register logs an arriving parcel and tells the recipient it is waiting.
func (p *Packages) Register(ctx context.Context, pkg Package) (Package, error) {
	pkg.Status = PackageReceived
	created, err := p.Create(ctx, pkg)
	if err != nil {
		return Package{}, err
	}
	p.send(ctx, notify.Notification{
		Title:         "Package waiting at the front desk",
		Message:       created.Description,
		Type:          notify.TypePackageArrived,
		RelatedItemID: created.ID,
		TargetUserID:  created.RecipientID,
	})
	return created, nil
}

// MarkDelivered records who signed for the parcel and notifies the
// recipient. A second tap on the confirmation is rejected by the status
// machine, and even a racing duplicate that slips past it cannot
// double-notify: the emission key (type, package, recipient) already exists.
func (p *Packages) MarkDelivered(ctx context.Context, id, signedBy string) error {
	if signedBy == "" {
		return syncerrors.Validation("a signer name is required to hand over a package")
	}
	current, err := loadOne(ctx, p.Store, "package", id)
	if err != nil {
		return err
	}
	if err := packageTransitions.Check("package", current.Status, PackageDelivered); err != nil {
		return err
	}
	patch := remote.Document{
		"status":      PackageDelivered,
		"signedBy":    signedBy,
		"deliveredAt": time.Now().UTC(),
	}
	if err := p.Update(ctx, id, patch); err != nil {
		return err
	}

	p.send(ctx, notify.Notification{
		Title:         "Package delivered",
		Message:       "Signed by " + signedBy + ".",
		Type:          notify.TypePackageDelivered,
		RelatedItemID: id,
		TargetUserID:  current.RecipientID,
	})
	return nil
}

// Backlog returns the packages still waiting for pickup.
func (p *Packages) Backlog() []Package {
	items, _, _ := p.Snapshot()
	waiting := make([]Package, 0, len(items))
	for _, pkg := range items {
		if pkg.Status == PackageReceived {
			waiting = append(waiting, pkg)
		}
	}
	return waiting
}

func (p *Packages) send(ctx context.Context, n notify.Notification) {
	if p.deps.Notifier == nil || n.TargetUserID == "" {
		return
	}
	if _, err := p.deps.Notifier.Notify(ctx, n); err != nil && p.deps.Logger != nil {
		p.deps.Logger.Warn("package notification failed",
			"package", n.RelatedItemID,
			"type", n.Type,
			"error", err,
		)
	}
}
