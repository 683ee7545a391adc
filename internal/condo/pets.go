package condo

import (
	"time"

	"condosync/internal/entity"
	"condosync/internal/identity"
	"condosync/internal/permission"
	"condosync/internal/remote"
	"condosync/pkg/syncerrors"
)

// Pet is registered to one owner; only the owner or an admin may change it.
type Pet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Species   string    `json:"species"`
	Breed     string    `json:"breed,omitempty"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

func petCodec() entity.Codec[Pet] {
	return entity.Codec[Pet]{
		Collection: "pets",
		Encode: func(p Pet) remote.Document {
			return remote.Document{
				"name":    p.Name,
				"species": p.Species,
				"breed":   p.Breed,
				"ownerId": p.OwnerID,
			}
		},
		Decode: func(doc remote.Document) Pet {
			return Pet{
				ID:        doc.ID(),
				Name:      doc.String("name"),
				Species:   doc.String("species"),
				Breed:     doc.String("breed"),
				OwnerID:   doc.String("ownerId"),
				CreatedAt: doc.Time(remote.FieldCreatedAt),
			}
		},
		ID: func(p Pet) string { return p.ID },
	}
}

type Pets struct {
	*entity.Store[Pet]
}

func NewPets(deps Deps) *Pets {
	ownerOrAdmin := func(actor identity.Identity, p Pet) bool {
		return permission.CanPerform(actor.Role, permission.ActionPetWrite, actor.ID, permission.Target{OwnerID: p.OwnerID})
	}
	return &Pets{Store: entity.NewStore(entity.Config[Pet]{
		Codec:    petCodec(),
		Adapter:  deps.Adapter,
		Identity: deps.Identity,
		Metrics:  deps.Metrics,
		Logger:   deps.Logger,
		Query:    descendingByCreation(),
		Validate: func(p Pet) error {
			if p.Name == "" || p.Species == "" {
				return syncerrors.Validation("pet name and species are required")
			}
			if p.OwnerID == "" {
				return syncerrors.Validation("pet owner is required")
			}
			return nil
		},
		CanCreate: ownerOrAdmin,
		CanMutate: ownerOrAdmin,
	})}
}
