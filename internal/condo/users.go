package condo

import (
	"time"

	"condosync/internal/entity"
	"condosync/internal/identity"
	"condosync/internal/permission"
	"condosync/internal/remote"
	"condosync/pkg/syncerrors"
)

// User is a registered member of the condominium.
type User struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Apartment string          `json:"apartment,omitempty"`
	Role      permission.Role `json:"role"`
	CreatedAt time.Time       `json:"createdAt"`
}

func userCodec() entity.Codec[User] {
	return entity.Codec[User]{
		Collection: "users",
		Encode: func(u User) remote.Document {
			return remote.Document{
				"name":      u.Name,
				"email":     u.Email,
				"apartment": u.Apartment,
				"role":      string(u.Role),
			}
		},
		Decode: func(doc remote.Document) User {
			return User{
				ID:        doc.ID(),
				Name:      doc.String("name"),
				Email:     doc.String("email"),
				Apartment: doc.String("apartment"),
				Role:      permission.Role(doc.String("role")),
				CreatedAt: doc.Time(remote.FieldCreatedAt),
			}
		},
		ID: func(u User) string { return u.ID },
	}
}

// Users manages the member directory. Writes are admin-only.
type Users struct {
	*entity.Store[User]
}

func NewUsers(deps Deps) *Users {
	manage := func(actor identity.Identity, _ User) bool {
		return permission.CanPerform(actor.Role, permission.ActionManageUsers, actor.ID, permission.Target{})
	}
	return &Users{Store: entity.NewStore(entity.Config[User]{
		Codec:    userCodec(),
		Adapter:  deps.Adapter,
		Identity: deps.Identity,
		Metrics:  deps.Metrics,
		Logger:   deps.Logger,
		Query:    descendingByCreation(),
		Validate: func(u User) error {
			if u.Name == "" || u.Email == "" {
				return syncerrors.Validation("user name and email are required")
			}
			if !u.Role.Valid() {
				return syncerrors.Validation("unknown role %q", u.Role)
			}
			return nil
		},
		CanCreate: manage,
		CanMutate: manage,
	})}
}

// ResidentIDs returns the ids of all residents in the current snapshot, for
// community-wide notification fan-out.
func (u *Users) ResidentIDs() []string {
	items, _, _ := u.Snapshot()
	ids := make([]string, 0, len(items))
	for _, user := range items {
		if user.Role == permission.RoleResident {
			ids = append(ids, user.ID)
		}
	}
	return ids
}
