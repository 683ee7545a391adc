package condo

import (
	"context"
	"time"

	"condosync/internal/entity"
	"condosync/internal/identity"
	"condosync/internal/permission"
	"condosync/internal/remote"
	"condosync/pkg/syncerrors"
)

// News is an announcement published by the administration. ViewedBy counts
// unique readers.
type News struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	AuthorID  string    `json:"authorId,omitempty"`
	ViewedBy  []string  `json:"viewedBy"`
	ViewCount int       `json:"viewCount"`
	CreatedAt time.Time `json:"createdAt"`
}

func newsCodec() entity.Codec[News] {
	return entity.Codec[News]{
		Collection: "news",
		Encode: func(n News) remote.Document {
			return remote.Document{
				"title":     n.Title,
				"body":      n.Body,
				"authorId":  n.AuthorID,
				"viewedBy":  n.ViewedBy,
				"viewCount": n.ViewCount,
			}
		},
		Decode: func(doc remote.Document) News {
			return News{
				ID:        doc.ID(),
				Title:     doc.String("title"),
				Body:      doc.String("body"),
				AuthorID:  doc.String("authorId"),
				ViewedBy:  doc.StringSlice("viewedBy"),
				ViewCount: doc.Int("viewCount"),
				CreatedAt: doc.Time(remote.FieldCreatedAt),
			}
		},
		ID: func(n News) string { return n.ID },
	}
}

// NewsFeed manages announcements; publishing is manager-or-admin, reading is
// open.
type NewsFeed struct {
	*entity.Store[News]
	deps Deps
}

func NewNewsFeed(deps Deps) *NewsFeed {
	staff := func(actor identity.Identity, _ News) bool {
		return permission.CanPerform(actor.Role, permission.ActionNewsWrite, actor.ID, permission.Target{})
	}
	return &NewsFeed{
		deps: deps,
		Store: entity.NewStore(entity.Config[News]{
			Codec:    newsCodec(),
			Adapter:  deps.Adapter,
			Identity: deps.Identity,
			Metrics:  deps.Metrics,
			Logger:   deps.Logger,
			Query:    descendingByCreation(),
			Validate: func(n News) error {
				if n.Title == "" || n.Body == "" {
					return syncerrors.Validation("news title and body are required")
				}
				return nil
			},
			CanCreate: staff,
			CanMutate: staff,
		}),
	}
}

// MarkViewed counts the acting user as a reader, once per user.
func (n *NewsFeed) MarkViewed(ctx context.Context, id string) error {
	actor, err := n.deps.actor(ctx)
	if err != nil {
		return err
	}
	result, err := n.deps.Ledger.Add(ctx, n.Collection(), id, "viewedBy", "viewCount", actor.ID)
	if err != nil {
		return err
	}
	n.Reconcile(result.Doc)
	return nil
}
