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

// Post is a reply inside a topic. Likes is a membership set.
type Post struct {
	ID        string    `json:"id"`
	TopicID   string    `json:"topicId"`
	AuthorID  string    `json:"authorId,omitempty"`
	Body      string    `json:"body"`
	Likes     []string  `json:"likes"`
	LikeCount int       `json:"likeCount"`
	CreatedAt time.Time `json:"createdAt"`
}

func postCodec() entity.Codec[Post] {
	return entity.Codec[Post]{
		Collection: "posts",
		Encode: func(p Post) remote.Document {
			return remote.Document{
				"topicId":   p.TopicID,
				"authorId":  p.AuthorID,
				"body":      p.Body,
				"likes":     p.Likes,
				"likeCount": p.LikeCount,
			}
		},
		Decode: func(doc remote.Document) Post {
			return Post{
				ID:        doc.ID(),
				TopicID:   doc.String("topicId"),
				AuthorID:  doc.String("authorId"),
				Body:      doc.String("body"),
				Likes:     doc.StringSlice("likes"),
				LikeCount: doc.Int("likeCount"),
				CreatedAt: doc.Time(remote.FieldCreatedAt),
			}
		},
		ID: func(p Post) string { return p.ID },
	}
}

// Posts manages topic replies. Authors edit their own, staff edit any.
type Posts struct {
	*entity.Store[Post]
	deps Deps
}

func NewPosts(deps Deps) *Posts {
	return &Posts{
		deps: deps,
		Store: entity.NewStore(entity.Config[Post]{
			Codec:    postCodec(),
			Adapter:  deps.Adapter,
			Identity: deps.Identity,
			Metrics:  deps.Metrics,
			Logger:   deps.Logger,
			Query:    descendingByCreation(),
			Validate: func(p Post) error {
				if p.TopicID == "" {
					return syncerrors.Validation("post topic is required")
				}
				if p.Body == "" {
					return syncerrors.Validation("post body is required")
				}
				return nil
			},
			CanCreate: func(actor identity.Identity, _ Post) bool {
				return permission.CanPerform(actor.Role, permission.ActionPostWrite, actor.ID, permission.Target{})
			},
			CanMutate: func(actor identity.Identity, p Post) bool {
				return permission.CanPerform(actor.Role, permission.ActionPostWrite, actor.ID, permission.Target{OwnerID: p.AuthorID})
			},
		}),
	}
}

// Reply appends a post to a topic, authored by the acting user.
func (p *Posts) Reply(ctx context.Context, post Post) (Post, error) {
	actor, err := p.deps.actor(ctx)
	if err != nil {
		return Post{}, err
	}
	post.AuthorID = actor.ID
	return p.Create(ctx, post)
}

// Like records the acting user's like, at most once per user.
func (p *Posts) Like(ctx context.Context, id string) error {
	actor, err := p.deps.actor(ctx)
	if err != nil {
		return err
	}
	result, err := p.deps.Ledger.Add(ctx, p.Collection(), id, "likes", "likeCount", actor.ID)
	if err != nil {
		return err
	}
	p.Reconcile(result.Doc)
	return nil
}

// ForTopic returns the cached posts belonging to one topic, oldest first.
func (p *Posts) ForTopic(topicID string) []Post {
	items, _, _ := p.Snapshot()
	out := make([]Post, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].TopicID == topicID {
			out = append(out, items[i])
		}
	}
	return out
}
