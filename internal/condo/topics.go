package condo

import (
	"context"
	"time"

	"condosync/internal/entity"
	"condosync/internal/identity"
	"condosync/internal/ledger"
	"condosync/internal/permission"
	"condosync/internal/remote"
	"condosync/pkg/syncerrors"
)

// Topic is a forum thread residents vote on. Votes is a membership set;
// VoteCount always equals its cardinality.
type Topic struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	AuthorID    string    `json:"authorId,omitempty"`
	Votes       []string  `json:"votes"`
	VoteCount   int       `json:"voteCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

func topicCodec() entity.Codec[Topic] {
	return entity.Codec[Topic]{
		Collection: "topics",
		Encode: func(t Topic) remote.Document {
			return remote.Document{
				"title":       t.Title,
				"description": t.Description,
				"authorId":    t.AuthorID,
				"votes":       t.Votes,
				"voteCount":   t.VoteCount,
			}
		},
		Decode: func(doc remote.Document) Topic {
			return Topic{
				ID:          doc.ID(),
				Title:       doc.String("title"),
				Description: doc.String("description"),
				AuthorID:    doc.String("authorId"),
				Votes:       doc.StringSlice("votes"),
				VoteCount:   doc.Int("voteCount"),
				CreatedAt:   doc.Time(remote.FieldCreatedAt),
			}
		},
		ID: func(t Topic) string { return t.ID },
	}
}

// Topics manages the discussion board. Authors edit their own threads, staff
// edit any.
type Topics struct {
	*entity.Store[Topic]
	deps Deps
}

func NewTopics(deps Deps) *Topics {
	return &Topics{
		deps: deps,
		Store: entity.NewStore(entity.Config[Topic]{
			Codec:    topicCodec(),
			Adapter:  deps.Adapter,
			Identity: deps.Identity,
			Metrics:  deps.Metrics,
			Logger:   deps.Logger,
			Query:    descendingByCreation(),
			Validate: func(t Topic) error {
				if t.Title == "" {
					return syncerrors.Validation("topic title is required")
				}
				return nil
			},
			CanCreate: func(actor identity.Identity, _ Topic) bool {
				return permission.CanPerform(actor.Role, permission.ActionTopicWrite, actor.ID, permission.Target{})
			},
			CanMutate: func(actor identity.Identity, t Topic) bool {
				return permission.CanPerform(actor.Role, permission.ActionTopicWrite, actor.ID, permission.Target{OwnerID: t.AuthorID})
			},
		}),
	}
}

// Open starts a thread authored by the acting user.
func (t *Topics) Open(ctx context.Context, topic Topic) (Topic, error) {
	actor, err := t.deps.actor(ctx)
	if err != nil {
		return Topic{}, err
	}
	topic.AuthorID = actor.ID
	return t.Create(ctx, topic)
}

// Vote records the acting user's vote, at most once per user.
func (t *Topics) Vote(ctx context.Context, id string) error {
	return t.vote(ctx, id, true)
}

// Unvote withdraws a vote; absent votes are a no-op.
func (t *Topics) Unvote(ctx context.Context, id string) error {
	return t.vote(ctx, id, false)
}

func (t *Topics) vote(ctx context.Context, id string, up bool) error {
	actor, err := t.deps.actor(ctx)
	if err != nil {
		return err
	}
	if !permission.CanPerform(actor.Role, permission.ActionTopicVote, actor.ID, permission.Target{}) {
		return syncerrors.PermissionDenied("vote on topic %s", id)
	}

	var result ledger.Result
	if up {
		result, err = t.deps.Ledger.Add(ctx, t.Collection(), id, "votes", "voteCount", actor.ID)
	} else {
		result, err = t.deps.Ledger.Remove(ctx, t.Collection(), id, "votes", "voteCount", actor.ID)
	}
	if err != nil {
		return err
	}
	t.Reconcile(result.Doc)
	return nil
}
