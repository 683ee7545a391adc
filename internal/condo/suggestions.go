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

// Suggestion statuses. Approved and rejected are terminal.
const (
	SuggestionPending  = "pending"
	SuggestionApproved = "approved"
	SuggestionRejected = "rejected"
)

var suggestionTransitions = Transitions{
	SuggestionPending: {SuggestionApproved, SuggestionRejected},
}

// Suggestion is a resident proposal. Likes is a membership set; LikeCount
// always equals its cardinality.
type Suggestion struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	AuthorID    string    `json:"authorId,omitempty"`
	Status      string    `json:"status"`
	Likes       []string  `json:"likes"`
	LikeCount   int       `json:"likeCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

func suggestionCodec() entity.Codec[Suggestion] {
	return entity.Codec[Suggestion]{
		Collection: "suggestions",
		Encode: func(s Suggestion) remote.Document {
			return remote.Document{
				"title":       s.Title,
				"description": s.Description,
				"authorId":    s.AuthorID,
				"status":      s.Status,
				"likes":       s.Likes,
				"likeCount":   s.LikeCount,
			}
		},
		Decode: func(doc remote.Document) Suggestion {
			return Suggestion{
				ID:          doc.ID(),
				Title:       doc.String("title"),
				Description: doc.String("description"),
				AuthorID:    doc.String("authorId"),
				Status:      doc.String("status"),
				Likes:       doc.StringSlice("likes"),
				LikeCount:   doc.Int("likeCount"),
				CreatedAt:   doc.Time(remote.FieldCreatedAt),
			}
		},
		ID: func(s Suggestion) string { return s.ID },
	}
}

// Suggestions manages resident proposals: residents submit and like pending
// ones, managers close them out.
type Suggestions struct {
	*entity.Store[Suggestion]
	deps Deps
}

func NewSuggestions(deps Deps) *Suggestions {
	return &Suggestions{
		deps: deps,
		Store: entity.NewStore(entity.Config[Suggestion]{
			Codec:    suggestionCodec(),
			Adapter:  deps.Adapter,
			Identity: deps.Identity,
			Metrics:  deps.Metrics,
			Logger:   deps.Logger,
			Query:    descendingByCreation(),
			Validate: func(s Suggestion) error {
				if s.Title == "" {
					return syncerrors.Validation("suggestion title is required")
				}
				return nil
			},
			CanCreate: func(actor identity.Identity, _ Suggestion) bool {
				return permission.CanPerform(actor.Role, permission.ActionSuggestionCreate, actor.ID, permission.Target{})
			},
			CanMutate: func(actor identity.Identity, _ Suggestion) bool {
				return permission.CanPerform(actor.Role, permission.ActionSuggestionResolve, actor.ID, permission.Target{})
			},
		}),
	}
}

// Submit opens a pending suggestion authored by the acting user.
func (s *Suggestions) Submit(ctx context.Context, suggestion Suggestion) (Suggestion, error) {
	actor, err := s.deps.actor(ctx)
	if err != nil {
		return Suggestion{}, err
	}
	suggestion.AuthorID = actor.ID
	suggestion.Status = SuggestionPending
	return s.Create(ctx, suggestion)
}

// Like records the acting user's vote, at most once per user. Only residents
// may vote, and only while the suggestion is still pending.
func (s *Suggestions) Like(ctx context.Context, id string) error {
	return s.vote(ctx, id, true)
}

// Unlike withdraws a vote; absent votes are a no-op.
func (s *Suggestions) Unlike(ctx context.Context, id string) error {
	return s.vote(ctx, id, false)
}

func (s *Suggestions) vote(ctx context.Context, id string, like bool) error {
	actor, err := s.deps.actor(ctx)
	if err != nil {
		return err
	}
	current, err := loadOne(ctx, s.Store, "suggestion", id)
	if err != nil {
		return err
	}
	if !permission.CanPerform(actor.Role, permission.ActionSuggestionLike, actor.ID, permission.Target{Status: current.Status}) {
		return syncerrors.PermissionDenied("like suggestion %s", id)
	}

	var result ledger.Result
	if like {
		result, err = s.deps.Ledger.Add(ctx, s.Collection(), id, "likes", "likeCount", actor.ID)
	} else {
		result, err = s.deps.Ledger.Remove(ctx, s.Collection(), id, "likes", "likeCount", actor.ID)
	}
	if err != nil {
		return err
	}
	s.Reconcile(result.Doc)
	return nil
}

// Resolve closes a pending suggestion as approved or rejected.
func (s *Suggestions) Resolve(ctx context.Context, id, status string) error {
	current, err := loadOne(ctx, s.Store, "suggestion", id)
	if err != nil {
		return err
	}
	if err := suggestionTransitions.Check("suggestion", current.Status, status); err != nil {
		return err
	}
	return s.Update(ctx, id, remote.Document{"status": status})
}
