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

// Problem statuses. Resolved is terminal.
const (
	ProblemPending    = "pending"
	ProblemInProgress = "in_progress"
	ProblemResolved   = "resolved"
)

var problemTransitions = Transitions{
	ProblemPending:    {ProblemInProgress, ProblemResolved},
	ProblemInProgress: {ProblemResolved},
}

// Problem is a maintenance issue reported by a resident. ViewedBy is a
// membership set counting unique readers.
type Problem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	ReporterID  string    `json:"reporterId,omitempty"`
	Status      string    `json:"status"`
	ViewedBy    []string  `json:"viewedBy"`
	ViewCount   int       `json:"viewCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

func problemCodec() entity.Codec[Problem] {
	return entity.Codec[Problem]{
		Collection: "problems",
		Encode: func(p Problem) remote.Document {
			return remote.Document{
				"title":       p.Title,
				"description": p.Description,
				"location":    p.Location,
				"reporterId":  p.ReporterID,
				"status":      p.Status,
				"viewedBy":    p.ViewedBy,
				"viewCount":   p.ViewCount,
			}
		},
		Decode: func(doc remote.Document) Problem {
			return Problem{
				ID:          doc.ID(),
				Title:       doc.String("title"),
				Description: doc.String("description"),
				Location:    doc.String("location"),
				ReporterID:  doc.String("reporterId"),
				Status:      doc.String("status"),
				ViewedBy:    doc.StringSlice("viewedBy"),
				ViewCount:   doc.Int("viewCount"),
				CreatedAt:   doc.Time(remote.FieldCreatedAt),
			}
		},
		ID: func(p Problem) string { return p.ID },
	}
}

// Problems manages maintenance reports: residents report, staff work them.
type Problems struct {
	*entity.Store[Problem]
	deps Deps
}

func NewProblems(deps Deps) *Problems {
	return &Problems{
		deps: deps,
		Store: entity.NewStore(entity.Config[Problem]{
			Codec:    problemCodec(),
			Adapter:  deps.Adapter,
			Identity: deps.Identity,
			Metrics:  deps.Metrics,
			Logger:   deps.Logger,
			Query:    descendingByCreation(),
			Validate: func(p Problem) error {
				if p.Title == "" {
					return syncerrors.Validation("problem title is required")
				}
				return nil
			},
			CanCreate: func(actor identity.Identity, _ Problem) bool {
				return permission.CanPerform(actor.Role, permission.ActionProblemReport, actor.ID, permission.Target{})
			},
			CanMutate: func(actor identity.Identity, _ Problem) bool {
				return permission.CanPerform(actor.Role, permission.ActionProblemResolve, actor.ID, permission.Target{})
			},
		}),
	}
}

// Report opens a pending problem attributed to the acting user.
func (p *Problems) Report(ctx context.Context, problem Problem) (Problem, error) {
	actor, err := p.deps.actor(ctx)
	if err != nil {
		return Problem{}, err
	}
	problem.ReporterID = actor.ID
	problem.Status = ProblemPending
	return p.Create(ctx, problem)
}

// SetStatus advances the report through pending → in_progress → resolved.
func (p *Problems) SetStatus(ctx context.Context, id, status string) error {
	current, err := loadOne(ctx, p.Store, "problem", id)
	if err != nil {
		return err
	}
	if err := problemTransitions.Check("problem", current.Status, status); err != nil {
		return err
	}
	return p.Update(ctx, id, remote.Document{"status": status})
}

// MarkViewed counts the acting user as a reader, once. Repeat views never
// inflate the counter.
func (p *Problems) MarkViewed(ctx context.Context, id string) error {
	actor, err := p.deps.actor(ctx)
	if err != nil {
		return err
	}
	result, err := p.deps.Ledger.Add(ctx, p.Collection(), id, "viewedBy", "viewCount", actor.ID)
	if err != nil {
		return err
	}
	p.Reconcile(result.Doc)
	return nil
}
