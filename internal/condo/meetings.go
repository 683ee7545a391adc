package condo

import (
	"context"
	"time"

	"condosync/internal/entity"
	"condosync/internal/identity"
	"condosync/internal/ledger"
	"condosync/internal/notify"
	"condosync/internal/permission"
	"condosync/internal/remote"
	"condosync/pkg/syncerrors"
)

// Meeting is an assembly residents confirm attendance for. ConfirmedAttendees
// is a membership set; AttendeeCount always equals its cardinality.
type Meeting struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	Location           string    `json:"location,omitempty"`
	ScheduledAt        time.Time `json:"scheduledAt"`
	CreatedBy          string    `json:"createdBy,omitempty"`
	ConfirmedAttendees []string  `json:"confirmedAttendees"`
	AttendeeCount      int       `json:"attendeeCount"`
	CreatedAt          time.Time `json:"createdAt"`
}

func meetingCodec() entity.Codec[Meeting] {
	return entity.Codec[Meeting]{
		Collection: "meetings",
		Encode: func(m Meeting) remote.Document {
			return remote.Document{
				"title":              m.Title,
				"description":        m.Description,
				"location":           m.Location,
				"scheduledAt":        m.ScheduledAt,
				"createdBy":          m.CreatedBy,
				"confirmedAttendees": m.ConfirmedAttendees,
				"attendeeCount":      m.AttendeeCount,
			}
		},
		Decode: func(doc remote.Document) Meeting {
			return Meeting{
				ID:                 doc.ID(),
				Title:              doc.String("title"),
				Description:        doc.String("description"),
				Location:           doc.String("location"),
				ScheduledAt:        doc.Time("scheduledAt"),
				CreatedBy:          doc.String("createdBy"),
				ConfirmedAttendees: doc.StringSlice("confirmedAttendees"),
				AttendeeCount:      doc.Int("attendeeCount"),
				CreatedAt:          doc.Time(remote.FieldCreatedAt),
			}
		},
		ID: func(m Meeting) string { return m.ID },
	}
}

// Meetings manages assemblies. Creation is manager-or-admin; attendance is
// open to residents and staff.
type Meetings struct {
	*entity.Store[Meeting]
	deps Deps
}

func NewMeetings(deps Deps) *Meetings {
	staff := func(actor identity.Identity, _ Meeting) bool {
		return permission.CanPerform(actor.Role, permission.ActionMeetingCreate, actor.ID, permission.Target{})
	}
	return &Meetings{
		deps: deps,
		Store: entity.NewStore(entity.Config[Meeting]{
			Codec:    meetingCodec(),
			Adapter:  deps.Adapter,
			Identity: deps.Identity,
			Metrics:  deps.Metrics,
			Logger:   deps.Logger,
			Query:    descendingByCreation(),
			Validate: func(m Meeting) error {
				if m.Title == "" {
					return syncerrors.Validation("meeting title is required")
				}
				if m.ScheduledAt.IsZero() {
					return syncerrors.Validation("meeting schedule is required")
				}
				return nil
			},
			CanCreate: staff,
			CanMutate: staff,
		}),
	}
}

// CreateAndAnnounce creates the meeting and emits one notification per
// resident. Each emission is deduped on (meeting, resident), so a retried
// announcement only fills the gaps left by a partial earlier run.
func (m *Meetings) CreateAndAnnounce(ctx context.Context, meeting Meeting, residentIDs []string) (Meeting, error) {
	created, err := m.Create(ctx, meeting)
	if err != nil {
		return Meeting{}, err
	}
	if m.deps.Notifier == nil {
		return created, nil
	}
	for _, residentID := range residentIDs {
		_, err := m.deps.Notifier.Notify(ctx, notify.Notification{
			Title:         "New assembly scheduled",
			Message:       created.Title + " at " + created.Location,
			Type:          notify.TypeMeetingCreated,
			RelatedItemID: created.ID,
			TargetUserID:  residentID,
		})
		if err != nil && m.deps.Logger != nil {
			m.deps.Logger.Warn("meeting announcement failed",
				"meeting", created.ID,
				"resident", residentID,
				"error", err,
			)
		}
	}
	return created, nil
}

// ConfirmAttendance adds the acting user to the attendee set, once.
func (m *Meetings) ConfirmAttendance(ctx context.Context, id string) error {
	return m.attendance(ctx, id, true)
}

// CancelAttendance removes the acting user from the attendee set.
func (m *Meetings) CancelAttendance(ctx context.Context, id string) error {
	return m.attendance(ctx, id, false)
}

func (m *Meetings) attendance(ctx context.Context, id string, confirm bool) error {
	actor, err := m.deps.actor(ctx)
	if err != nil {
		return err
	}
	if !permission.CanPerform(actor.Role, permission.ActionMeetingConfirm, actor.ID, permission.Target{}) {
		return syncerrors.PermissionDenied("confirm attendance for meeting %s", id)
	}

	var result ledger.Result
	if confirm {
		result, err = m.deps.Ledger.Add(ctx, m.Collection(), id, "confirmedAttendees", "attendeeCount", actor.ID)
	} else {
		result, err = m.deps.Ledger.Remove(ctx, m.Collection(), id, "confirmedAttendees", "attendeeCount", actor.ID)
	}
	if err != nil {
		return err
	}
	m.Reconcile(result.Doc)
	return nil
}
