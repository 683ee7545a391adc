// Package permission centralizes role checks for the sync layer. Every
// mutation path consults CanPerform before touching the remote store; the
// gate is a UX short-circuit, with the authoritative check living server-side.
package permission

// Role is the condominium-wide role attached to an authenticated user.
type Role string

const (
	RoleVisitor  Role = "visitor"
	RoleResident Role = "resident"
	RoleDoorman  Role = "doorman"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleVisitor, RoleResident, RoleDoorman, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Action names a gated operation.
type Action string

const (
	ActionManageUsers       Action = "users.manage"
	ActionBulkNotify        Action = "notifications.bulk"
	ActionSystemSettings    Action = "settings.manage"
	ActionDebtorWrite       Action = "debtors.write"
	ActionMeetingCreate     Action = "meetings.create"
	ActionMeetingConfirm    Action = "meetings.confirm"
	ActionNewsWrite         Action = "news.write"
	ActionPackageHandle     Action = "packages.handle"
	ActionPetWrite          Action = "pets.write"
	ActionSuggestionCreate  Action = "suggestions.create"
	ActionSuggestionLike    Action = "suggestions.like"
	ActionSuggestionResolve Action = "suggestions.resolve"
	ActionProblemReport     Action = "problems.report"
	ActionProblemResolve    Action = "problems.resolve"
	ActionTopicVote         Action = "topics.vote"
	ActionTopicWrite        Action = "topics.write"
	ActionPostWrite         Action = "posts.write"
)

// Target carries the entity facts some rules depend on. The zero value is
// fine for rules that only look at the role.
type Target struct {
	OwnerID string
	Status  string
}

// CanPerform is the single authorization predicate. userID is the acting
// user, needed only for owner-scoped rules.
func CanPerform(role Role, action Action, userID string, target Target) bool {
	switch action {
	case ActionManageUsers, ActionBulkNotify, ActionSystemSettings:
		return role == RoleAdmin

	case ActionDebtorWrite, ActionMeetingCreate, ActionNewsWrite:
		return role == RoleManager || role == RoleAdmin

	case ActionPackageHandle:
		return role == RoleDoorman || role == RoleManager || role == RoleAdmin

	case ActionPetWrite:
		return role == RoleAdmin || (userID != "" && userID == target.OwnerID)

	case ActionSuggestionLike:
		// Residents only, and only while the suggestion is still open.
		return role == RoleResident && target.Status == "pending"

	case ActionSuggestionCreate, ActionProblemReport, ActionTopicVote, ActionMeetingConfirm:
		return role == RoleResident || role == RoleManager || role == RoleAdmin

	case ActionTopicWrite, ActionPostWrite:
		if role != RoleResident && role != RoleManager && role != RoleAdmin {
			return false
		}
		// Creation carries no owner yet; edits are author-or-staff.
		return target.OwnerID == "" || userID == target.OwnerID ||
			role == RoleManager || role == RoleAdmin

	case ActionSuggestionResolve, ActionProblemResolve:
		return role == RoleManager || role == RoleAdmin
	}
	return false
}
