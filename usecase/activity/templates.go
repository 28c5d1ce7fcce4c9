package activity

import "github.com/flowboard/backend/domain"

// actionMeta pins the description template and default classification
// for each action. Rendered text is stored on the record so consumers
// never need this table.
type actionMeta struct {
	template string
	category domain.ActivityCategory
	severity domain.ActivitySeverity
}

// Templates with a target interpolate (actor, target); the rest only
// interpolate the actor.
var actionTable = map[string]actionMeta{
	domain.ActionTaskCreated: {
		template: "%s created task %q",
		category: domain.CategoryTask,
		severity: domain.SeverityLow,
	},
	domain.ActionTaskUpdated: {
		template: "%s updated task %q",
		category: domain.CategoryTask,
		severity: domain.SeverityLow,
	},
	domain.ActionTaskMoved: {
		template: "%s moved task %q",
		category: domain.CategoryTask,
		severity: domain.SeverityLow,
	},
	domain.ActionTaskAssigned: {
		template: "%s assigned task %q",
		category: domain.CategoryTask,
		severity: domain.SeverityLow,
	},
	domain.ActionTaskUnassigned: {
		template: "%s unassigned task %q",
		category: domain.CategoryTask,
		severity: domain.SeverityLow,
	},
	domain.ActionTaskCommented: {
		template: "%s commented on task %q",
		category: domain.CategoryTask,
		severity: domain.SeverityLow,
	},
	domain.ActionTaskArchived: {
		template: "%s archived task %q",
		category: domain.CategoryTask,
		severity: domain.SeverityMedium,
	},
	domain.ActionTaskDeleted: {
		template: "%s deleted task %q",
		category: domain.CategoryTask,
		severity: domain.SeverityHigh,
	},
	domain.ActionConflictDetected: {
		template: "%s hit a version conflict on task %q",
		category: domain.CategoryTask,
		severity: domain.SeverityMedium,
	},
	domain.ActionConflictResolved: {
		template: "%s resolved a conflict on task %q",
		category: domain.CategoryTask,
		severity: domain.SeverityMedium,
	},
	domain.ActionLogin: {
		template: "%s logged in",
		category: domain.CategorySecurity,
		severity: domain.SeverityLow,
	},
	domain.ActionLogout: {
		template: "%s logged out",
		category: domain.CategorySecurity,
		severity: domain.SeverityLow,
	},
	domain.ActionRegistered: {
		template: "%s registered",
		category: domain.CategorySecurity,
		severity: domain.SeverityMedium,
	},
	domain.ActionPasswordChanged: {
		template: "%s changed their password",
		category: domain.CategorySecurity,
		severity: domain.SeverityHigh,
	},
}
