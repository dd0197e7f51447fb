package utils

import (
	"taskory/models"
)

// Actions understood by Can. Handlers never test roles inline; every
// role/ownership rule lives in this one decision table.
const (
	ActProjectCreate = "project.create"
	ActProjectUpdate = "project.update"
	ActProjectDelete = "project.delete"

	ActWorkflowUpdate = "workflow.update"

	ActIssueCreate = "issue.create"
	ActIssueUpdate = "issue.update"
	ActIssueDelete = "issue.delete"

	ActSprintManage = "sprint.manage" // create, start, close, update
	ActSprintDelete = "sprint.delete"

	ActCommentCreate = "comment.create"
	ActCommentUpdate = "comment.update"
	ActCommentDelete = "comment.delete"

	ActAttachmentCreate = "attachment.create"
	ActAttachmentDelete = "attachment.delete"

	ActNotificationRead = "notification.read" // mark read / mark all read
)

// Resource carries the ownership facts a decision needs. Callers fill in
// what applies: CreatorID doubles as comment author, attachment uploader
// and notification recipient.
type Resource struct {
	ProjectOwnerID uint
	ProjectLeadID  *uint
	CreatorID      uint
	AssigneeID     *uint
	AISuggestion   bool
}

// Can reports whether actor may perform action on the resource.
func Can(actor *models.User, action string, res Resource) bool {
	if actor == nil {
		return false
	}

	isAdmin := actor.Role == models.RoleAdmin
	isOwner := res.ProjectOwnerID != 0 && res.ProjectOwnerID == actor.ID
	isLead := res.ProjectLeadID != nil && *res.ProjectLeadID == actor.ID
	isCreator := res.CreatorID != 0 && res.CreatorID == actor.ID
	isAssignee := res.AssigneeID != nil && *res.AssigneeID == actor.ID

	switch action {
	case ActProjectCreate:
		return isAdmin || actor.Role == models.RoleProjectManager
	case ActProjectUpdate:
		return isAdmin || isOwner
	case ActProjectDelete, ActSprintDelete:
		return isAdmin
	case ActWorkflowUpdate, ActSprintManage:
		return isAdmin || isOwner || isLead
	case ActIssueCreate, ActCommentCreate, ActAttachmentCreate:
		return !actor.IsViewer()
	case ActIssueUpdate, ActIssueDelete:
		return isAdmin || isCreator || isAssignee || isOwner
	case ActCommentUpdate:
		// AI suggestion comments are immutable for everyone
		return isCreator && !res.AISuggestion
	case ActCommentDelete, ActAttachmentDelete:
		return isAdmin || isCreator || isOwner
	case ActNotificationRead:
		return isCreator
	}
	return false
}
