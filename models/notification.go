package models

import (
	"gorm.io/gorm"
)

// RelatedType values linking a notification to the entity it is about.
// Cascades prune by (RelatedType, RelatedID), never by message text.
const (
	RelatedProject = "project"
	RelatedIssue   = "issue"
	RelatedSprint  = "sprint"
)

// Notification represents an unread-by-default message delivered to one user
type Notification struct {
	gorm.Model

	UserID  uint   `gorm:"not null;index" json:"user_id"`
	Message string `gorm:"not null" json:"message"`
	Read    bool   `gorm:"default:false" json:"read"`

	// Entity linkage
	RelatedType string `gorm:"index:idx_notifications_related" json:"related_type"` // project, issue, sprint
	RelatedID   uint   `gorm:"index:idx_notifications_related" json:"related_id"`

	// Relations
	User User `json:"-"`
}
