package models

import (
	"time"

	"gorm.io/gorm"
)

// Issue represents a unit of tracked work inside a project
type Issue struct {
	gorm.Model

	ProjectID uint `gorm:"not null;index" json:"project_id"` // immutable after creation

	// Content
	Title       string   `gorm:"not null" json:"title"`
	Description string   `json:"description"`
	Priority    string   `gorm:"default:'Medium'" json:"priority"` // free text: Low, Medium, High, Critical, ...
	Status      string   `gorm:"not null" json:"status"`           // must be a member of the project workflow
	Labels      []string `gorm:"serializer:json" json:"labels"`

	// References
	AssigneeID *uint `gorm:"index" json:"assignee_id,omitempty"`
	ParentID   *uint `gorm:"index" json:"parent_id,omitempty"` // same project, one level
	SprintID   *uint `gorm:"index" json:"sprint_id,omitempty"` // sprint's project must match
	CreatorID  uint  `gorm:"not null;index" json:"creator_id"`

	// Timestamps
	DueDate *time.Time `json:"due_date,omitempty"`
	DoneAt  *time.Time `json:"done_at,omitempty"` // set on entering "Done", cleared on leaving it

	// Relations
	Project     Project      `json:"-"`
	Assignee    *User        `json:"-"`
	Creator     User         `json:"-"`
	Comments    []Comment    `gorm:"foreignKey:IssueID" json:"comments,omitempty"`
	Attachments []Attachment `gorm:"foreignKey:IssueID" json:"attachments,omitempty"`
}

// Comment represents a discussion entry on an issue
type Comment struct {
	gorm.Model

	IssueID  uint `gorm:"not null;index" json:"issue_id"`
	AuthorID uint `gorm:"not null;index" json:"author_id"`

	Content        string `gorm:"not null;type:text" json:"content"`
	IsAISuggestion bool   `gorm:"default:false" json:"is_ai_suggestion"`
	Edited         bool   `gorm:"default:false" json:"edited"`

	// Relations
	Issue  Issue `json:"-"`
	Author User  `json:"-"`
}

// Attachment represents an uploaded file bound to an issue. It owns one
// file on disk named StoredName under the configured upload directory.
type Attachment struct {
	gorm.Model

	IssueID    uint `gorm:"not null;index" json:"issue_id"`
	UploaderID uint `gorm:"not null;index" json:"uploader_id"`

	StoredName   string `gorm:"not null;uniqueIndex" json:"stored_name"`
	OriginalName string `gorm:"not null" json:"original_name"`
	Size         int64  `gorm:"not null" json:"size"`
	MimeType     string `json:"mime_type"`

	// Relations
	Issue    Issue `json:"-"`
	Uploader User  `json:"-"`
}
