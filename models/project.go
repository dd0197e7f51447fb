package models

import (
	"gorm.io/gorm"
)

// Project represents a body of work owning issues, sprints and one workflow
type Project struct {
	gorm.Model

	Name        string `gorm:"not null" json:"name"`
	Key         string `gorm:"uniqueIndex;not null" json:"key"` // short uppercase identifier, e.g. "ALP"
	Description string `json:"description"`
	OwnerID     uint   `gorm:"not null;index" json:"owner_id"`
	LeadID      *uint  `json:"lead_id,omitempty"`

	// Relations
	Owner    User      `json:"-"`
	Lead     *User     `json:"-"`
	Issues   []Issue   `gorm:"foreignKey:ProjectID" json:"issues,omitempty"`
	Sprints  []Sprint  `gorm:"foreignKey:ProjectID" json:"sprints,omitempty"`
	Workflow *Workflow `gorm:"foreignKey:ProjectID" json:"workflow,omitempty"`
}

// DefaultStatuses is the pipeline every project starts with. The first
// entry is the status new issues receive when none is given.
var DefaultStatuses = []string{"To Do", "In Progress", "Done"}

// StatusDone marks issue completion; entering it sets DoneAt, leaving it clears it.
const StatusDone = "Done"

// Workflow represents the ordered status pipeline of one project
type Workflow struct {
	gorm.Model

	ProjectID   uint                `gorm:"not null;uniqueIndex" json:"project_id"`
	Statuses    []string            `gorm:"serializer:json" json:"statuses"`    // insertion order = pipeline order
	Transitions map[string][]string `gorm:"serializer:json" json:"transitions"` // stored but not enforced
}

// HasStatus reports whether name is a member of the workflow's status list.
func (w *Workflow) HasStatus(name string) bool {
	for _, s := range w.Statuses {
		if s == name {
			return true
		}
	}
	return false
}
