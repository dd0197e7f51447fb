package models

import (
	"time"

	"gorm.io/gorm"
)

// Sprint status values. Transitions only move forward, never back to
// an earlier state.
const (
	SprintPlanning = "planning"
	SprintActive   = "active"
	SprintClosed   = "closed"
)

// Sprint represents a time-boxed iteration over a subset of a project's issues
type Sprint struct {
	gorm.Model

	ProjectID uint   `gorm:"not null;index" json:"project_id"`
	Name      string `gorm:"not null" json:"name"`

	Status    string     `gorm:"default:'planning'" json:"status"` // planning, active, closed
	StartDate *time.Time `json:"start_date,omitempty"`             // mutable only while planning
	EndDate   *time.Time `json:"end_date,omitempty"`               // mutable only while planning
	ClosedAt  *time.Time `json:"closed_at,omitempty"`

	// Relations
	Project Project `json:"-"`
	Issues  []Issue `gorm:"foreignKey:SprintID" json:"issues,omitempty"`
}
