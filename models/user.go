package models

import (
	"gorm.io/gorm"
)

// Roles a user account can hold. Role gates what the policy layer allows.
const (
	RoleAdmin          = "admin"
	RoleProjectManager = "project_manager"
	RoleDeveloper      = "developer"
	RoleViewer         = "viewer"
)

// ValidRole reports whether s is one of the known role names.
func ValidRole(s string) bool {
	switch s {
	case RoleAdmin, RoleProjectManager, RoleDeveloper, RoleViewer:
		return true
	}
	return false
}

// User represents a user account in the system
type User struct {
	gorm.Model

	// Authentication fields
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Profile information
	Name string `gorm:"not null" json:"name"`
	Role string `gorm:"default:'developer'" json:"role"` // admin, project_manager, developer, viewer

	// Relations
	Sessions      []Session      `gorm:"foreignKey:UserID" json:"-"`
	Notifications []Notification `gorm:"foreignKey:UserID" json:"-"`
}

// IsViewer reports whether the account is read-only.
func (u *User) IsViewer() bool {
	return u.Role == RoleViewer
}
