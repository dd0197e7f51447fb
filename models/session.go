package models

import (
	"time"

	"gorm.io/gorm"
)

// SessionTTL is how long a session stays valid after creation. The hourly
// sweep evicts rows older than this, which revokes their tokens server-side.
const SessionTTL = 7 * 24 * time.Hour

// Session represents one issued login token. Token holds the JWT's jti;
// deleting the row (logout or sweep) invalidates the token.
type Session struct {
	gorm.Model

	Token  string `gorm:"uniqueIndex;not null" json:"-"`
	UserID uint   `gorm:"not null;index" json:"user_id"`

	// Relations
	User User `json:"-"`
}

// Expired reports whether the session has outlived SessionTTL.
func (s *Session) Expired(now time.Time) bool {
	return now.Sub(s.CreatedAt) > SessionTTL
}
