package models

import "time"

// Presence statuses derived from connection activity.
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusOffline = "offline"
)

// Account roles. Room-scoped roles live on RoomMember.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered identity. Accounts are soft-disabled via IsActive,
// never deleted, so rooms and messages keep valid author references.
type User struct {
	UserID        int64     `db:"user_id" json:"user_id"`
	Name          string    `db:"name" json:"name"`
	Email         string    `db:"email" json:"email"`
	Password      string    `db:"password" json:"-"`
	Department    *string   `db:"department" json:"department,omitempty"`
	Role          string    `db:"role" json:"role"`
	Status        string    `db:"status" json:"status"`
	StatusMessage *string   `db:"status_message" json:"status_message,omitempty"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
