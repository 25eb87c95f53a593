package models

import "time"

// Room visibility.
const (
	RoomPublic  = "public"
	RoomPrivate = "private"
)

// Room-scoped member roles.
const (
	MemberOwner  = "owner"
	MemberAdmin  = "admin"
	MemberMember = "member"
)

// Room is a named broadcast scope with persistent membership.
type Room struct {
	RoomID               int64     `db:"room_id" json:"room_id"`
	Name                 string    `db:"name" json:"name"`
	Description          string    `db:"description" json:"description"`
	RoomType             string    `db:"room_type" json:"room_type"`
	CreatedBy            int64     `db:"created_by" json:"created_by"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
	IsActive             bool      `db:"is_active" json:"is_active"`
	NotificationsEnabled bool      `db:"notifications_enabled" json:"notifications_enabled"`
	IsFavorite           bool      `db:"is_favorite" json:"is_favorite"`
	PinnedMessageID      *int64    `db:"pinned_message_id" json:"pinned_message_id,omitempty"`
}

// RoomMember binds one identity to one room with a role.
// Exactly one owner exists per room: the creator.
type RoomMember struct {
	ID         int64     `db:"id" json:"id"`
	RoomID     int64     `db:"room_id" json:"room_id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	Role       string    `db:"role" json:"role"`
	JoinedAt   time.Time `db:"joined_at" json:"joined_at"`
	LastReadAt time.Time `db:"last_read_at" json:"last_read_at"`
}

// RoomMemberInfo is the membership panel view, joined with user details.
type RoomMemberInfo struct {
	UserID   int64     `db:"user_id" json:"user_id"`
	Name     string    `db:"name" json:"name"`
	Email    string    `db:"email" json:"email"`
	Role     string    `db:"role" json:"role"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}
