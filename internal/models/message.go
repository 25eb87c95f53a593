package models

import "time"

// Message kinds.
const (
	MessageText   = "text"
	MessageImage  = "image"
	MessageFile   = "file"
	MessageSystem = "system"
)

// Message is append-only in effect: edits set EditedAt and deletes set
// IsDeleted so ordering and reply references stay intact.
type Message struct {
	MessageID        int64      `db:"message_id" json:"message_id"`
	RoomID           int64      `db:"room_id" json:"room_id"`
	UserID           int64      `db:"user_id" json:"user_id"`
	Content          string     `db:"content" json:"content"`
	MessageType      string     `db:"message_type" json:"message_type"`
	ReplyToMessageID *int64     `db:"reply_to_message_id" json:"reply_to_message_id,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	EditedAt         *time.Time `db:"edited_at" json:"edited_at,omitempty"`
	IsDeleted        bool       `db:"is_deleted" json:"is_deleted"`
}

// MessageReaction holds at most one emoji per user per message; setting a
// second emoji replaces the first (last write wins).
type MessageReaction struct {
	ID        int64     `db:"id" json:"id"`
	MessageID int64     `db:"message_id" json:"message_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
