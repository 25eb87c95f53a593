package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-server/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `message_id, room_id, user_id, content, message_type, reply_to_message_id, created_at, updated_at, edited_at, is_deleted`

// MessageRepository abstracts message and reaction persistence.
type MessageRepository interface {
	CreateMessage(ctx context.Context, roomID, userID int64, content, messageType string, replyTo *int64) (models.Message, error)
	ListRoomMessages(ctx context.Context, roomID int64, limit int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	EditMessage(ctx context.Context, messageID, userID int64, content string) (models.Message, error)
	MarkDeleted(ctx context.Context, messageID int64) error
	SetReaction(ctx context.Context, messageID, userID int64, emoji string) error
	ClearReaction(ctx context.Context, messageID, userID int64) error
	ListReactions(ctx context.Context, messageIDs []int64) ([]models.MessageReaction, error)
}

// MessageRepo is a sqlx implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage persists a message and returns the stored row.
func (r *MessageRepo) CreateMessage(ctx context.Context, roomID, userID int64, content, messageType string, replyTo *int64) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (room_id, user_id, content, message_type, reply_to_message_id) VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		roomID, userID, content, messageType, replyTo).StructScan(&msg)
	return msg, err
}

// ListRoomMessages returns the most recent messages in chronological order.
// Deleted messages keep their slot with blanked content so reply references
// stay resolvable.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, roomID int64, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT * FROM (
            SELECT `+messageColumns+` FROM messages WHERE room_id=$1 ORDER BY created_at DESC, message_id DESC LIMIT $2
         ) recent ORDER BY created_at ASC, message_id ASC`, roomID, limit)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if msgs[i].IsDeleted {
			msgs[i].Content = ""
		}
	}
	return msgs, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE message_id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// EditMessage replaces content for the author's own, undeleted message and
// stamps edited_at.
func (r *MessageRepo) EditMessage(ctx context.Context, messageID, userID int64, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET content=$3, edited_at=NOW(), updated_at=NOW()
         WHERE message_id=$1 AND user_id=$2 AND is_deleted=FALSE
         RETURNING `+messageColumns,
		messageID, userID, content).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkDeleted flags the message as deleted. The row survives so ordering and
// reply references are preserved.
func (r *MessageRepo) MarkDeleted(ctx context.Context, messageID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_deleted=TRUE, updated_at=NOW() WHERE message_id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// SetReaction upserts the caller's reaction. One emoji per user per message;
// last write wins.
func (r *MessageRepo) SetReaction(ctx context.Context, messageID, userID int64, emoji string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO message_reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
         ON CONFLICT (message_id, user_id) DO UPDATE SET emoji=EXCLUDED.emoji, created_at=NOW()`,
		messageID, userID, emoji)
	return err
}

// ClearReaction removes the caller's reaction if present.
func (r *MessageRepo) ClearReaction(ctx context.Context, messageID, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM message_reactions WHERE message_id=$1 AND user_id=$2`, messageID, userID)
	return err
}

// ListReactions returns reactions for a batch of messages.
func (r *MessageRepo) ListReactions(ctx context.Context, messageIDs []int64) ([]models.MessageReaction, error) {
	if len(messageIDs) == 0 {
		return []models.MessageReaction{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, message_id, user_id, emoji, created_at FROM message_reactions WHERE message_id IN (?)`, messageIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)
	var reactions []models.MessageReaction
	err = r.db.SelectContext(ctx, &reactions, query, args...)
	return reactions, err
}
