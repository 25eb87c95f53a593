package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-server/internal/models"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrMemberNotFound = errors.New("member not found")
)

const roomColumns = `room_id, name, description, room_type, created_by, created_at, updated_at, is_active, notifications_enabled, is_favorite, pinned_message_id`

// RoomRepository abstracts room and membership persistence.
type RoomRepository interface {
	CreateRoom(ctx context.Context, name, description, roomType string, creatorID int64) (models.Room, error)
	GetRoom(ctx context.Context, roomID int64) (models.Room, error)
	ListRoomsForUser(ctx context.Context, userID int64) ([]models.Room, error)
	DeactivateRoom(ctx context.Context, roomID int64) error
	AddMember(ctx context.Context, roomID, userID int64, role string) (models.RoomMember, error)
	RemoveMember(ctx context.Context, roomID, userID int64) error
	UpdateMemberRole(ctx context.Context, roomID, userID int64, role string) error
	ListMembers(ctx context.Context, roomID int64) ([]models.RoomMemberInfo, error)
	ListMemberships(ctx context.Context) ([]models.RoomMember, error)
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// CreateRoom inserts the room and its owner membership in one transaction.
// Either both rows exist afterwards or neither does; a room without an owner
// is never observable.
func (r *RoomRepo) CreateRoom(ctx context.Context, name, description, roomType string, creatorID int64) (models.Room, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var room models.Room
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO rooms (name, description, room_type, created_by) VALUES ($1, $2, $3, $4) RETURNING `+roomColumns,
		name, description, roomType, creatorID).StructScan(&room); err != nil {
		return models.Room{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO room_members (room_id, user_id, role) VALUES ($1, $2, $3)`,
		room.RoomID, creatorID, models.MemberOwner); err != nil {
		return models.Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// GetRoom fetches a single room row, active or not.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID int64) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM rooms WHERE room_id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// ListRoomsForUser returns the active rooms the user belongs to.
func (r *RoomRepo) ListRoomsForUser(ctx context.Context, userID int64) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.SelectContext(ctx, &rooms,
		`SELECT r.room_id, r.name, r.description, r.room_type, r.created_by, r.created_at, r.updated_at, r.is_active, r.notifications_enabled, r.is_favorite, r.pinned_message_id
         FROM rooms r
         INNER JOIN room_members rm ON rm.room_id = r.room_id
         WHERE rm.user_id=$1 AND r.is_active=TRUE
         ORDER BY r.created_at DESC`, userID)
	return rooms, err
}

// DeactivateRoom soft-deletes the room and removes all memberships in one
// transaction. Messages are kept for reply references.
func (r *RoomRepo) DeactivateRoom(ctx context.Context, roomID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var res sql.Result
	if res, err = tx.ExecContext(ctx, `UPDATE rooms SET is_active=FALSE, updated_at=NOW() WHERE room_id=$1 AND is_active=TRUE`, roomID); err != nil {
		return err
	}
	var count int64
	if count, err = res.RowsAffected(); err != nil {
		return err
	}
	if count == 0 {
		err = ErrRoomNotFound
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM room_members WHERE room_id=$1`, roomID); err != nil {
		return err
	}

	return tx.Commit()
}

// AddMember inserts a membership row.
func (r *RoomRepo) AddMember(ctx context.Context, roomID, userID int64, role string) (models.RoomMember, error) {
	var member models.RoomMember
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO room_members (room_id, user_id, role) VALUES ($1, $2, $3) RETURNING id, room_id, user_id, role, joined_at, last_read_at`,
		roomID, userID, role).StructScan(&member)
	return member, err
}

// RemoveMember deletes a membership row.
func (r *RoomRepo) RemoveMember(ctx context.Context, roomID, userID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM room_members WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// UpdateMemberRole changes a member's room role.
func (r *RoomRepo) UpdateMemberRole(ctx context.Context, roomID, userID int64, role string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE room_members SET role=$3 WHERE room_id=$1 AND user_id=$2`, roomID, userID, role)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// ListMembers returns the membership panel view ordered by join time.
func (r *RoomRepo) ListMembers(ctx context.Context, roomID int64) ([]models.RoomMemberInfo, error) {
	var members []models.RoomMemberInfo
	err := r.db.SelectContext(ctx, &members,
		`SELECT u.user_id, u.name, u.email, rm.role, rm.joined_at
         FROM room_members rm
         INNER JOIN users u ON u.user_id = rm.user_id
         WHERE rm.room_id=$1
         ORDER BY rm.joined_at ASC`, roomID)
	return members, err
}

// ListMemberships returns every membership row, used to warm the in-memory
// registry at startup.
func (r *RoomRepo) ListMemberships(ctx context.Context) ([]models.RoomMember, error) {
	var members []models.RoomMember
	err := r.db.SelectContext(ctx, &members,
		`SELECT rm.id, rm.room_id, rm.user_id, rm.role, rm.joined_at, rm.last_read_at
         FROM room_members rm
         INNER JOIN rooms r ON r.room_id = rm.room_id
         WHERE r.is_active=TRUE`)
	return members, err
}
