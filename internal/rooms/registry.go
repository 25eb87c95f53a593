package rooms

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"chat-server/internal/models"
	"chat-server/internal/repositories"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotMember        = errors.New("not a room member")
)

const (
	maxRoomNameLen        = 50
	maxRoomDescriptionLen = 200
)

// Registry is the authoritative in-memory view of room membership, backed by
// the store. Every membership write goes through the repository first and the
// snapshot is updated only after the write succeeds, so the cache never leads
// the database. The broadcast router resolves recipients from this snapshot
// without touching the store.
type Registry struct {
	repo repositories.RoomRepository

	mu      sync.RWMutex
	members map[int64]map[int64]string // room id -> user id -> role
}

// NewRegistry constructs an empty registry over the repository.
func NewRegistry(repo repositories.RoomRepository) *Registry {
	return &Registry{
		repo:    repo,
		members: make(map[int64]map[int64]string),
	}
}

// Load warms the membership snapshot from the store. Called once at startup
// before the server accepts connections.
func (r *Registry) Load(ctx context.Context) error {
	memberships, err := r.repo.ListMemberships(ctx)
	if err != nil {
		return fmt.Errorf("load memberships: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = make(map[int64]map[int64]string, len(memberships))
	for _, m := range memberships {
		if _, ok := r.members[m.RoomID]; !ok {
			r.members[m.RoomID] = make(map[int64]string)
		}
		r.members[m.RoomID][m.UserID] = m.Role
	}
	return nil
}

// CreateRoom validates input, persists the room together with its owner
// membership (single transaction, no partial state) and caches the owner.
func (r *Registry) CreateRoom(ctx context.Context, name, description, roomType string, creatorID int64) (models.Room, error) {
	if name == "" {
		return models.Room{}, fmt.Errorf("%w: room name is required", ErrValidation)
	}
	if len(name) > maxRoomNameLen {
		return models.Room{}, fmt.Errorf("%w: room name exceeds %d characters", ErrValidation, maxRoomNameLen)
	}
	if len(description) > maxRoomDescriptionLen {
		return models.Room{}, fmt.Errorf("%w: description exceeds %d characters", ErrValidation, maxRoomDescriptionLen)
	}
	switch roomType {
	case "":
		roomType = models.RoomPublic
	case models.RoomPublic, models.RoomPrivate:
	default:
		return models.Room{}, fmt.Errorf("%w: room type must be public or private", ErrValidation)
	}

	room, err := r.repo.CreateRoom(ctx, name, description, roomType, creatorID)
	if err != nil {
		return models.Room{}, err
	}

	r.mu.Lock()
	r.members[room.RoomID] = map[int64]string{creatorID: models.MemberOwner}
	r.mu.Unlock()
	return room, nil
}

// DeleteRoom soft-deactivates the room and drops all memberships. Owner only.
// Returns the former member ids so the caller can notify their clients.
func (r *Registry) DeleteRoom(ctx context.Context, roomID, requesterID int64) ([]int64, error) {
	role, ok := r.RoleOf(roomID, requesterID)
	if !ok || role != models.MemberOwner {
		return nil, ErrPermissionDenied
	}

	former := r.MemberIDs(roomID)
	if err := r.repo.DeactivateRoom(ctx, roomID); err != nil {
		return nil, err
	}

	r.mu.Lock()
	delete(r.members, roomID)
	r.mu.Unlock()
	return former, nil
}

// Join adds the user as a member. Joining a room twice is an idempotent
// no-op: the second call reports joined=false with no error. Private rooms
// refuse uninvited joins.
func (r *Registry) Join(ctx context.Context, roomID, userID int64) (bool, error) {
	if _, ok := r.RoleOf(roomID, userID); ok {
		return false, nil
	}

	room, err := r.repo.GetRoom(ctx, roomID)
	if err != nil {
		return false, err
	}
	if !room.IsActive {
		return false, repositories.ErrRoomNotFound
	}
	if room.RoomType == models.RoomPrivate {
		return false, ErrPermissionDenied
	}

	if _, err := r.repo.AddMember(ctx, roomID, userID, models.MemberMember); err != nil {
		return false, err
	}

	r.mu.Lock()
	if _, ok := r.members[roomID]; !ok {
		r.members[roomID] = make(map[int64]string)
	}
	r.members[roomID][userID] = models.MemberMember
	r.mu.Unlock()
	return true, nil
}

// Leave removes the user's membership. The owner cannot leave; the room must
// be deleted instead.
func (r *Registry) Leave(ctx context.Context, roomID, userID int64) error {
	role, ok := r.RoleOf(roomID, userID)
	if !ok {
		return ErrNotMember
	}
	if role == models.MemberOwner {
		return ErrPermissionDenied
	}

	if err := r.repo.RemoveMember(ctx, roomID, userID); err != nil {
		return err
	}

	r.removeCached(roomID, userID)
	return nil
}

// Kick removes another member. The requester must be owner or admin, the
// target must be a member and must not be the owner. Kicking yourself is
// denied; use Leave.
func (r *Registry) Kick(ctx context.Context, roomID, targetID, requesterID int64) error {
	requesterRole, ok := r.RoleOf(roomID, requesterID)
	if !ok || (requesterRole != models.MemberOwner && requesterRole != models.MemberAdmin) {
		return ErrPermissionDenied
	}
	if targetID == requesterID {
		return ErrPermissionDenied
	}

	targetRole, ok := r.RoleOf(roomID, targetID)
	if !ok {
		return ErrNotMember
	}
	if targetRole == models.MemberOwner {
		return ErrPermissionDenied
	}

	if err := r.repo.RemoveMember(ctx, roomID, targetID); err != nil {
		return err
	}

	r.removeCached(roomID, targetID)
	return nil
}

// UpdateRole promotes or demotes a member between admin and member. Owner
// only; the owner role itself can never be granted or revoked here.
func (r *Registry) UpdateRole(ctx context.Context, roomID, targetID int64, newRole string, requesterID int64) error {
	if newRole != models.MemberAdmin && newRole != models.MemberMember {
		return fmt.Errorf("%w: role must be admin or member", ErrValidation)
	}

	requesterRole, ok := r.RoleOf(roomID, requesterID)
	if !ok || requesterRole != models.MemberOwner {
		return ErrPermissionDenied
	}

	targetRole, ok := r.RoleOf(roomID, targetID)
	if !ok {
		return ErrNotMember
	}
	if targetRole == models.MemberOwner {
		return ErrPermissionDenied
	}

	if err := r.repo.UpdateMemberRole(ctx, roomID, targetID, newRole); err != nil {
		return err
	}

	r.mu.Lock()
	if room, ok := r.members[roomID]; ok {
		room[targetID] = newRole
	}
	r.mu.Unlock()
	return nil
}

// MembersOf returns the membership panel view from the store, ordered by
// join time.
func (r *Registry) MembersOf(ctx context.Context, roomID int64) ([]models.RoomMemberInfo, error) {
	if _, ok := r.roomSnapshot(roomID); !ok {
		return nil, repositories.ErrRoomNotFound
	}
	return r.repo.ListMembers(ctx, roomID)
}

// MemberIDs returns a sorted snapshot of the room's member ids. Empty slice
// for unknown rooms.
func (r *Registry) MemberIDs(roomID int64) []int64 {
	room, ok := r.roomSnapshot(roomID)
	if !ok {
		return nil
	}
	ids := make([]int64, 0, len(room))
	for id := range room {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IsMember reports whether the user belongs to the room.
func (r *Registry) IsMember(roomID, userID int64) bool {
	_, ok := r.RoleOf(roomID, userID)
	return ok
}

// RoleOf returns the user's role in the room.
func (r *Registry) RoleOf(roomID, userID int64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.members[roomID]
	if !ok {
		return "", false
	}
	role, ok := room[userID]
	return role, ok
}

// RoomsFor returns the ids of rooms the user belongs to.
func (r *Registry) RoomsFor(userID int64) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []int64
	for roomID, room := range r.members {
		if _, ok := room[userID]; ok {
			ids = append(ids, roomID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) roomSnapshot(roomID int64) (map[int64]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.members[roomID]
	if !ok {
		return nil, false
	}
	copied := make(map[int64]string, len(room))
	for id, role := range room {
		copied[id] = role
	}
	return copied, true
}

func (r *Registry) removeCached(roomID, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.members[roomID]; ok {
		delete(room, userID)
		if len(room) == 0 {
			delete(r.members, roomID)
		}
	}
}
