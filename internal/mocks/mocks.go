package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-server/internal/models"
	"chat-server/internal/repositories"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) CreateUser(ctx context.Context, name, email, passwordHash string, department *string) (models.User, error) {
	args := m.Called(ctx, name, email, passwordHash, department)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int64) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) UpdateProfile(ctx context.Context, userID int64, name, department, statusMessage *string) (models.User, error) {
	args := m.Called(ctx, userID, name, department, statusMessage)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) UpdateStatus(ctx context.Context, userID int64, status string) error {
	args := m.Called(ctx, userID, status)
	return args.Error(0)
}

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) CreateRoom(ctx context.Context, name, description, roomType string, creatorID int64) (models.Room, error) {
	args := m.Called(ctx, name, description, roomType, creatorID)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) GetRoom(ctx context.Context, roomID int64) (models.Room, error) {
	args := m.Called(ctx, roomID)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) ListRoomsForUser(ctx context.Context, userID int64) ([]models.Room, error) {
	args := m.Called(ctx, userID)
	var roomList []models.Room
	if val := args.Get(0); val != nil {
		roomList = val.([]models.Room)
	}
	return roomList, args.Error(1)
}

func (m *RoomRepositoryMock) DeactivateRoom(ctx context.Context, roomID int64) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) AddMember(ctx context.Context, roomID, userID int64, role string) (models.RoomMember, error) {
	args := m.Called(ctx, roomID, userID, role)
	var member models.RoomMember
	if val := args.Get(0); val != nil {
		member = val.(models.RoomMember)
	}
	return member, args.Error(1)
}

func (m *RoomRepositoryMock) RemoveMember(ctx context.Context, roomID, userID int64) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) UpdateMemberRole(ctx context.Context, roomID, userID int64, role string) error {
	args := m.Called(ctx, roomID, userID, role)
	return args.Error(0)
}

func (m *RoomRepositoryMock) ListMembers(ctx context.Context, roomID int64) ([]models.RoomMemberInfo, error) {
	args := m.Called(ctx, roomID)
	var members []models.RoomMemberInfo
	if val := args.Get(0); val != nil {
		members = val.([]models.RoomMemberInfo)
	}
	return members, args.Error(1)
}

func (m *RoomRepositoryMock) ListMemberships(ctx context.Context) ([]models.RoomMember, error) {
	args := m.Called(ctx)
	var members []models.RoomMember
	if val := args.Get(0); val != nil {
		members = val.([]models.RoomMember)
	}
	return members, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, roomID, userID int64, content, messageType string, replyTo *int64) (models.Message, error) {
	args := m.Called(ctx, roomID, userID, content, messageType, replyTo)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListRoomMessages(ctx context.Context, roomID int64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) EditMessage(ctx context.Context, messageID, userID int64, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, userID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkDeleted(ctx context.Context, messageID int64) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) SetReaction(ctx context.Context, messageID, userID int64, emoji string) error {
	args := m.Called(ctx, messageID, userID, emoji)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ClearReaction(ctx context.Context, messageID, userID int64) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ListReactions(ctx context.Context, messageIDs []int64) ([]models.MessageReaction, error) {
	args := m.Called(ctx, messageIDs)
	var reactions []models.MessageReaction
	if val := args.Get(0); val != nil {
		reactions = val.([]models.MessageReaction)
	}
	return reactions, args.Error(1)
}

var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.RoomRepository = (*RoomRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
