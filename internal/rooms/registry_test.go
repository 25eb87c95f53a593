package rooms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-server/internal/mocks"
	"chat-server/internal/models"
	"chat-server/internal/repositories"
)

func warmRegistry(t *testing.T, repo *mocks.RoomRepositoryMock, memberships []models.RoomMember) *Registry {
	t.Helper()
	repo.On("ListMemberships", mock.Anything).Return(memberships, nil).Once()
	registry := NewRegistry(repo)
	require.NoError(t, registry.Load(context.Background()))
	return registry
}

func TestLoadWarmsSnapshot(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	registry := warmRegistry(t, repo, []models.RoomMember{
		{RoomID: 1, UserID: 10, Role: models.MemberOwner},
		{RoomID: 1, UserID: 11, Role: models.MemberMember},
		{RoomID: 2, UserID: 11, Role: models.MemberOwner},
	})

	assert.Equal(t, []int64{10, 11}, registry.MemberIDs(1))
	assert.Equal(t, []int64{1, 2}, registry.RoomsFor(11))
	assert.True(t, registry.IsMember(2, 11))
	assert.False(t, registry.IsMember(2, 10))
	repo.AssertExpectations(t)
}

func TestCreateRoomValidation(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	registry := warmRegistry(t, repo, nil)

	cases := []struct {
		name        string
		roomName    string
		description string
		roomType    string
	}{
		{"empty name", "", "", "public"},
		{"name too long", string(make([]byte, maxRoomNameLen+1)), "", "public"},
		{"description too long", "general", string(make([]byte, maxRoomDescriptionLen+1)), "public"},
		{"bad type", "general", "", "secret"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := registry.CreateRoom(context.Background(), tc.roomName, tc.description, tc.roomType, 1)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	repo.AssertExpectations(t)
}

func TestCreateRoomCachesOwner(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	registry := warmRegistry(t, repo, nil)

	repo.On("CreateRoom", mock.Anything, "general", "", models.RoomPublic, int64(7)).
		Return(models.Room{RoomID: 3, Name: "general", RoomType: models.RoomPublic, CreatedBy: 7, IsActive: true}, nil).Once()

	room, err := registry.CreateRoom(context.Background(), "general", "", "", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), room.RoomID)

	role, ok := registry.RoleOf(3, 7)
	require.True(t, ok)
	assert.Equal(t, models.MemberOwner, role)
	repo.AssertExpectations(t)
}

func TestCreateRoomStoreFailureLeavesNoState(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	registry := warmRegistry(t, repo, nil)

	repo.On("CreateRoom", mock.Anything, "general", "", models.RoomPublic, int64(7)).
		Return(models.Room{}, assert.AnError).Once()

	_, err := registry.CreateRoom(context.Background(), "general", "", "", 7)
	require.Error(t, err)
	assert.Empty(t, registry.RoomsFor(7))
	repo.AssertExpectations(t)
}

func TestJoinIsIdempotent(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	registry := warmRegistry(t, repo, []models.RoomMember{
		{RoomID: 1, UserID: 10, Role: models.MemberMember},
	})

	joined, err := registry.Join(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.False(t, joined, "second join must be a no-op")
	repo.AssertExpectations(t)
}

func TestJoinPublicRoom(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	registry := warmRegistry(t, repo, []models.RoomMember{
		{RoomID: 1, UserID: 10, Role: models.MemberOwner},
	})

	repo.On("GetRoom", mock.Anything, int64(1)).
		Return(models.Room{RoomID: 1, RoomType: models.RoomPublic, IsActive: true}, nil).Once()
	repo.On("AddMember", mock.Anything, int64(1), int64(11), models.MemberMember).
		Return(models.RoomMember{RoomID: 1, UserID: 11, Role: models.MemberMember}, nil).Once()

	joined, err := registry.Join(context.Background(), 1, 11)
	require.NoError(t, err)
	assert.True(t, joined)
	assert.True(t, registry.IsMember(1, 11))
	repo.AssertExpectations(t)
}

func TestJoinPrivateRoomDenied(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	registry := warmRegistry(t, repo, nil)

	repo.On("GetRoom", mock.Anything, int64(1)).
		Return(models.Room{RoomID: 1, RoomType: models.RoomPrivate, IsActive: true}, nil).Once()

	_, err := registry.Join(context.Background(), 1, 11)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	repo.AssertExpectations(t)
}

func TestJoinInactiveRoom(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	registry := warmRegistry(t, repo, nil)

	repo.On("GetRoom", mock.Anything, int64(1)).
		Return(models.Room{RoomID: 1, RoomType: models.RoomPublic, IsActive: false}, nil).Once()

	_, err := registry.Join(context.Background(), 1, 11)
	assert.ErrorIs(t, err, repositories.ErrRoomNotFound)
	repo.AssertExpectations(t)
}

func TestLeaveRules(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	registry := warmRegistry(t, repo, []models.RoomMember{
		{RoomID: 1, UserID: 10, Role: models.MemberOwner},
		{RoomID: 1, UserID: 11, Role: models.MemberMember},
	})

	assert.ErrorIs(t, registry.Leave(context.Background(), 1, 10), ErrPermissionDenied, "owner cannot leave")
	assert.ErrorIs(t, registry.Leave(context.Background(), 1, 99), ErrNotMember)

	repo.On("RemoveMember", mock.Anything, int64(1), int64(11)).Return(nil).Once()
	require.NoError(t, registry.Leave(context.Background(), 1, 11))
	assert.False(t, registry.IsMember(1, 11))
	repo.AssertExpectations(t)
}

func TestKickRules(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	registry := warmRegistry(t, repo, []models.RoomMember{
		{RoomID: 1, UserID: 10, Role: models.MemberOwner},
		{RoomID: 1, UserID: 11, Role: models.MemberAdmin},
		{RoomID: 1, UserID: 12, Role: models.MemberMember},
	})

	ctx := context.Background()
	assert.ErrorIs(t, registry.Kick(ctx, 1, 12, 12), ErrPermissionDenied, "plain member cannot kick")
	assert.ErrorIs(t, registry.Kick(ctx, 1, 11, 11), ErrPermissionDenied, "self-kick is denied")
	assert.ErrorIs(t, registry.Kick(ctx, 1, 10, 11), ErrPermissionDenied, "owner cannot be kicked")
	assert.ErrorIs(t, registry.Kick(ctx, 1, 99, 10), ErrNotMember)

	repo.On("RemoveMember", mock.Anything, int64(1), int64(12)).Return(nil).Once()
	require.NoError(t, registry.Kick(ctx, 1, 12, 11))
	assert.False(t, registry.IsMember(1, 12))
	repo.AssertExpectations(t)
}

func TestUpdateRoleRules(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	registry := warmRegistry(t, repo, []models.RoomMember{
		{RoomID: 1, UserID: 10, Role: models.MemberOwner},
		{RoomID: 1, UserID: 11, Role: models.MemberAdmin},
		{RoomID: 1, UserID: 12, Role: models.MemberMember},
	})

	ctx := context.Background()
	assert.ErrorIs(t, registry.UpdateRole(ctx, 1, 12, "owner", 10), ErrValidation)
	assert.ErrorIs(t, registry.UpdateRole(ctx, 1, 12, models.MemberAdmin, 11), ErrPermissionDenied, "only the owner grants roles")
	assert.ErrorIs(t, registry.UpdateRole(ctx, 1, 10, models.MemberMember, 10), ErrPermissionDenied, "owner role is immutable")

	repo.On("UpdateMemberRole", mock.Anything, int64(1), int64(12), models.MemberAdmin).Return(nil).Once()
	require.NoError(t, registry.UpdateRole(ctx, 1, 12, models.MemberAdmin, 10))

	role, _ := registry.RoleOf(1, 12)
	assert.Equal(t, models.MemberAdmin, role)
	repo.AssertExpectations(t)
}

func TestDeleteRoomOwnerOnly(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	registry := warmRegistry(t, repo, []models.RoomMember{
		{RoomID: 1, UserID: 10, Role: models.MemberOwner},
		{RoomID: 1, UserID: 11, Role: models.MemberMember},
	})

	_, err := registry.DeleteRoom(context.Background(), 1, 11)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.True(t, registry.IsMember(1, 11), "failed delete leaves membership intact")

	repo.On("DeactivateRoom", mock.Anything, int64(1)).Return(nil).Once()
	former, err := registry.DeleteRoom(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{10, 11}, former)
	assert.Empty(t, registry.MemberIDs(1))
	repo.AssertExpectations(t)
}

func TestDeleteRoomStoreFailureKeepsSnapshot(t *testing.T) {
	repo := new(mocks.RoomRepositoryMock)
	registry := warmRegistry(t, repo, []models.RoomMember{
		{RoomID: 1, UserID: 10, Role: models.MemberOwner},
	})

	repo.On("DeactivateRoom", mock.Anything, int64(1)).Return(assert.AnError).Once()

	_, err := registry.DeleteRoom(context.Background(), 1, 10)
	require.Error(t, err)
	assert.True(t, registry.IsMember(1, 10))
	repo.AssertExpectations(t)
}
