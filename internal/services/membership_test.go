package services_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"conversation-service/internal/mocks"
	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
	"conversation-service/internal/services"
)

type membershipFixture struct {
	convRepo *mocks.ConversationRepositoryMock
	userRepo *mocks.UserRepositoryMock
	notifier *mocks.NotifierMock
	svc      services.MembershipService
}

func newMembershipFixture() membershipFixture {
	f := membershipFixture{
		convRepo: new(mocks.ConversationRepositoryMock),
		userRepo: new(mocks.UserRepositoryMock),
		notifier: new(mocks.NotifierMock),
	}
	f.svc = services.NewMembershipService(f.convRepo, f.userRepo, f.notifier, log.New(io.Discard), services.MembershipOptions{})
	return f
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func eventOfType(eventType string) interface{} {
	return mock.MatchedBy(func(e models.ConversationEvent) bool { return e.Type == eventType })
}

func groupConversation(id string, maxParticipants int) models.Conversation {
	return models.Conversation{
		ID:              id,
		Type:            models.ConversationTypeGroup,
		Name:            strPtr("team"),
		Description:     strPtr("old description"),
		MaxParticipants: maxParticipants,
		CreatedBy:       "alice",
	}
}

func TestDirectConversationIDIsOrderIndependent(t *testing.T) {
	assert.Equal(t, "direct_alice_bob", models.DirectConversationID("alice", "bob"))
	assert.Equal(t, "direct_alice_bob", models.DirectConversationID("bob", "alice"))
	assert.Equal(t, "direct_10_9", models.DirectConversationID("9", "10"))
}

func TestCreateDirectConversationReturnsExisting(t *testing.T) {
	f := newMembershipFixture()
	existing := models.Conversation{ID: "direct_alice_bob", Type: models.ConversationTypeDirect}
	participants := []models.Participant{
		{ConversationID: existing.ID, UserID: "alice", Role: models.RoleMember, IsActive: true},
		{ConversationID: existing.ID, UserID: "bob", Role: models.RoleMember, IsActive: true},
	}

	f.userRepo.On("Exists", mock.Anything, "bob").Return(true, nil).Once()
	f.userRepo.On("Exists", mock.Anything, "alice").Return(true, nil).Once()
	f.convRepo.On("GetConversation", mock.Anything, "direct_alice_bob").Return(existing, nil).Once()
	f.convRepo.On("ListParticipants", mock.Anything, "direct_alice_bob").Return(participants, nil).Once()

	conv, err := f.svc.CreateDirectConversation(context.Background(), "bob", "alice")
	require.NoError(t, err)

	assert.Equal(t, "direct_alice_bob", conv.ID)
	assert.Len(t, conv.Participants, 2)
	f.convRepo.AssertNotCalled(t, "CreateConversation", mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	f.convRepo.AssertExpectations(t)
}

func TestCreateDirectConversationCreatesCanonical(t *testing.T) {
	f := newMembershipFixture()

	f.userRepo.On("Exists", mock.Anything, mock.Anything).Return(true, nil)
	f.convRepo.On("GetConversation", mock.Anything, "direct_alice_bob").Return(nil, repositories.ErrConversationNotFound).Once()
	f.convRepo.On("CreateConversation", mock.Anything,
		mock.MatchedBy(func(c models.Conversation) bool {
			return c.ID == "direct_alice_bob" && c.Type == models.ConversationTypeDirect && c.MaxParticipants == 2
		}),
		mock.MatchedBy(func(ps []models.Participant) bool {
			if len(ps) != 2 {
				return false
			}
			for _, p := range ps {
				if p.Role != models.RoleMember || !p.IsActive || p.ConversationID != "direct_alice_bob" {
					return false
				}
			}
			return true
		}),
	).Return(nil).Once()
	f.notifier.On("Notify", mock.Anything, eventOfType(models.EventConversationCreated)).Once()

	conv, err := f.svc.CreateDirectConversation(context.Background(), "bob", "alice")
	require.NoError(t, err)

	assert.Equal(t, "direct_alice_bob", conv.ID)
	assert.Len(t, conv.Participants, 2)
	f.convRepo.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestCreateDirectConversationConcurrentCreate(t *testing.T) {
	f := newMembershipFixture()
	existing := models.Conversation{ID: "direct_alice_bob", Type: models.ConversationTypeDirect}

	f.userRepo.On("Exists", mock.Anything, mock.Anything).Return(true, nil)
	f.convRepo.On("GetConversation", mock.Anything, "direct_alice_bob").Return(nil, repositories.ErrConversationNotFound).Once()
	f.convRepo.On("CreateConversation", mock.Anything, mock.Anything, mock.Anything).Return(repositories.ErrDuplicateConversation).Once()
	f.convRepo.On("GetConversation", mock.Anything, "direct_alice_bob").Return(existing, nil).Once()
	f.convRepo.On("ListParticipants", mock.Anything, "direct_alice_bob").Return([]models.Participant{}, nil).Once()

	conv, err := f.svc.CreateDirectConversation(context.Background(), "alice", "bob")
	require.NoError(t, err)

	assert.Equal(t, existing.ID, conv.ID)
	f.convRepo.AssertExpectations(t)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestCreateDirectConversationWithSelf(t *testing.T) {
	f := newMembershipFixture()

	_, err := f.svc.CreateDirectConversation(context.Background(), "alice", "alice")
	require.ErrorIs(t, err, services.ErrInvalidOperation)
	f.userRepo.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
}

func TestCreateDirectConversationUnknownUser(t *testing.T) {
	f := newMembershipFixture()
	f.userRepo.On("Exists", mock.Anything, "alice").Return(true, nil).Once()
	f.userRepo.On("Exists", mock.Anything, "ghost").Return(false, nil).Once()

	_, err := f.svc.CreateDirectConversation(context.Background(), "alice", "ghost")
	require.ErrorIs(t, err, services.ErrNotFound)
	assert.Contains(t, err.Error(), "ghost")
	f.convRepo.AssertNotCalled(t, "GetConversation", mock.Anything, mock.Anything)
}

func TestCreateGroupDeduplicatesParticipants(t *testing.T) {
	f := newMembershipFixture()

	f.userRepo.On("Exists", mock.Anything, "alice").Return(true, nil).Once()
	f.userRepo.On("Exists", mock.Anything, "bob").Return(true, nil).Once()
	f.userRepo.On("Exists", mock.Anything, "carol").Return(true, nil).Once()
	f.convRepo.On("CreateConversation", mock.Anything,
		mock.MatchedBy(func(c models.Conversation) bool {
			return c.Type == models.ConversationTypeGroup && c.ID != "" && *c.Name == "team" &&
				c.MaxParticipants == services.DefaultGroupParticipants && c.CreatedBy == "alice"
		}),
		mock.MatchedBy(func(ps []models.Participant) bool {
			return len(ps) == 3 &&
				ps[0].UserID == "alice" && ps[0].Role == models.RoleOwner &&
				ps[1].UserID == "bob" && ps[1].Role == models.RoleMember &&
				ps[2].UserID == "carol" && ps[2].Role == models.RoleMember
		}),
	).Return(nil).Once()
	f.notifier.On("Notify", mock.Anything, eventOfType(models.EventConversationCreated)).Once()

	conv, err := f.svc.CreateGroup(context.Background(), "alice", models.GroupRequest{
		Name:           "  team ",
		ParticipantIDs: []string{"bob", "alice", "bob", "carol"},
	})
	require.NoError(t, err)

	assert.Len(t, conv.Participants, 3)
	f.userRepo.AssertExpectations(t)
	f.convRepo.AssertExpectations(t)
}

func TestCreateGroupUnknownParticipant(t *testing.T) {
	f := newMembershipFixture()

	f.userRepo.On("Exists", mock.Anything, "alice").Return(true, nil).Once()
	f.userRepo.On("Exists", mock.Anything, "ghost").Return(false, nil).Once()

	_, err := f.svc.CreateGroup(context.Background(), "alice", models.GroupRequest{
		Name:           "team",
		ParticipantIDs: []string{"ghost", "bob"},
	})
	require.ErrorIs(t, err, services.ErrNotFound)
	assert.Contains(t, err.Error(), "participant ghost")
	f.userRepo.AssertNotCalled(t, "Exists", mock.Anything, "bob")
	f.convRepo.AssertNotCalled(t, "CreateConversation", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateGroupValidation(t *testing.T) {
	longName := make([]byte, services.MaxGroupNameLength+1)
	for i := range longName {
		longName[i] = 'a'
	}

	tests := []struct {
		name string
		req  models.GroupRequest
	}{
		{name: "blank name", req: models.GroupRequest{Name: "   "}},
		{name: "long name", req: models.GroupRequest{Name: string(longName)}},
		{name: "max too small", req: models.GroupRequest{Name: "team", MaxParticipants: intPtr(1)}},
		{name: "max too large", req: models.GroupRequest{Name: "team", MaxParticipants: intPtr(services.MaxGroupParticipants + 1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMembershipFixture()
			_, err := f.svc.CreateGroup(context.Background(), "alice", tt.req)
			require.ErrorIs(t, err, services.ErrInvalidInput)
			f.userRepo.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateGroupOverCapacity(t *testing.T) {
	f := newMembershipFixture()
	f.userRepo.On("Exists", mock.Anything, mock.Anything).Return(true, nil)

	_, err := f.svc.CreateGroup(context.Background(), "alice", models.GroupRequest{
		Name:            "team",
		MaxParticipants: intPtr(2),
		ParticipantIDs:  []string{"bob", "carol"},
	})
	require.ErrorIs(t, err, services.ErrInvalidOperation)
	f.convRepo.AssertNotCalled(t, "CreateConversation", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddUserCreatesParticipant(t *testing.T) {
	f := newMembershipFixture()

	f.convRepo.On("GetConversation", mock.Anything, "g1").Return(groupConversation("g1", 10), nil).Once()
	f.userRepo.On("Exists", mock.Anything, "bob").Return(true, nil).Once()
	f.convRepo.On("GetParticipant", mock.Anything, "g1", "bob").Return(nil, repositories.ErrParticipantNotFound).Once()
	f.convRepo.On("CountActiveParticipants", mock.Anything, "g1").Return(3, nil).Once()
	f.convRepo.On("SaveParticipant", mock.Anything, mock.MatchedBy(func(p models.Participant) bool {
		return p.ConversationID == "g1" && p.UserID == "bob" && p.Role == models.RoleMember && p.IsActive
	})).Return(nil).Once()
	f.notifier.On("Notify", mock.Anything, eventOfType(models.EventParticipantAdded)).Once()

	require.NoError(t, f.svc.AddUserToConversation(context.Background(), "g1", "bob"))
	f.convRepo.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestAddUserReactivatesParticipant(t *testing.T) {
	f := newMembershipFixture()

	f.convRepo.On("GetConversation", mock.Anything, "g1").Return(groupConversation("g1", 10), nil).Once()
	f.userRepo.On("Exists", mock.Anything, "bob").Return(true, nil).Once()
	f.convRepo.On("GetParticipant", mock.Anything, "g1", "bob").Return(models.Participant{
		ConversationID: "g1", UserID: "bob", Role: models.RoleAdmin, IsActive: false,
	}, nil).Once()
	f.convRepo.On("CountActiveParticipants", mock.Anything, "g1").Return(3, nil).Once()
	f.convRepo.On("SaveParticipant", mock.Anything, mock.MatchedBy(func(p models.Participant) bool {
		return p.UserID == "bob" && p.Role == models.RoleAdmin && p.IsActive
	})).Return(nil).Once()
	f.notifier.On("Notify", mock.Anything, eventOfType(models.EventParticipantReactivated)).Once()

	require.NoError(t, f.svc.AddUserToConversation(context.Background(), "g1", "bob"))
	f.convRepo.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestAddUserAlreadyActive(t *testing.T) {
	f := newMembershipFixture()

	f.convRepo.On("GetConversation", mock.Anything, "g1").Return(groupConversation("g1", 10), nil).Once()
	f.userRepo.On("Exists", mock.Anything, "bob").Return(true, nil).Once()
	f.convRepo.On("GetParticipant", mock.Anything, "g1", "bob").Return(models.Participant{
		ConversationID: "g1", UserID: "bob", Role: models.RoleMember, IsActive: true,
	}, nil).Once()

	require.NoError(t, f.svc.AddUserToConversation(context.Background(), "g1", "bob"))
	f.convRepo.AssertNotCalled(t, "SaveParticipant", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestAddUserRejected(t *testing.T) {
	t.Run("direct conversation", func(t *testing.T) {
		f := newMembershipFixture()
		f.convRepo.On("GetConversation", mock.Anything, "direct_a_b").
			Return(models.Conversation{ID: "direct_a_b", Type: models.ConversationTypeDirect}, nil).Once()

		err := f.svc.AddUserToConversation(context.Background(), "direct_a_b", "carol")
		require.ErrorIs(t, err, services.ErrInvalidOperation)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		f := newMembershipFixture()
		f.convRepo.On("GetConversation", mock.Anything, "missing").Return(nil, repositories.ErrConversationNotFound).Once()

		err := f.svc.AddUserToConversation(context.Background(), "missing", "carol")
		require.ErrorIs(t, err, services.ErrNotFound)
	})

	t.Run("full group", func(t *testing.T) {
		f := newMembershipFixture()
		f.convRepo.On("GetConversation", mock.Anything, "g1").Return(groupConversation("g1", 3), nil).Once()
		f.userRepo.On("Exists", mock.Anything, "carol").Return(true, nil).Once()
		f.convRepo.On("GetParticipant", mock.Anything, "g1", "carol").Return(nil, repositories.ErrParticipantNotFound).Once()
		f.convRepo.On("CountActiveParticipants", mock.Anything, "g1").Return(3, nil).Once()

		err := f.svc.AddUserToConversation(context.Background(), "g1", "carol")
		require.ErrorIs(t, err, services.ErrInvalidOperation)
		f.convRepo.AssertNotCalled(t, "SaveParticipant", mock.Anything, mock.Anything)
	})
}

func TestRemoveUserDeactivates(t *testing.T) {
	f := newMembershipFixture()

	f.convRepo.On("GetParticipant", mock.Anything, "g1", "bob").Return(models.Participant{
		ConversationID: "g1", UserID: "bob", Role: models.RoleAdmin, IsActive: true,
	}, nil).Once()
	f.convRepo.On("SaveParticipant", mock.Anything, mock.MatchedBy(func(p models.Participant) bool {
		return p.UserID == "bob" && !p.IsActive && p.Role == models.RoleAdmin
	})).Return(nil).Once()
	f.notifier.On("Notify", mock.Anything, eventOfType(models.EventParticipantRemoved)).Once()

	require.NoError(t, f.svc.RemoveUserFromConversation(context.Background(), "g1", "bob"))
	f.convRepo.AssertExpectations(t)
}

func TestRemoveUserWithoutMembershipIsNoop(t *testing.T) {
	f := newMembershipFixture()
	f.convRepo.On("GetParticipant", mock.Anything, "g1", "bob").Return(nil, repositories.ErrParticipantNotFound).Once()

	require.NoError(t, f.svc.RemoveUserFromConversation(context.Background(), "g1", "bob"))
	f.convRepo.AssertNotCalled(t, "SaveParticipant", mock.Anything, mock.Anything)
}

func hasDeadline() interface{} {
	return mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	})
}

func TestStoreCallsCarryDeadline(t *testing.T) {
	f := newMembershipFixture()

	f.userRepo.On("Exists", hasDeadline(), "alice").Return(true, nil).Once()
	f.userRepo.On("Exists", hasDeadline(), "bob").Return(true, nil).Once()
	f.convRepo.On("GetConversation", hasDeadline(), "direct_alice_bob").Return(nil, repositories.ErrConversationNotFound).Once()
	f.convRepo.On("CreateConversation", hasDeadline(), mock.Anything, mock.Anything).Return(nil).Once()
	f.notifier.On("Notify", mock.Anything, eventOfType(models.EventConversationCreated)).Once()

	_, err := f.svc.CreateDirectConversation(context.Background(), "alice", "bob")
	require.NoError(t, err)
	f.userRepo.AssertExpectations(t)
	f.convRepo.AssertExpectations(t)
}

func TestStoreTimeoutOption(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	svc := services.NewMembershipService(convRepo, new(mocks.UserRepositoryMock), nil, log.New(io.Discard),
		services.MembershipOptions{StoreTimeout: 50 * time.Millisecond})

	convRepo.On("GetParticipant", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= 50*time.Millisecond
	}), "g1", "alice").Return(models.Participant{
		ConversationID: "g1", UserID: "alice", Role: models.RoleMember, IsActive: true,
	}, nil).Once()

	assert.True(t, svc.HasUserAccess(context.Background(), "alice", "g1"))
	convRepo.AssertExpectations(t)
}

func TestRolePredicates(t *testing.T) {
	tests := []struct {
		name      string
		role      models.Role
		active    bool
		access    bool
		canManage bool
		canUpdate bool
		owner     bool
	}{
		{name: "owner", role: models.RoleOwner, active: true, access: true, canManage: true, canUpdate: true, owner: true},
		{name: "admin", role: models.RoleAdmin, active: true, access: true, canManage: true, canUpdate: true},
		{name: "member", role: models.RoleMember, active: true, access: true},
		{name: "inactive owner", role: models.RoleOwner, active: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMembershipFixture()
			f.convRepo.On("GetParticipant", mock.Anything, "g1", "u1").Return(models.Participant{
				ConversationID: "g1", UserID: "u1", Role: tt.role, IsActive: tt.active,
			}, nil)

			ctx := context.Background()
			assert.Equal(t, tt.access, f.svc.HasUserAccess(ctx, "u1", "g1"))
			assert.Equal(t, tt.canManage, f.svc.CanManageParticipants(ctx, "u1", "g1"))
			assert.Equal(t, tt.canUpdate, f.svc.CanUpdateSettings(ctx, "u1", "g1"))
			assert.Equal(t, tt.owner, f.svc.IsOwner(ctx, "u1", "g1"))

			role, ok := f.svc.GetUserRole(ctx, "u1", "g1")
			assert.Equal(t, tt.active, ok)
			if ok {
				assert.Equal(t, tt.role, role)
			}
		})
	}
}

func TestPredicatesTreatStoreErrorsAsDenied(t *testing.T) {
	f := newMembershipFixture()
	f.convRepo.On("GetParticipant", mock.Anything, "g1", "u1").Return(nil, errors.New("connection reset"))

	ctx := context.Background()
	assert.False(t, f.svc.HasUserAccess(ctx, "u1", "g1"))
	assert.False(t, f.svc.CanManageParticipants(ctx, "u1", "g1"))
	assert.False(t, f.svc.IsOwner(ctx, "u1", "g1"))
	_, ok := f.svc.GetUserRole(ctx, "u1", "g1")
	assert.False(t, ok)
}

func TestUpdateGroupSettingsPartial(t *testing.T) {
	f := newMembershipFixture()

	f.convRepo.On("GetConversation", mock.Anything, "g1").Return(groupConversation("g1", 10), nil).Once()
	f.convRepo.On("UpdateConversation", mock.Anything, mock.MatchedBy(func(c models.Conversation) bool {
		return *c.Name == "renamed" && *c.Description == "old description" && c.IsPublic && c.MaxParticipants == 10
	})).Return(nil).Once()
	f.convRepo.On("ListParticipants", mock.Anything, "g1").Return([]models.Participant{{UserID: "alice"}}, nil).Once()
	f.notifier.On("Notify", mock.Anything, eventOfType(models.EventConversationUpdated)).Once()

	conv, err := f.svc.UpdateGroupSettings(context.Background(), "g1", models.GroupSettingsPatch{
		Name:     strPtr(" renamed "),
		IsPublic: boolPtr(true),
	})
	require.NoError(t, err)

	assert.Equal(t, "renamed", *conv.Name)
	assert.Equal(t, "old description", *conv.Description)
	assert.Len(t, conv.Participants, 1)
	f.convRepo.AssertNotCalled(t, "CountActiveParticipants", mock.Anything, mock.Anything)
	f.convRepo.AssertExpectations(t)
}

func TestUpdateGroupSettingsRejected(t *testing.T) {
	t.Run("direct conversation", func(t *testing.T) {
		f := newMembershipFixture()
		f.convRepo.On("GetConversation", mock.Anything, "direct_a_b").
			Return(models.Conversation{ID: "direct_a_b", Type: models.ConversationTypeDirect}, nil).Once()

		_, err := f.svc.UpdateGroupSettings(context.Background(), "direct_a_b", models.GroupSettingsPatch{Name: strPtr("x")})
		require.ErrorIs(t, err, services.ErrInvalidOperation)
	})

	t.Run("limit below active count", func(t *testing.T) {
		f := newMembershipFixture()
		f.convRepo.On("GetConversation", mock.Anything, "g1").Return(groupConversation("g1", 10), nil).Once()
		f.convRepo.On("CountActiveParticipants", mock.Anything, "g1").Return(5, nil).Once()

		_, err := f.svc.UpdateGroupSettings(context.Background(), "g1", models.GroupSettingsPatch{MaxParticipants: intPtr(4)})
		require.ErrorIs(t, err, services.ErrInvalidOperation)
		f.convRepo.AssertNotCalled(t, "UpdateConversation", mock.Anything, mock.Anything)
	})

	t.Run("blank name", func(t *testing.T) {
		f := newMembershipFixture()
		f.convRepo.On("GetConversation", mock.Anything, "g1").Return(groupConversation("g1", 10), nil).Once()

		_, err := f.svc.UpdateGroupSettings(context.Background(), "g1", models.GroupSettingsPatch{Name: strPtr("  ")})
		require.ErrorIs(t, err, services.ErrInvalidInput)
	})
}

func TestChangeParticipantRole(t *testing.T) {
	t.Run("promotes member", func(t *testing.T) {
		f := newMembershipFixture()
		f.convRepo.On("GetConversation", mock.Anything, "g1").Return(groupConversation("g1", 10), nil).Once()
		f.convRepo.On("GetParticipant", mock.Anything, "g1", "bob").Return(models.Participant{
			ConversationID: "g1", UserID: "bob", Role: models.RoleMember, IsActive: true,
		}, nil).Once()
		f.convRepo.On("SaveParticipant", mock.Anything, mock.MatchedBy(func(p models.Participant) bool {
			return p.UserID == "bob" && p.Role == models.RoleAdmin
		})).Return(nil).Once()
		f.notifier.On("Notify", mock.Anything, eventOfType(models.EventParticipantRole)).Once()

		require.NoError(t, f.svc.ChangeParticipantRole(context.Background(), "g1", "bob", models.RoleAdmin))
		f.convRepo.AssertExpectations(t)
	})

	t.Run("cannot assign owner", func(t *testing.T) {
		f := newMembershipFixture()
		f.convRepo.On("GetConversation", mock.Anything, "g1").Return(groupConversation("g1", 10), nil).Once()

		err := f.svc.ChangeParticipantRole(context.Background(), "g1", "bob", models.RoleOwner)
		require.ErrorIs(t, err, services.ErrInvalidOperation)
	})

	t.Run("cannot demote owner", func(t *testing.T) {
		f := newMembershipFixture()
		f.convRepo.On("GetConversation", mock.Anything, "g1").Return(groupConversation("g1", 10), nil).Once()
		f.convRepo.On("GetParticipant", mock.Anything, "g1", "alice").Return(models.Participant{
			ConversationID: "g1", UserID: "alice", Role: models.RoleOwner, IsActive: true,
		}, nil).Once()

		err := f.svc.ChangeParticipantRole(context.Background(), "g1", "alice", models.RoleMember)
		require.ErrorIs(t, err, services.ErrInvalidOperation)
		f.convRepo.AssertNotCalled(t, "SaveParticipant", mock.Anything, mock.Anything)
	})

	t.Run("inactive participant", func(t *testing.T) {
		f := newMembershipFixture()
		f.convRepo.On("GetConversation", mock.Anything, "g1").Return(groupConversation("g1", 10), nil).Once()
		f.convRepo.On("GetParticipant", mock.Anything, "g1", "bob").Return(models.Participant{
			ConversationID: "g1", UserID: "bob", Role: models.RoleMember,
		}, nil).Once()

		err := f.svc.ChangeParticipantRole(context.Background(), "g1", "bob", models.RoleAdmin)
		require.ErrorIs(t, err, services.ErrNotFound)
	})
}

func TestGetConversationHidesInaccessible(t *testing.T) {
	f := newMembershipFixture()
	f.convRepo.On("GetParticipant", mock.Anything, "g1", "mallory").Return(nil, repositories.ErrParticipantNotFound).Once()

	_, err := f.svc.GetConversation(context.Background(), "g1", "mallory")
	require.ErrorIs(t, err, services.ErrNotFound)
	f.convRepo.AssertNotCalled(t, "GetConversation", mock.Anything, mock.Anything)
}

func TestListPublicGroupsFiltersPrivate(t *testing.T) {
	f := newMembershipFixture()
	public := groupConversation("g1", 10)
	public.IsPublic = true
	f.convRepo.On("ListByType", mock.Anything, models.ConversationTypeGroup).
		Return([]models.Conversation{public, groupConversation("g2", 10)}, nil).Once()

	groups, err := f.svc.ListPublicGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "g1", groups[0].ID)
}

func TestListUserConversationsRejectsUnknownType(t *testing.T) {
	f := newMembershipFixture()
	bogus := models.ConversationType("CHANNEL")

	_, err := f.svc.ListUserConversations(context.Background(), "alice", &bogus)
	require.ErrorIs(t, err, services.ErrInvalidInput)
}

func TestGetDirectConversation(t *testing.T) {
	f := newMembershipFixture()
	f.convRepo.On("FindDirectConversation", mock.Anything, "bob", "alice").
		Return(models.Conversation{ID: "direct_alice_bob", Type: models.ConversationTypeDirect}, nil).Once()
	f.convRepo.On("ListParticipants", mock.Anything, "direct_alice_bob").Return([]models.Participant{}, nil).Once()
	f.convRepo.On("FindDirectConversation", mock.Anything, "alice", "carol").Return(nil, repositories.ErrConversationNotFound).Once()

	conv, err := f.svc.GetDirectConversation(context.Background(), "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, "direct_alice_bob", conv.ID)

	_, err = f.svc.GetDirectConversation(context.Background(), "alice", "carol")
	require.ErrorIs(t, err, services.ErrNotFound)
	f.convRepo.AssertNotCalled(t, "CreateConversation", mock.Anything, mock.Anything, mock.Anything)
}
