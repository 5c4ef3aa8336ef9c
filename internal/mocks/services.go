package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"conversation-service/internal/models"
	"conversation-service/internal/services"
)

var (
	_ services.MembershipService = (*MembershipServiceMock)(nil)
	_ services.SearchService     = (*SearchServiceMock)(nil)
	_ services.AccessChecker     = (*AccessCheckerMock)(nil)
	_ services.Notifier          = (*NotifierMock)(nil)
)

type MembershipServiceMock struct {
	mock.Mock
}

func (m *MembershipServiceMock) conversation(args mock.Arguments) (models.Conversation, error) {
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *MembershipServiceMock) conversations(args mock.Arguments) ([]models.Conversation, error) {
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *MembershipServiceMock) CreateDirectConversation(ctx context.Context, userA, userB string) (models.Conversation, error) {
	return m.conversation(m.Called(ctx, userA, userB))
}

func (m *MembershipServiceMock) CreateGroup(ctx context.Context, creatorID string, req models.GroupRequest) (models.Conversation, error) {
	return m.conversation(m.Called(ctx, creatorID, req))
}

func (m *MembershipServiceMock) AddUserToConversation(ctx context.Context, conversationID, userID string) error {
	return m.Called(ctx, conversationID, userID).Error(0)
}

func (m *MembershipServiceMock) RemoveUserFromConversation(ctx context.Context, conversationID, userID string) error {
	return m.Called(ctx, conversationID, userID).Error(0)
}

func (m *MembershipServiceMock) UpdateGroupSettings(ctx context.Context, conversationID string, patch models.GroupSettingsPatch) (models.Conversation, error) {
	return m.conversation(m.Called(ctx, conversationID, patch))
}

func (m *MembershipServiceMock) ChangeParticipantRole(ctx context.Context, conversationID, userID string, role models.Role) error {
	return m.Called(ctx, conversationID, userID, role).Error(0)
}

func (m *MembershipServiceMock) GetConversation(ctx context.Context, conversationID, actorID string) (models.Conversation, error) {
	return m.conversation(m.Called(ctx, conversationID, actorID))
}

func (m *MembershipServiceMock) GetDirectConversation(ctx context.Context, userA, userB string) (models.Conversation, error) {
	return m.conversation(m.Called(ctx, userA, userB))
}

func (m *MembershipServiceMock) ListUserConversations(ctx context.Context, userID string, convType *models.ConversationType) ([]models.Conversation, error) {
	return m.conversations(m.Called(ctx, userID, convType))
}

func (m *MembershipServiceMock) ListPublicGroups(ctx context.Context) ([]models.Conversation, error) {
	return m.conversations(m.Called(ctx))
}

func (m *MembershipServiceMock) ListParticipants(ctx context.Context, conversationID string) ([]models.Participant, error) {
	args := m.Called(ctx, conversationID)
	var list []models.Participant
	if val := args.Get(0); val != nil {
		list = val.([]models.Participant)
	}
	return list, args.Error(1)
}

func (m *MembershipServiceMock) HasUserAccess(ctx context.Context, userID, conversationID string) bool {
	return m.Called(ctx, userID, conversationID).Bool(0)
}

func (m *MembershipServiceMock) CanManageParticipants(ctx context.Context, userID, conversationID string) bool {
	return m.Called(ctx, userID, conversationID).Bool(0)
}

func (m *MembershipServiceMock) CanUpdateSettings(ctx context.Context, userID, conversationID string) bool {
	return m.Called(ctx, userID, conversationID).Bool(0)
}

func (m *MembershipServiceMock) IsOwner(ctx context.Context, userID, conversationID string) bool {
	return m.Called(ctx, userID, conversationID).Bool(0)
}

func (m *MembershipServiceMock) GetUserRole(ctx context.Context, userID, conversationID string) (models.Role, bool) {
	args := m.Called(ctx, userID, conversationID)
	return args.Get(0).(models.Role), args.Bool(1)
}

type SearchServiceMock struct {
	mock.Mock
}

func (m *SearchServiceMock) SearchMessages(ctx context.Context, conversationID, query, actorID string, page, size int) models.SearchResultPage {
	args := m.Called(ctx, conversationID, query, actorID, page, size)
	return args.Get(0).(models.SearchResultPage)
}

func (m *SearchServiceMock) GetMessageContext(ctx context.Context, messageID, actorID string, contextSize int) []models.Message {
	args := m.Called(ctx, messageID, actorID, contextSize)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list
}
