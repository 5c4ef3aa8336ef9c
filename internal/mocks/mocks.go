package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
)

var (
	_ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
	_ repositories.UserRepository         = (*UserRepositoryMock)(nil)
	_ repositories.MessageRepository      = (*MessageRepositoryMock)(nil)
	_ repositories.RateLimitRepository    = (*RateLimitRepositoryMock)(nil)
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) CreateConversation(ctx context.Context, conv models.Conversation, participants []models.Participant) error {
	args := m.Called(ctx, conv, participants)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) FindDirectConversation(ctx context.Context, userA, userB string) (models.Conversation, error) {
	args := m.Called(ctx, userA, userB)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) ListByParticipant(ctx context.Context, userID string, convType *models.ConversationType) ([]models.Conversation, error) {
	args := m.Called(ctx, userID, convType)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) ListByType(ctx context.Context, convType models.ConversationType) ([]models.Conversation, error) {
	args := m.Called(ctx, convType)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) UpdateConversation(ctx context.Context, conv models.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) GetParticipant(ctx context.Context, conversationID, userID string) (models.Participant, error) {
	args := m.Called(ctx, conversationID, userID)
	var p models.Participant
	if val := args.Get(0); val != nil {
		p = val.(models.Participant)
	}
	return p, args.Error(1)
}

func (m *ConversationRepositoryMock) SaveParticipant(ctx context.Context, participant models.Participant) error {
	args := m.Called(ctx, participant)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) ListParticipants(ctx context.Context, conversationID string) ([]models.Participant, error) {
	args := m.Called(ctx, conversationID)
	var list []models.Participant
	if val := args.Get(0); val != nil {
		list = val.([]models.Participant)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) CountActiveParticipants(ctx context.Context, conversationID string) (int, error) {
	args := m.Called(ctx, conversationID)
	return args.Int(0), args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Exists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID string) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) SearchText(ctx context.Context, conversationID, query string, page repositories.PageRequest) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, query, page)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) CountText(ctx context.Context, conversationID, query string) (int64, error) {
	args := m.Called(ctx, conversationID, query)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) SearchPattern(ctx context.Context, conversationID, pattern string, page repositories.PageRequest) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, pattern, page)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) CountPattern(ctx context.Context, conversationID, pattern string) (int64, error) {
	args := m.Called(ctx, conversationID, pattern)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListInRange(ctx context.Context, conversationID string, from, to time.Time) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, from, to)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

type RateLimitRepositoryMock struct {
	mock.Mock
}

func (m *RateLimitRepositoryMock) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	args := m.Called(ctx, key, window)
	return args.Get(0).(int64), args.Error(1)
}

// AccessCheckerMock answers HasUserAccess for search and websocket tests.
type AccessCheckerMock struct {
	mock.Mock
}

func (m *AccessCheckerMock) HasUserAccess(ctx context.Context, userID, conversationID string) bool {
	args := m.Called(ctx, userID, conversationID)
	return args.Bool(0)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Notify(ctx context.Context, event models.ConversationEvent) {
	m.Called(ctx, event)
}
