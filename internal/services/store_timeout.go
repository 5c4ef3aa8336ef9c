package services

import (
	"context"
	"time"

	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
)

// timedConversationRepo bounds every conversation store call by timeout.
type timedConversationRepo struct {
	next    repositories.ConversationRepository
	timeout time.Duration
}

func (r timedConversationRepo) CreateConversation(ctx context.Context, conv models.Conversation, participants []models.Participant) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.CreateConversation(ctx, conv, participants)
}

func (r timedConversationRepo) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.GetConversation(ctx, conversationID)
}

func (r timedConversationRepo) FindDirectConversation(ctx context.Context, userA, userB string) (models.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.FindDirectConversation(ctx, userA, userB)
}

func (r timedConversationRepo) ListByParticipant(ctx context.Context, userID string, convType *models.ConversationType) ([]models.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.ListByParticipant(ctx, userID, convType)
}

func (r timedConversationRepo) ListByType(ctx context.Context, convType models.ConversationType) ([]models.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.ListByType(ctx, convType)
}

func (r timedConversationRepo) UpdateConversation(ctx context.Context, conv models.Conversation) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.UpdateConversation(ctx, conv)
}

func (r timedConversationRepo) GetParticipant(ctx context.Context, conversationID, userID string) (models.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.GetParticipant(ctx, conversationID, userID)
}

func (r timedConversationRepo) SaveParticipant(ctx context.Context, participant models.Participant) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.SaveParticipant(ctx, participant)
}

func (r timedConversationRepo) ListParticipants(ctx context.Context, conversationID string) ([]models.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.ListParticipants(ctx, conversationID)
}

func (r timedConversationRepo) CountActiveParticipants(ctx context.Context, conversationID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.CountActiveParticipants(ctx, conversationID)
}

// timedUserRepo bounds every user directory call by timeout.
type timedUserRepo struct {
	next    repositories.UserRepository
	timeout time.Duration
}

func (r timedUserRepo) Exists(ctx context.Context, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.Exists(ctx, userID)
}

func (r timedUserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.GetUser(ctx, userID)
}
