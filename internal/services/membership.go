package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/repositories"
)

const (
	MaxGroupNameLength        = 100
	MaxGroupDescriptionLength = 500
	MinGroupParticipants      = 2
	MaxGroupParticipants      = 1000
	DefaultGroupParticipants  = 100
)

// Notifier receives an event after every successful membership write.
type Notifier interface {
	Notify(ctx context.Context, event models.ConversationEvent)
}

// MembershipService owns conversation identity, participant lifecycle and role checks.
type MembershipService interface {
	CreateDirectConversation(ctx context.Context, userA, userB string) (models.Conversation, error)
	CreateGroup(ctx context.Context, creatorID string, req models.GroupRequest) (models.Conversation, error)
	AddUserToConversation(ctx context.Context, conversationID, userID string) error
	RemoveUserFromConversation(ctx context.Context, conversationID, userID string) error
	UpdateGroupSettings(ctx context.Context, conversationID string, patch models.GroupSettingsPatch) (models.Conversation, error)
	ChangeParticipantRole(ctx context.Context, conversationID, userID string, role models.Role) error

	GetConversation(ctx context.Context, conversationID, actorID string) (models.Conversation, error)
	GetDirectConversation(ctx context.Context, userA, userB string) (models.Conversation, error)
	ListUserConversations(ctx context.Context, userID string, convType *models.ConversationType) ([]models.Conversation, error)
	ListPublicGroups(ctx context.Context) ([]models.Conversation, error)
	ListParticipants(ctx context.Context, conversationID string) ([]models.Participant, error)

	HasUserAccess(ctx context.Context, userID, conversationID string) bool
	CanManageParticipants(ctx context.Context, userID, conversationID string) bool
	CanUpdateSettings(ctx context.Context, userID, conversationID string) bool
	IsOwner(ctx context.Context, userID, conversationID string) bool
	GetUserRole(ctx context.Context, userID, conversationID string) (models.Role, bool)
}

type membershipService struct {
	convRepo repositories.ConversationRepository
	userRepo repositories.UserRepository
	notifier Notifier
	log      *log.Logger
	now      func() time.Time
	newID    func() string
}

// MembershipOptions bounds each conversation and user store call.
type MembershipOptions struct {
	StoreTimeout time.Duration
}

// NewMembershipService builds a MembershipService. notifier may be nil.
func NewMembershipService(convRepo repositories.ConversationRepository, userRepo repositories.UserRepository, notifier Notifier, logger *log.Logger, opts MembershipOptions) MembershipService {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	return &membershipService{
		convRepo: timedConversationRepo{next: convRepo, timeout: opts.StoreTimeout},
		userRepo: timedUserRepo{next: userRepo, timeout: opts.StoreTimeout},
		notifier: notifier,
		log:      logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *membershipService) CreateDirectConversation(ctx context.Context, userA, userB string) (models.Conversation, error) {
	ctx, span := otel.Tracer("conversation-service/membership").Start(ctx, "membership.create_direct")
	defer span.End()

	if userA == userB {
		return models.Conversation{}, fmt.Errorf("%w: cannot start a direct conversation with yourself", ErrInvalidOperation)
	}
	if err := s.requireUser(ctx, userA, "user"); err != nil {
		return models.Conversation{}, err
	}
	if err := s.requireUser(ctx, userB, "user"); err != nil {
		return models.Conversation{}, err
	}

	id := models.DirectConversationID(userA, userB)
	span.SetAttributes(attribute.String("conversation.id", id))

	conv, err := s.convRepo.GetConversation(ctx, id)
	if err == nil {
		return s.withParticipants(ctx, conv)
	}
	if !errors.Is(err, repositories.ErrConversationNotFound) {
		return models.Conversation{}, err
	}

	now := s.now()
	conv = models.Conversation{
		ID:              id,
		Type:            models.ConversationTypeDirect,
		MaxParticipants: 2,
		CreatedBy:       userA,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	participants := []models.Participant{
		s.newParticipant(id, userA, models.RoleMember, now),
		s.newParticipant(id, userB, models.RoleMember, now),
	}

	if err := s.convRepo.CreateConversation(ctx, conv, participants); err != nil {
		if errors.Is(err, repositories.ErrDuplicateConversation) {
			// the peer created it concurrently
			s.log.Debug("direct conversation created concurrently", "conversation_id", id)
			existing, getErr := s.convRepo.GetConversation(ctx, id)
			if getErr != nil {
				return models.Conversation{}, getErr
			}
			return s.withParticipants(ctx, existing)
		}
		return models.Conversation{}, err
	}

	observability.IncMembershipWrite("create_direct")
	s.notify(ctx, models.ConversationEvent{Type: models.EventConversationCreated, ConversationID: id})
	conv.Participants = participants
	return conv, nil
}

func (s *membershipService) CreateGroup(ctx context.Context, creatorID string, req models.GroupRequest) (models.Conversation, error) {
	ctx, span := otel.Tracer("conversation-service/membership").Start(ctx, "membership.create_group")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.Conversation{}, fmt.Errorf("%w: group name is required", ErrInvalidInput)
	}
	if err := validateGroupFields(&name, req.Description, req.MaxParticipants); err != nil {
		return models.Conversation{}, err
	}
	maxParticipants := DefaultGroupParticipants
	if req.MaxParticipants != nil {
		maxParticipants = *req.MaxParticipants
	}

	if err := s.requireUser(ctx, creatorID, "creator"); err != nil {
		return models.Conversation{}, err
	}

	memberIDs := make([]string, 0, len(req.ParticipantIDs))
	seen := map[string]struct{}{creatorID: {}}
	for _, id := range req.ParticipantIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if err := s.requireUser(ctx, id, "participant"); err != nil {
			return models.Conversation{}, err
		}
		memberIDs = append(memberIDs, id)
	}
	if 1+len(memberIDs) > maxParticipants {
		return models.Conversation{}, fmt.Errorf("%w: %d participants exceed the limit of %d", ErrInvalidOperation, 1+len(memberIDs), maxParticipants)
	}

	now := s.now()
	conv := models.Conversation{
		ID:              s.newID(),
		Type:            models.ConversationTypeGroup,
		Name:            &name,
		Description:     req.Description,
		IsPublic:        req.IsPublic,
		MaxParticipants: maxParticipants,
		CreatedBy:       creatorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	participants := make([]models.Participant, 0, 1+len(memberIDs))
	participants = append(participants, s.newParticipant(conv.ID, creatorID, models.RoleOwner, now))
	for _, id := range memberIDs {
		participants = append(participants, s.newParticipant(conv.ID, id, models.RoleMember, now))
	}

	if err := s.convRepo.CreateConversation(ctx, conv, participants); err != nil {
		return models.Conversation{}, err
	}

	s.log.Info("group created", "conversation_id", conv.ID, "creator_id", creatorID, "participants", len(participants))
	observability.IncMembershipWrite("create_group")
	s.notify(ctx, models.ConversationEvent{Type: models.EventConversationCreated, ConversationID: conv.ID, UserID: creatorID})
	conv.Participants = participants
	return conv, nil
}

func (s *membershipService) AddUserToConversation(ctx context.Context, conversationID, userID string) error {
	ctx, span := otel.Tracer("conversation-service/membership").Start(ctx, "membership.add_user")
	defer span.End()

	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup() {
		return fmt.Errorf("%w: cannot add users to direct conversations", ErrInvalidOperation)
	}
	if err := s.requireUser(ctx, userID, "user"); err != nil {
		return err
	}

	participant, err := s.convRepo.GetParticipant(ctx, conversationID, userID)
	switch {
	case errors.Is(err, repositories.ErrParticipantNotFound):
		if err := s.ensureCapacity(ctx, conv); err != nil {
			return err
		}
		if err := s.convRepo.SaveParticipant(ctx, s.newParticipant(conversationID, userID, models.RoleMember, s.now())); err != nil {
			return err
		}
		observability.IncMembershipWrite("add_participant")
		s.notify(ctx, models.ConversationEvent{Type: models.EventParticipantAdded, ConversationID: conversationID, UserID: userID, Role: models.RoleMember})
		return nil
	case err != nil:
		return err
	case participant.IsActive:
		return nil
	}

	if err := s.ensureCapacity(ctx, conv); err != nil {
		return err
	}
	participant.IsActive = true
	participant.UpdatedAt = s.now()
	if err := s.convRepo.SaveParticipant(ctx, participant); err != nil {
		return err
	}
	observability.IncMembershipWrite("reactivate_participant")
	s.notify(ctx, models.ConversationEvent{Type: models.EventParticipantReactivated, ConversationID: conversationID, UserID: userID, Role: participant.Role})
	return nil
}

func (s *membershipService) RemoveUserFromConversation(ctx context.Context, conversationID, userID string) error {
	ctx, span := otel.Tracer("conversation-service/membership").Start(ctx, "membership.remove_user")
	defer span.End()

	participant, err := s.convRepo.GetParticipant(ctx, conversationID, userID)
	if errors.Is(err, repositories.ErrParticipantNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	participant.IsActive = false
	participant.UpdatedAt = s.now()
	if err := s.convRepo.SaveParticipant(ctx, participant); err != nil {
		return err
	}
	observability.IncMembershipWrite("remove_participant")
	s.notify(ctx, models.ConversationEvent{Type: models.EventParticipantRemoved, ConversationID: conversationID, UserID: userID})
	return nil
}

func (s *membershipService) UpdateGroupSettings(ctx context.Context, conversationID string, patch models.GroupSettingsPatch) (models.Conversation, error) {
	ctx, span := otel.Tracer("conversation-service/membership").Start(ctx, "membership.update_settings")
	defer span.End()

	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	if !conv.IsGroup() {
		return models.Conversation{}, fmt.Errorf("%w: cannot update settings for non-group conversation", ErrInvalidOperation)
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return models.Conversation{}, fmt.Errorf("%w: group name cannot be empty", ErrInvalidInput)
		}
		patch.Name = &name
	}
	if err := validateGroupFields(patch.Name, patch.Description, patch.MaxParticipants); err != nil {
		return models.Conversation{}, err
	}
	if patch.MaxParticipants != nil {
		active, err := s.convRepo.CountActiveParticipants(ctx, conversationID)
		if err != nil {
			return models.Conversation{}, err
		}
		if *patch.MaxParticipants < active {
			return models.Conversation{}, fmt.Errorf("%w: group already has %d participants", ErrInvalidOperation, active)
		}
		conv.MaxParticipants = *patch.MaxParticipants
	}
	if patch.Name != nil {
		conv.Name = patch.Name
	}
	if patch.Description != nil {
		conv.Description = patch.Description
	}
	if patch.IsPublic != nil {
		conv.IsPublic = *patch.IsPublic
	}
	conv.UpdatedAt = s.now()

	if err := s.convRepo.UpdateConversation(ctx, conv); err != nil {
		return models.Conversation{}, err
	}
	observability.IncMembershipWrite("update_settings")
	s.notify(ctx, models.ConversationEvent{Type: models.EventConversationUpdated, ConversationID: conversationID})
	return s.withParticipants(ctx, conv)
}

func (s *membershipService) ChangeParticipantRole(ctx context.Context, conversationID, userID string, role models.Role) error {
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup() {
		return fmt.Errorf("%w: roles only apply to group conversations", ErrInvalidOperation)
	}
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if role == models.RoleOwner {
		return fmt.Errorf("%w: ownership cannot be assigned", ErrInvalidOperation)
	}

	participant, err := s.convRepo.GetParticipant(ctx, conversationID, userID)
	if errors.Is(err, repositories.ErrParticipantNotFound) || (err == nil && !participant.IsActive) {
		return fmt.Errorf("%w: participant %s not found", ErrNotFound, userID)
	}
	if err != nil {
		return err
	}
	if participant.Role == models.RoleOwner {
		return fmt.Errorf("%w: the owner's role cannot be changed", ErrInvalidOperation)
	}
	if participant.Role == role {
		return nil
	}

	participant.Role = role
	participant.UpdatedAt = s.now()
	if err := s.convRepo.SaveParticipant(ctx, participant); err != nil {
		return err
	}
	observability.IncMembershipWrite("change_role")
	s.notify(ctx, models.ConversationEvent{Type: models.EventParticipantRole, ConversationID: conversationID, UserID: userID, Role: role})
	return nil
}

// GetConversation reports a conversation the actor cannot access as not found.
func (s *membershipService) GetConversation(ctx context.Context, conversationID, actorID string) (models.Conversation, error) {
	if !s.HasUserAccess(ctx, actorID, conversationID) {
		return models.Conversation{}, fmt.Errorf("%w: conversation %s not found", ErrNotFound, conversationID)
	}
	conv, err := s.getConversation(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	return s.withParticipants(ctx, conv)
}

func (s *membershipService) GetDirectConversation(ctx context.Context, userA, userB string) (models.Conversation, error) {
	conv, err := s.convRepo.FindDirectConversation(ctx, userA, userB)
	if errors.Is(err, repositories.ErrConversationNotFound) {
		return models.Conversation{}, fmt.Errorf("%w: no direct conversation between %s and %s", ErrNotFound, userA, userB)
	}
	if err != nil {
		return models.Conversation{}, err
	}
	return s.withParticipants(ctx, conv)
}

func (s *membershipService) ListUserConversations(ctx context.Context, userID string, convType *models.ConversationType) ([]models.Conversation, error) {
	if convType != nil && !convType.Valid() {
		return nil, fmt.Errorf("%w: unknown conversation type %q", ErrInvalidInput, *convType)
	}
	convs, err := s.convRepo.ListByParticipant(ctx, userID, convType)
	if err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	return convs, nil
}

func (s *membershipService) ListPublicGroups(ctx context.Context) ([]models.Conversation, error) {
	groups, err := s.convRepo.ListByType(ctx, models.ConversationTypeGroup)
	if err != nil {
		return nil, err
	}
	public := make([]models.Conversation, 0, len(groups))
	for _, g := range groups {
		if g.IsPublic {
			public = append(public, g)
		}
	}
	return public, nil
}

func (s *membershipService) ListParticipants(ctx context.Context, conversationID string) ([]models.Participant, error) {
	participants, err := s.convRepo.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if participants == nil {
		participants = []models.Participant{}
	}
	return participants, nil
}

func (s *membershipService) HasUserAccess(ctx context.Context, userID, conversationID string) bool {
	_, ok := s.activeParticipant(ctx, userID, conversationID)
	return ok
}

func (s *membershipService) CanManageParticipants(ctx context.Context, userID, conversationID string) bool {
	p, ok := s.activeParticipant(ctx, userID, conversationID)
	return ok && p.Role.CanManageParticipants()
}

func (s *membershipService) CanUpdateSettings(ctx context.Context, userID, conversationID string) bool {
	p, ok := s.activeParticipant(ctx, userID, conversationID)
	return ok && p.Role.CanUpdateSettings()
}

func (s *membershipService) IsOwner(ctx context.Context, userID, conversationID string) bool {
	p, ok := s.activeParticipant(ctx, userID, conversationID)
	return ok && p.Role == models.RoleOwner
}

func (s *membershipService) GetUserRole(ctx context.Context, userID, conversationID string) (models.Role, bool) {
	p, ok := s.activeParticipant(ctx, userID, conversationID)
	if !ok {
		return "", false
	}
	return p.Role, true
}

// activeParticipant never fails; store errors read as "no access".
func (s *membershipService) activeParticipant(ctx context.Context, userID, conversationID string) (models.Participant, bool) {
	p, err := s.convRepo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		if !errors.Is(err, repositories.ErrParticipantNotFound) {
			s.log.Warn("participant lookup failed", "conversation_id", conversationID, "user_id", userID, "err", err)
		}
		return models.Participant{}, false
	}
	return p, p.IsActive
}

func (s *membershipService) getConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	conv, err := s.convRepo.GetConversation(ctx, conversationID)
	if errors.Is(err, repositories.ErrConversationNotFound) {
		return models.Conversation{}, fmt.Errorf("%w: conversation %s not found", ErrNotFound, conversationID)
	}
	return conv, err
}

func (s *membershipService) withParticipants(ctx context.Context, conv models.Conversation) (models.Conversation, error) {
	participants, err := s.convRepo.ListParticipants(ctx, conv.ID)
	if err != nil {
		return models.Conversation{}, err
	}
	conv.Participants = participants
	return conv, nil
}

func (s *membershipService) requireUser(ctx context.Context, userID, kind string) error {
	exists, err := s.userRepo.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s %s not found", ErrNotFound, kind, userID)
	}
	return nil
}

func (s *membershipService) ensureCapacity(ctx context.Context, conv models.Conversation) error {
	active, err := s.convRepo.CountActiveParticipants(ctx, conv.ID)
	if err != nil {
		return err
	}
	if active >= conv.MaxParticipants {
		return fmt.Errorf("%w: conversation is full", ErrInvalidOperation)
	}
	return nil
}

func (s *membershipService) newParticipant(conversationID, userID string, role models.Role, now time.Time) models.Participant {
	return models.Participant{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		IsActive:       true,
		JoinedAt:       now,
		UpdatedAt:      now,
	}
}

func (s *membershipService) notify(ctx context.Context, event models.ConversationEvent) {
	if s.notifier == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	s.notifier.Notify(ctx, event)
}

func validateGroupFields(name, description *string, maxParticipants *int) error {
	if name != nil && utf8.RuneCountInString(*name) > MaxGroupNameLength {
		return fmt.Errorf("%w: group name exceeds %d characters", ErrInvalidInput, MaxGroupNameLength)
	}
	if description != nil && utf8.RuneCountInString(*description) > MaxGroupDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidInput, MaxGroupDescriptionLength)
	}
	if maxParticipants != nil && (*maxParticipants < MinGroupParticipants || *maxParticipants > MaxGroupParticipants) {
		return fmt.Errorf("%w: max participants must be between %d and %d", ErrInvalidInput, MinGroupParticipants, MaxGroupParticipants)
	}
	return nil
}
