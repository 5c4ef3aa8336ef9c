package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"conversation-service/internal/models"
)

// ConversationRepository abstracts conversation and participant persistence.
type ConversationRepository interface {
	CreateConversation(ctx context.Context, conv models.Conversation, participants []models.Participant) error
	GetConversation(ctx context.Context, conversationID string) (models.Conversation, error)
	FindDirectConversation(ctx context.Context, userA, userB string) (models.Conversation, error)
	ListByParticipant(ctx context.Context, userID string, convType *models.ConversationType) ([]models.Conversation, error)
	ListByType(ctx context.Context, convType models.ConversationType) ([]models.Conversation, error)
	UpdateConversation(ctx context.Context, conv models.Conversation) error
	GetParticipant(ctx context.Context, conversationID, userID string) (models.Participant, error)
	SaveParticipant(ctx context.Context, participant models.Participant) error
	ListParticipants(ctx context.Context, conversationID string) ([]models.Participant, error)
	CountActiveParticipants(ctx context.Context, conversationID string) (int, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `c.id, c.type, c.name, c.description, c.is_public, c.max_participants, c.created_by, c.created_at, c.updated_at`

// CreateConversation inserts the conversation and its initial participants atomically.
// A primary key collision is reported as ErrDuplicateConversation.
func (r *ConversationRepo) CreateConversation(ctx context.Context, conv models.Conversation, participants []models.Participant) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.NamedExecContext(ctx, `INSERT INTO conversations (id, type, name, description, is_public, max_participants, created_by, created_at, updated_at)
        VALUES (:id, :type, :name, :description, :is_public, :max_participants, :created_by, :created_at, :updated_at)`, conv); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateConversation
		}
		return err
	}

	for _, p := range participants {
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id, role, is_active, joined_at, updated_at)
            VALUES (:conversation_id, :user_id, :role, :is_active, :joined_at, :updated_at)`, p); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations c WHERE c.id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// FindDirectConversation looks up the direct conversation shared by two users regardless of order.
func (r *ConversationRepo) FindDirectConversation(ctx context.Context, userA, userB string) (models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations c
        JOIN conversation_participants a ON a.conversation_id = c.id AND a.user_id=$2
        JOIN conversation_participants b ON b.conversation_id = c.id AND b.user_id=$3
        WHERE c.type=$1
        LIMIT 1`
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, query, models.ConversationTypeDirect, userA, userB)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListByParticipant returns conversations in which the user is active, newest first.
func (r *ConversationRepo) ListByParticipant(ctx context.Context, userID string, convType *models.ConversationType) ([]models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations c
        INNER JOIN conversation_participants p ON p.conversation_id = c.id
        WHERE p.user_id=$1 AND p.is_active = TRUE`
	args := []interface{}{userID}
	if convType != nil {
		query += ` AND c.type=$2`
		args = append(args, *convType)
	}
	query += ` ORDER BY c.updated_at DESC`

	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs, query, args...)
	return convs, err
}

// ListByType returns every conversation of the given type, newest first.
func (r *ConversationRepo) ListByType(ctx context.Context, convType models.ConversationType) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs, `SELECT `+conversationColumns+` FROM conversations c WHERE c.type=$1 ORDER BY c.created_at DESC`, convType)
	return convs, err
}

// UpdateConversation persists the mutable group settings.
func (r *ConversationRepo) UpdateConversation(ctx context.Context, conv models.Conversation) error {
	res, err := r.db.NamedExecContext(ctx, `UPDATE conversations
        SET name=:name, description=:description, is_public=:is_public, max_participants=:max_participants, updated_at=:updated_at
        WHERE id=:id`, conv)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// GetParticipant fetches the membership row for a user, active or not.
func (r *ConversationRepo) GetParticipant(ctx context.Context, conversationID, userID string) (models.Participant, error) {
	var p models.Participant
	err := r.db.GetContext(ctx, &p, `SELECT conversation_id, user_id, role, is_active, joined_at, updated_at
        FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2`, conversationID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Participant{}, ErrParticipantNotFound
	}
	return p, err
}

// SaveParticipant inserts the row or updates role and active flag of the existing one.
func (r *ConversationRepo) SaveParticipant(ctx context.Context, participant models.Participant) error {
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO conversation_participants (conversation_id, user_id, role, is_active, joined_at, updated_at)
        VALUES (:conversation_id, :user_id, :role, :is_active, :joined_at, :updated_at)
        ON CONFLICT (conversation_id, user_id) DO UPDATE SET role = EXCLUDED.role, is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at`, participant)
	return err
}

// ListParticipants returns the active participants ordered by join time.
func (r *ConversationRepo) ListParticipants(ctx context.Context, conversationID string) ([]models.Participant, error) {
	var participants []models.Participant
	err := r.db.SelectContext(ctx, &participants, `SELECT conversation_id, user_id, role, is_active, joined_at, updated_at
        FROM conversation_participants WHERE conversation_id=$1 AND is_active = TRUE ORDER BY joined_at ASC`, conversationID)
	return participants, err
}

// CountActiveParticipants counts active rows of a conversation.
func (r *ConversationRepo) CountActiveParticipants(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM conversation_participants WHERE conversation_id=$1 AND is_active = TRUE`, conversationID)
	return count, err
}
