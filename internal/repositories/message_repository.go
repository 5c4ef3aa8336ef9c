package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"conversation-service/internal/models"
)

// PageRequest is a normalized page of results ordered by timestamp, newest first.
type PageRequest struct {
	Page int
	Size int
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// MessageRepository is the read contract of the message store.
// SearchText uses the full-text index; SearchPattern matches a case-insensitive regular expression.
type MessageRepository interface {
	SearchText(ctx context.Context, conversationID, query string, page PageRequest) ([]models.Message, error)
	CountText(ctx context.Context, conversationID, query string) (int64, error)
	SearchPattern(ctx context.Context, conversationID, pattern string, page PageRequest) ([]models.Message, error)
	CountPattern(ctx context.Context, conversationID, pattern string) (int64, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	ListInRange(ctx context.Context, conversationID string, from, to time.Time) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed message store.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const (
	messageColumns = `id::text AS id, conversation_id, sender_id, sender_username, content, created_at`
	textMatch      = `to_tsvector('simple', content) @@ plainto_tsquery('simple', $2)`
	patternMatch   = `content ~* $2`
)

// SearchText runs the indexed full-text query.
func (r *MessageRepo) SearchText(ctx context.Context, conversationID, query string, page PageRequest) ([]models.Message, error) {
	return r.search(ctx, textMatch, conversationID, query, page)
}

// CountText counts full-text matches.
func (r *MessageRepo) CountText(ctx context.Context, conversationID, query string) (int64, error) {
	return r.count(ctx, textMatch, conversationID, query)
}

// SearchPattern runs the regular expression scan.
func (r *MessageRepo) SearchPattern(ctx context.Context, conversationID, pattern string, page PageRequest) ([]models.Message, error) {
	return r.search(ctx, patternMatch, conversationID, pattern, page)
}

// CountPattern counts regular expression matches.
func (r *MessageRepo) CountPattern(ctx context.Context, conversationID, pattern string) (int64, error) {
	return r.count(ctx, patternMatch, conversationID, pattern)
}

func (r *MessageRepo) search(ctx context.Context, match, conversationID, term string, page PageRequest) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + `
        FROM messages
        WHERE conversation_id=$1 AND ` + match + `
        ORDER BY created_at DESC
        LIMIT $3 OFFSET $4`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, conversationID, term, page.Size, page.Offset())
	return msgs, err
}

func (r *MessageRepo) count(ctx context.Context, match, conversationID, term string) (int64, error) {
	var total int64
	err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM messages WHERE conversation_id=$1 AND `+match, conversationID, term)
	return total, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id::text=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListInRange returns the messages of a conversation inside [from, to], oldest first.
func (r *MessageRepo) ListInRange(ctx context.Context, conversationID string, from, to time.Time) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+`
        FROM messages
        WHERE conversation_id=$1 AND created_at BETWEEN $2 AND $3
        ORDER BY created_at ASC`, conversationID, from, to)
	return msgs, err
}
