package repositories

import (
	"errors"

	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

var (
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrParticipantNotFound   = errors.New("participant not found")
	ErrMessageNotFound       = errors.New("message not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrDuplicateConversation = errors.New("conversation already exists")
)

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return mongo.IsDuplicateKeyError(err)
}
