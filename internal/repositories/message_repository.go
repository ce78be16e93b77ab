package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"ride-relay/internal/models"
)

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, conversationID int64, sender models.ParticipantRef, text string) (models.Message, error)
	ListByConversation(ctx context.Context, conversationID int64) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message. created_at is stamped by the database.
func (r *MessageRepo) CreateMessage(ctx context.Context, conversationID int64, sender models.ParticipantRef, text string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, sender_id, sender_kind, text) VALUES ($1, $2, $3, $4) RETURNING id, conversation_id, sender_id, sender_kind, text, created_at`,
		conversationID, sender.ID, string(sender.Kind), text).StructScan(&msg)
	return msg, err
}

// ListByConversation returns messages in server timestamp order.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID int64) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, conversation_id, sender_id, sender_kind, text, created_at
        FROM messages
        WHERE conversation_id=$1
        ORDER BY created_at ASC, id ASC`, conversationID)
	return msgs, err
}
