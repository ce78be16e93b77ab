package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"ride-relay/internal/models"
)

var (
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrDuplicateConversation = errors.New("conversation already exists for trip")
)

const uniqueViolation = pq.ErrorCode("23505")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	GetByTrip(ctx context.Context, tripID string) (models.Conversation, error)
	Create(ctx context.Context, trip models.Trip) (models.Conversation, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// GetByTrip fetches the conversation of a trip.
func (r *ConversationRepo) GetByTrip(ctx context.Context, tripID string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT id, trip_id, rider_id, driver_id, created_at FROM conversations WHERE trip_id=$1`, tripID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// Create inserts the conversation of a trip. A concurrent creator that lost the
// race gets ErrDuplicateConversation from the unique constraint on trip_id.
func (r *ConversationRepo) Create(ctx context.Context, trip models.Trip) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.QueryRowxContext(ctx, `INSERT INTO conversations (trip_id, rider_id, driver_id) VALUES ($1, $2, $3) RETURNING id, trip_id, rider_id, driver_id, created_at`,
		trip.ID, trip.RiderID, trip.DriverID).StructScan(&conv)
	if isUniqueViolation(err) {
		return models.Conversation{}, ErrDuplicateConversation
	}
	return conv, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
