package relay

import (
	"context"
	"errors"
	"fmt"

	"ride-relay/internal/models"
	"ride-relay/internal/observability"
	"ride-relay/internal/repositories"
)

// Resolver returns the single conversation of a trip, creating it on first use.
type Resolver struct {
	conversations repositories.ConversationRepository
	trips         repositories.TripRepository
}

// NewResolver constructs a Resolver.
func NewResolver(conversations repositories.ConversationRepository, trips repositories.TripRepository) *Resolver {
	return &Resolver{conversations: conversations, trips: trips}
}

// Resolve looks the conversation up by trip and creates it when missing.
// Concurrent first senders are reconciled by the unique constraint on trip_id:
// the loser re-reads and returns the winner's row.
func (r *Resolver) Resolve(ctx context.Context, tripID string) (models.Conversation, error) {
	conv, err := r.conversations.GetByTrip(ctx, tripID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, repositories.ErrConversationNotFound) {
		return models.Conversation{}, fmt.Errorf("%w: lookup conversation: %w", ErrStorage, err)
	}

	trip, err := r.trips.GetTrip(ctx, tripID)
	if err != nil {
		if errors.Is(err, repositories.ErrTripNotFound) {
			return models.Conversation{}, err
		}
		return models.Conversation{}, fmt.Errorf("%w: load trip: %w", ErrStorage, err)
	}
	if trip.ID == "" {
		trip.ID = tripID
	}
	if trip.RiderID == "" || trip.DriverID == "" {
		return models.Conversation{}, ErrTripUnassigned
	}

	conv, err = r.conversations.Create(ctx, trip)
	if errors.Is(err, repositories.ErrDuplicateConversation) {
		observability.IncConversation("race_lost")
		conv, err = r.conversations.GetByTrip(ctx, tripID)
		if err != nil {
			return models.Conversation{}, fmt.Errorf("%w: reload conversation: %w", ErrStorage, err)
		}
		return conv, nil
	}
	if err != nil {
		return models.Conversation{}, fmt.Errorf("%w: create conversation: %w", ErrStorage, err)
	}
	observability.IncConversation("created")
	return conv, nil
}
