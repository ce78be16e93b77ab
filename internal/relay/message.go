package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ride-relay/internal/models"
	"ride-relay/internal/observability"
	"ride-relay/internal/repositories"
)

// MessageRelay stores chat messages and then broadcasts them to the trip room.
type MessageRelay struct {
	resolver *Resolver
	messages repositories.MessageRepository
	rooms    RoomBroadcaster
}

// NewMessageRelay constructs a MessageRelay.
func NewMessageRelay(resolver *Resolver, messages repositories.MessageRepository, rooms RoomBroadcaster) *MessageRelay {
	return &MessageRelay{resolver: resolver, messages: messages, rooms: rooms}
}

// Send persists text on the trip's conversation and emits it to room_<tripID>.
// Nothing is broadcast unless the message was stored.
func (m *MessageRelay) Send(ctx context.Context, tripID string, sender models.ParticipantRef, text string) (models.Message, error) {
	if tripID == "" || sender.IsZero() || strings.TrimSpace(text) == "" {
		observability.IncRelayMessage("invalid")
		return models.Message{}, ErrInvalidMessage
	}

	conv, err := m.resolver.Resolve(ctx, tripID)
	if err != nil {
		observability.IncRelayMessage("unresolved")
		return models.Message{}, err
	}
	if !conv.Trip().HasParticipant(sender) {
		observability.IncRelayMessage("forbidden")
		return models.Message{}, ErrNotTripParticipant
	}

	msg, err := m.messages.CreateMessage(ctx, conv.ID, sender, text)
	if err != nil {
		observability.IncRelayMessage("store_failed")
		return models.Message{}, fmt.Errorf("%w: store message: %w", ErrStorage, err)
	}
	observability.IncRelayMessage("stored")

	delivered := m.rooms.EmitToRoom(RoomName(tripID), models.EventPrivateMessage, models.NewPrivateMessageEvent(msg))
	observability.AddRoomDeliveries(delivered)
	return msg, nil
}

// History returns the stored messages of a trip in server timestamp order.
func (m *MessageRelay) History(ctx context.Context, tripID string) ([]models.Message, error) {
	conv, err := m.resolver.conversations.GetByTrip(ctx, tripID)
	if errors.Is(err, repositories.ErrConversationNotFound) {
		return []models.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lookup conversation: %w", ErrStorage, err)
	}
	return m.messages.ListByConversation(ctx, conv.ID)
}
