package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ride-relay/internal/models"
	"ride-relay/internal/repositories"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) GetByTrip(ctx context.Context, tripID string) (models.Conversation, error) {
	args := m.Called(ctx, tripID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Create(ctx context.Context, trip models.Trip) (models.Conversation, error) {
	args := m.Called(ctx, trip)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, conversationID int64, sender models.ParticipantRef, text string) (models.Message, error) {
	args := m.Called(ctx, conversationID, sender, text)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListByConversation(ctx context.Context, conversationID int64) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type TripRepositoryMock struct {
	mock.Mock
}

func (m *TripRepositoryMock) GetTrip(ctx context.Context, tripID string) (models.Trip, error) {
	args := m.Called(ctx, tripID)
	var trip models.Trip
	if val := args.Get(0); val != nil {
		trip = val.(models.Trip)
	}
	return trip, args.Error(1)
}

type AccountRepositoryMock struct {
	mock.Mock
}

func (m *AccountRepositoryMock) SetPresencePointer(ctx context.Context, ref models.ParticipantRef, handle string) error {
	args := m.Called(ctx, ref, handle)
	return args.Error(0)
}

func (m *AccountRepositoryMock) GetPresencePointer(ctx context.Context, ref models.ParticipantRef) (string, error) {
	args := m.Called(ctx, ref)
	return args.String(0), args.Error(1)
}

func (m *AccountRepositoryMock) UpdateDriverLocation(ctx context.Context, driverID string, lat, lng float64) error {
	args := m.Called(ctx, driverID, lat, lng)
	return args.Error(0)
}

func (m *AccountRepositoryMock) GetDriverLocation(ctx context.Context, driverID string) (*models.Location, error) {
	args := m.Called(ctx, driverID)
	var loc *models.Location
	if val := args.Get(0); val != nil {
		loc = val.(*models.Location)
	}
	return loc, args.Error(1)
}

var (
	_ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
	_ repositories.MessageRepository      = (*MessageRepositoryMock)(nil)
	_ repositories.TripRepository         = (*TripRepositoryMock)(nil)
	_ repositories.AccountRepository      = (*AccountRepositoryMock)(nil)
)
