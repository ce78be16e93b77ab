package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ride-relay/internal/mocks"
	"ride-relay/internal/models"
)

func TestSendToConnection(t *testing.T) {
	sender := newLiveSender("c1")
	d := NewDispatcher(sender, newMemoryIndex(), new(mocks.AccountRepositoryMock))

	assert.True(t, d.SendToConnection("c1", "ride-accepted", map[string]string{"tripId": "T9"}))
	assert.False(t, d.SendToConnection("c-dead", "ride-accepted", nil))
	assert.False(t, d.SendToConnection("", "ride-accepted", nil))
	assert.Equal(t, []string{"ride-accepted"}, sender.sent["c1"])
}

func TestSendToConnectionWithoutTransport(t *testing.T) {
	var nilDispatcher *Dispatcher
	assert.False(t, nilDispatcher.SendToConnection("c1", "x", nil))
	assert.False(t, NewDispatcher(nil, nil, nil).SendToConnection("c1", "x", nil))
}

func TestSendToParticipantUsesPointer(t *testing.T) {
	accounts := new(mocks.AccountRepositoryMock)
	accounts.On("GetPresencePointer", mock.Anything, driver).Return("c2", nil).Once()
	sender := newLiveSender("c2")

	d := NewDispatcher(sender, newMemoryIndex(), accounts)
	assert.True(t, d.SendToParticipant(context.Background(), driver, "ride-request", nil))
	assert.Equal(t, []string{"ride-request"}, sender.sent["c2"])
}

func TestSendToParticipantStalePointer(t *testing.T) {
	accounts := new(mocks.AccountRepositoryMock)
	accounts.On("GetPresencePointer", mock.Anything, driver).Return("c-old", nil).Once()

	d := NewDispatcher(newLiveSender("c2"), newMemoryIndex(), accounts)
	assert.False(t, d.SendToParticipant(context.Background(), driver, "ride-request", nil))
}

func TestSendToParticipantFallsBackToIndex(t *testing.T) {
	accounts := new(mocks.AccountRepositoryMock)
	accounts.On("GetPresencePointer", mock.Anything, rider).Return("", errors.New("db down")).Once()
	index := newMemoryIndex("c3")
	index.Bind("c3", rider)
	sender := newLiveSender("c3")

	d := NewDispatcher(sender, index, accounts)
	assert.True(t, d.SendToParticipant(context.Background(), rider, "ride-cancelled", nil))
}

func TestNotify(t *testing.T) {
	accounts := new(mocks.AccountRepositoryMock)
	accounts.On("GetPresencePointer", mock.Anything, driver).Return("c2", nil)
	d := NewDispatcher(newLiveSender("c1", "c2"), newMemoryIndex(), accounts)
	ctx := context.Background()

	delivered, err := d.Notify(ctx, models.Notification{ConnectionHandle: "c1", Event: "ping", Data: json.RawMessage(`{}`)})
	assert.NoError(t, err)
	assert.True(t, delivered)

	delivered, err = d.Notify(ctx, models.Notification{ParticipantID: "D1", ParticipantKind: "captain", Event: "ride-request"})
	assert.NoError(t, err)
	assert.True(t, delivered)

	delivered, err = d.Notify(ctx, models.Notification{ConnectionHandle: "gone", Event: "ping"})
	assert.NoError(t, err)
	assert.False(t, delivered)

	_, err = d.Notify(ctx, models.Notification{ConnectionHandle: "c1"})
	assert.ErrorIs(t, err, ErrInvalidTarget)
	_, err = d.Notify(ctx, models.Notification{ParticipantID: "D1", ParticipantKind: "pilot", Event: "x"})
	assert.ErrorIs(t, err, ErrInvalidTarget)
	_, err = d.Notify(ctx, models.Notification{ParticipantKind: "driver", Event: "x"})
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestSendToParticipantStalePointerFallsBackToLiveBinding(t *testing.T) {
	accounts := new(mocks.AccountRepositoryMock)
	accounts.On("GetPresencePointer", mock.Anything, driver).Return("c-old", nil).Once()
	index := newMemoryIndex("c-new")
	index.Bind("c-new", driver)
	sender := newLiveSender("c-new")

	d := NewDispatcher(sender, index, accounts)
	assert.True(t, d.SendToParticipant(context.Background(), driver, "ride-request", nil))
	assert.Equal(t, []string{"ride-request"}, sender.sent["c-new"])
}

func TestSendToParticipantDeadPointerAndBindingAgree(t *testing.T) {
	accounts := new(mocks.AccountRepositoryMock)
	accounts.On("GetPresencePointer", mock.Anything, driver).Return("c1", nil).Once()
	index := newMemoryIndex("c1")
	index.Bind("c1", driver)
	sender := newLiveSender()

	d := NewDispatcher(sender, index, accounts)
	assert.False(t, d.SendToParticipant(context.Background(), driver, "ride-request", nil))
	assert.Empty(t, sender.sent)
}
