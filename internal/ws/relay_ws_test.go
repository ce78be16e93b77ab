package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ride-relay/internal/mocks"
	"ride-relay/internal/models"
	"ride-relay/internal/relay"
	"ride-relay/internal/repositories"
	"ride-relay/internal/telemetry"
)

type relayFixture struct {
	hub       *Hub
	handler   *RelayWebSocketHandler
	accounts  *mocks.AccountRepositoryMock
	convs     *mocks.ConversationRepositoryMock
	trips     *mocks.TripRepositoryMock
	messages  *mocks.MessageRepositoryMock
	publisher *mocks.PublisherMock
}

var (
	tripT9   = models.Trip{ID: "T9", RiderID: "R1", DriverID: "D1"}
	convT9   = models.Conversation{ID: 1, TripID: "T9", RiderID: "R1", DriverID: "D1"}
	riderR1  = models.ParticipantRef{Kind: models.KindRider, ID: "R1"}
	driverD1 = models.ParticipantRef{Kind: models.KindDriver, ID: "D1"}
)

func newRelayFixture(t *testing.T) *relayFixture {
	t.Helper()
	f := &relayFixture{
		hub:       NewHub(),
		accounts:  new(mocks.AccountRepositoryMock),
		convs:     new(mocks.ConversationRepositoryMock),
		trips:     new(mocks.TripRepositoryMock),
		messages:  new(mocks.MessageRepositoryMock),
		publisher: new(mocks.PublisherMock),
	}
	f.accounts.On("SetPresencePointer", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.convs.On("GetByTrip", mock.Anything, "T9").Return(convT9, nil).Maybe()

	resolver := relay.NewResolver(f.convs, f.trips)
	f.handler = NewRelayWebSocketHandler(
		f.hub,
		relay.NewPresence(f.accounts, f.hub),
		relay.NewMessageRelay(resolver, f.messages, f.hub),
		relay.NewLocationRelay(f.accounts),
		telemetry.NewAuditEmitter(f.publisher, "audit.relay", "ride-relay", "test"),
		time.Second,
		8,
	)
	return f
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	raw, err := encodeFrame(event, data)
	require.NoError(t, err)
	return raw
}

func (f *relayFixture) joinTrip(t *testing.T, client *Client, ref models.ParticipantRef, tripID string) {
	t.Helper()
	ctx := context.Background()
	f.handler.HandleFrame(ctx, client.Handle, frame(t, models.EventJoin, models.JoinPayload{ParticipantID: ref.ID, ParticipantKind: string(ref.Kind)}))
	f.handler.HandleFrame(ctx, client.Handle, frame(t, models.EventJoinPrivateChat, models.JoinPrivateChatPayload{TripID: tripID}))
	ack := nextFrame(t, client)
	require.Equal(t, models.EventJoinedChat, ack.Event)
	assert.JSONEq(t, `{"room":"room_`+tripID+`"}`, string(ack.Data))
}

func TestPrivateMessageReachesBothParticipants(t *testing.T) {
	f := newRelayFixture(t)
	c1 := addTestClient(f.hub, "c1", 8)
	c2 := addTestClient(f.hub, "c2", 8)
	f.joinTrip(t, c1, riderR1, "T9")
	f.joinTrip(t, c2, driverD1, "T9")

	stored := models.Message{ID: 5, ConversationID: 1, SenderID: "R1", SenderKind: models.KindRider, Text: "hello", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	f.messages.On("CreateMessage", mock.Anything, int64(1), riderR1, "hello").Return(stored, nil).Once()

	f.handler.HandleFrame(context.Background(), "c1", frame(t, models.EventPrivateMessage, models.PrivateMessagePayload{
		TripID: "T9", SenderID: "R1", SenderKind: "user", Message: "hello",
	}))

	for _, c := range []*Client{c1, c2} {
		env := nextFrame(t, c)
		assert.Equal(t, models.EventPrivateMessage, env.Event)
		var got models.PrivateMessageEvent
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, "R1", got.SenderID)
		assert.Equal(t, models.KindRider, got.SenderKind)
		assert.Equal(t, "hello", got.Message)
		assert.True(t, stored.CreatedAt.Equal(got.Timestamp))
	}
	f.messages.AssertExpectations(t)
	f.accounts.AssertCalled(t, "SetPresencePointer", mock.Anything, riderR1, "c1")
	f.accounts.AssertCalled(t, "SetPresencePointer", mock.Anything, driverD1, "c2")
}

func TestEmptyMessageIsDroppedSilently(t *testing.T) {
	f := newRelayFixture(t)
	c1 := addTestClient(f.hub, "c1", 8)
	f.joinTrip(t, c1, riderR1, "T9")

	f.handler.HandleFrame(context.Background(), "c1", frame(t, models.EventPrivateMessage, models.PrivateMessagePayload{
		TripID: "T9", SenderID: "R1", SenderKind: "rider", Message: "",
	}))

	assertNoFrame(t, c1)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStorageFailureNotifiesSenderOnly(t *testing.T) {
	f := newRelayFixture(t)
	c1 := addTestClient(f.hub, "c1", 8)
	c2 := addTestClient(f.hub, "c2", 8)
	f.joinTrip(t, c1, riderR1, "T9")
	f.joinTrip(t, c2, driverD1, "T9")

	f.messages.On("CreateMessage", mock.Anything, int64(1), driverD1, "hi").Return(nil, errors.New("connection reset")).Once()
	f.publisher.On("Publish", mock.Anything, "audit.relay", mock.MatchedBy(func(env telemetry.AuditEnvelope) bool {
		return env.Payload.Action == models.EventPrivateMessage && env.Payload.TripID == "T9" && env.Participant == "driver:D1"
	}), map[string]string{"x-request-id": "req-c2"}).Return(nil).Once()

	f.handler.HandleFrame(context.Background(), "c2", frame(t, models.EventPrivateMessage, models.PrivateMessagePayload{
		TripID: "T9", SenderID: "D1", SenderKind: "captain", Message: "hi",
	}))

	env := nextFrame(t, c2)
	assert.Equal(t, models.EventError, env.Event)
	assert.JSONEq(t, `{"message":"Message could not be delivered"}`, string(env.Data))
	assertNoFrame(t, c1)
	f.publisher.AssertExpectations(t)
}

func TestUnknownTripNotifiesSender(t *testing.T) {
	f := newRelayFixture(t)
	c1 := addTestClient(f.hub, "c1", 8)
	f.convs.On("GetByTrip", mock.Anything, "T404").Return(nil, repositories.ErrConversationNotFound).Once()
	f.trips.On("GetTrip", mock.Anything, "T404").Return(nil, repositories.ErrTripNotFound).Once()

	f.handler.HandleFrame(context.Background(), "c1", frame(t, models.EventPrivateMessage, models.PrivateMessagePayload{
		TripID: "T404", SenderID: "R1", SenderKind: "rider", Message: "hi",
	}))

	env := nextFrame(t, c1)
	assert.Equal(t, models.EventError, env.Event)
	assert.JSONEq(t, `{"message":"Trip not found"}`, string(env.Data))
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInvalidLocationRepliesToOriginOnly(t *testing.T) {
	f := newRelayFixture(t)
	c1 := addTestClient(f.hub, "c1", 8)
	c2 := addTestClient(f.hub, "c2", 8)
	f.joinTrip(t, c1, riderR1, "T9")
	f.joinTrip(t, c2, driverD1, "T9")

	f.handler.HandleFrame(context.Background(), "c2", []byte(`{"event":"update-location-captain","data":{"participantId":"D1","location":{"lat":null,"lng":5}}}`))

	env := nextFrame(t, c2)
	assert.Equal(t, models.EventError, env.Event)
	assert.JSONEq(t, `{"message":"Invalid location data"}`, string(env.Data))
	assertNoFrame(t, c1)
	f.accounts.AssertNotCalled(t, "UpdateDriverLocation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLocationUpdateIsNotBroadcast(t *testing.T) {
	f := newRelayFixture(t)
	c1 := addTestClient(f.hub, "c1", 8)
	c2 := addTestClient(f.hub, "c2", 8)
	f.joinTrip(t, c1, riderR1, "T9")
	f.joinTrip(t, c2, driverD1, "T9")
	f.accounts.On("UpdateDriverLocation", mock.Anything, "D1", 24.7, 46.6).Return(nil).Twice()

	f.handler.HandleFrame(context.Background(), "c2", []byte(`{"event":"update-location-captain","data":{"participantId":"D1","location":{"ltd":24.7,"lng":46.6}}}`))
	// participantId omitted: the bound driver identity is used
	f.handler.HandleFrame(context.Background(), "c2", []byte(`{"event":"update-location-captain","data":{"location":{"lat":24.7,"lng":46.6}}}`))

	assertNoFrame(t, c1)
	assertNoFrame(t, c2)
	f.accounts.AssertExpectations(t)
}

func TestMalformedAndUnknownFramesAreIgnored(t *testing.T) {
	f := newRelayFixture(t)
	c1 := addTestClient(f.hub, "c1", 8)

	f.handler.HandleFrame(context.Background(), "c1", []byte(`not json`))
	f.handler.HandleFrame(context.Background(), "c1", []byte(`{"data":{}}`))
	f.handler.HandleFrame(context.Background(), "c1", []byte(`{"event":"dance","data":{}}`))
	f.handler.HandleFrame(context.Background(), "c1", []byte(`{"event":"join","data":{"participantId":"X","participantKind":"pilot"}}`))
	f.handler.HandleFrame(context.Background(), "c1", []byte(`{"event":"join-private-chat","data":{}}`))

	assertNoFrame(t, c1)
	_, ok := f.hub.Identity("c1")
	assert.False(t, ok)
}

func dialRelay(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) models.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env models.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestRelaySocketRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newRelayFixture(t)
	router := gin.New()
	router.GET("/ws", f.handler.Handle)
	srv := httptest.NewServer(router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	stored := models.Message{ID: 9, ConversationID: 1, SenderID: "D1", SenderKind: models.KindDriver, Text: "arriving", CreatedAt: time.Now().UTC()}
	f.messages.On("CreateMessage", mock.Anything, int64(1), driverD1, "arriving").Return(stored, nil).Once()

	rider := dialRelay(t, url)
	driver := dialRelay(t, url)
	for _, p := range []struct {
		conn *websocket.Conn
		ref  models.ParticipantRef
	}{{rider, riderR1}, {driver, driverD1}} {
		require.NoError(t, p.conn.WriteJSON(map[string]any{"event": "join", "data": map[string]string{"participantId": p.ref.ID, "participantKind": string(p.ref.Kind)}}))
		require.NoError(t, p.conn.WriteJSON(map[string]any{"event": "join-private-chat", "data": map[string]string{"tripId": "T9"}}))
		ack := readEnvelope(t, p.conn)
		require.Equal(t, models.EventJoinedChat, ack.Event)
	}

	require.NoError(t, driver.WriteJSON(map[string]any{"event": "private-message", "data": map[string]string{
		"tripId": "T9", "senderId": "D1", "senderKind": "driver", "message": "arriving",
	}}))

	for _, conn := range []*websocket.Conn{rider, driver} {
		env := readEnvelope(t, conn)
		assert.Equal(t, models.EventPrivateMessage, env.Event)
		var got models.PrivateMessageEvent
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, "arriving", got.Message)
		assert.Equal(t, "D1", got.SenderID)
	}

	require.NoError(t, rider.Close())
	assert.Eventually(t, func() bool {
		return f.hub.Snapshot().Connections == 1
	}, 2*time.Second, 10*time.Millisecond)
}
