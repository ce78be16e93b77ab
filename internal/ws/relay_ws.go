package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ride-relay/internal/models"
	"ride-relay/internal/observability"
	"ride-relay/internal/relay"
	"ride-relay/internal/repositories"
	"ride-relay/internal/telemetry"
)

var tracer = otel.Tracer("ride-relay/ws")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RelayWebSocketHandler serves the rider/driver relay socket.
type RelayWebSocketHandler struct {
	hub        *Hub
	presence   *relay.Presence
	messages   *relay.MessageRelay
	locations  *relay.LocationRelay
	audit      *telemetry.AuditEmitter
	opTimeout  time.Duration
	sendBuffer int
}

// NewRelayWebSocketHandler constructs a RelayWebSocketHandler. opTimeout bounds
// every store call made on behalf of one inbound event.
func NewRelayWebSocketHandler(hub *Hub, presence *relay.Presence, messages *relay.MessageRelay, locations *relay.LocationRelay, audit *telemetry.AuditEmitter, opTimeout time.Duration, sendBuffer int) *RelayWebSocketHandler {
	return &RelayWebSocketHandler{
		hub:        hub,
		presence:   presence,
		messages:   messages,
		locations:  locations,
		audit:      audit,
		opTimeout:  opTimeout,
		sendBuffer: sendBuffer,
	}
}

// Handle upgrades the connection and serves it until it disconnects.
func (h *RelayWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	conn, err := upgrader.Upgrade(c.Writer, c.Request.WithContext(ctx), nil)
	if err != nil {
		span.RecordError(err)
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	span.SetAttributes(attribute.String("relay.conn_id", info.ConnID))

	client := newClient(conn, info, h.sendBuffer)
	h.hub.Add(client)
	go client.writeLoop()

	observability.IncWSEvent("ws_connect")
	h.publishLifecycle("ws_connect", info, "")

	// Events outlive the HTTP request; keep only the handshake span as parent.
	connCtx := trace.ContextWithSpanContext(context.Background(), span.SpanContext())
	go h.serve(connCtx, client)
}

// serve reads frames until the connection fails. Frames are handled one at a
// time, so a connection's events are processed in arrival order.
func (h *RelayWebSocketHandler) serve(ctx context.Context, client *Client) {
	conn := client.conn
	closeReason := ""
	defer func() {
		h.presence.Unregister(client.Handle)
		h.hub.Remove(client)
		client.Close(websocket.CloseNormalClosure, "")
		observability.IncWSEvent(models.EventDisconnect)
		h.publishLifecycle("ws_disconnect", client.Info, closeReason)
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publishLifecycle("ws_error", client.Info, closeReason)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.HandleFrame(ctx, client.Handle, data)
	}
}

// HandleFrame decodes one inbound frame and runs the matching operation.
func (h *RelayWebSocketHandler) HandleFrame(ctx context.Context, handle string, data []byte) {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
		observability.IncWSEvent("malformed")
		log.Printf("ws: malformed frame conn_id=%s", handle)
		return
	}

	ctx, span := tracer.Start(ctx, "ws."+env.Event, trace.WithAttributes(attribute.String("relay.conn_id", handle)))
	defer span.End()
	if h.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opTimeout)
		defer cancel()
	}

	observability.IncWSEvent(env.Event)
	var err error
	switch env.Event {
	case models.EventJoin:
		h.handleJoin(ctx, handle, env.Data)
	case models.EventJoinPrivateChat:
		h.handleJoinPrivateChat(handle, env.Data)
	case models.EventPrivateMessage:
		err = h.handlePrivateMessage(ctx, handle, env.Data)
	case models.EventUpdateLocation:
		err = h.handleUpdateLocation(ctx, handle, env.Data)
	default:
		log.Printf("ws: unknown event=%s conn_id=%s", env.Event, handle)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func (h *RelayWebSocketHandler) handleJoin(ctx context.Context, handle string, data json.RawMessage) {
	var req models.JoinPayload
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	kind, err := models.ParseParticipantKind(req.ParticipantKind)
	if err != nil || req.ParticipantID == "" {
		log.Printf("ws: join ignored conn_id=%s kind=%q", handle, req.ParticipantKind)
		return
	}
	h.presence.Register(ctx, handle, models.ParticipantRef{Kind: kind, ID: req.ParticipantID})
}

func (h *RelayWebSocketHandler) handleJoinPrivateChat(handle string, data json.RawMessage) {
	var req models.JoinPrivateChatPayload
	if err := json.Unmarshal(data, &req); err != nil || req.TripID == "" {
		return
	}
	room := relay.RoomName(req.TripID)
	if !h.hub.Join(handle, room) {
		return
	}
	h.hub.SendTo(handle, models.EventJoinedChat, models.JoinedRoomEvent{Room: room})
}

func (h *RelayWebSocketHandler) handlePrivateMessage(ctx context.Context, handle string, data json.RawMessage) error {
	var req models.PrivateMessagePayload
	if err := json.Unmarshal(data, &req); err != nil {
		return nil
	}
	kind, err := models.ParseParticipantKind(req.SenderKind)
	if err != nil {
		return nil
	}
	sender := models.ParticipantRef{Kind: kind, ID: req.SenderID}

	msg, err := h.messages.Send(ctx, req.TripID, sender, req.Message)
	if err == nil {
		_ = observability.PublishEvent(ctx, observability.RoutingChatMessages, observability.EventEnvelope{
			EventType: "chat_events",
			EventName: "message_stored",
			Payload: map[string]interface{}{
				"trip_id":         req.TripID,
				"conversation_id": msg.ConversationID,
				"message_id":      msg.ID,
				"sender_id":       msg.SenderID,
				"sender_kind":     msg.SenderKind,
				"created_at":      msg.CreatedAt,
			},
		}, h.headersFor(handle))
		return nil
	}

	notice := privateMessageNotice(err)
	if notice == "" {
		// invalid input is dropped without an acknowledgement
		return nil
	}
	h.hub.SendTo(handle, models.EventError, models.ErrorEvent{Message: notice})
	if errors.Is(err, relay.ErrStorage) {
		log.Printf("ws: private-message failed conn_id=%s trip_id=%s sender=%s: %v", handle, req.TripID, sender, err)
		h.audit.Emit(ctx, h.requestID(handle), sender.String(), telemetry.AuditPayload{
			Level:  "ERROR",
			Action: models.EventPrivateMessage,
			Text:   err.Error(),
			TripID: req.TripID,
		})
	}
	return err
}

func privateMessageNotice(err error) string {
	switch {
	case errors.Is(err, relay.ErrInvalidMessage):
		return ""
	case errors.Is(err, repositories.ErrTripNotFound):
		return "Trip not found"
	case errors.Is(err, relay.ErrTripUnassigned):
		return "Trip has no assigned driver yet"
	case errors.Is(err, relay.ErrNotTripParticipant):
		return "Sender is not part of this trip"
	default:
		return "Message could not be delivered"
	}
}

func (h *RelayWebSocketHandler) handleUpdateLocation(ctx context.Context, handle string, data json.RawMessage) error {
	var req models.UpdateLocationPayload
	if err := json.Unmarshal(data, &req); err != nil {
		h.hub.SendTo(handle, models.EventError, models.ErrorEvent{Message: "Invalid location data"})
		return relay.ErrInvalidLocation
	}

	driverID := req.ParticipantID
	if driverID == "" {
		if ref, ok := h.hub.Identity(handle); ok && ref.Kind == models.KindDriver {
			driverID = ref.ID
		}
	}

	lat, lng, err := relay.DecodeCoordinates(req.Location)
	if err == nil {
		err = h.locations.Update(ctx, driverID, lat, lng)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, relay.ErrInvalidLocation):
		h.hub.SendTo(handle, models.EventError, models.ErrorEvent{Message: "Invalid location data"})
	default:
		log.Printf("ws: location update dropped conn_id=%s driver_id=%s: %v", handle, driverID, err)
	}
	return err
}

func (h *RelayWebSocketHandler) requestID(handle string) string {
	info, _ := h.hub.ClientInfo(handle)
	return info.RequestID
}

func (h *RelayWebSocketHandler) headersFor(handle string) map[string]string {
	info, _ := h.hub.ClientInfo(handle)
	return observability.BuildHeaders(info.RequestID, info.TraceID)
}

func (h *RelayWebSocketHandler) publishLifecycle(event string, info ConnInfo, reason string) {
	_ = observability.PublishEvent(context.Background(), observability.RoutingWSEvents, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "relay",
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": info.Age().Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
