package models

import "encoding/json"

// Event names used on the relay socket.
const (
	EventJoin            = "join"
	EventJoinPrivateChat = "join-private-chat"
	EventJoinedChat      = "joined-private-chat"
	EventPrivateMessage  = "private-message"
	EventUpdateLocation  = "update-location-captain"
	EventError           = "error"
	EventDisconnect      = "disconnect"
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinPayload announces the identity behind a connection.
type JoinPayload struct {
	ParticipantID   string `json:"participantId"`
	ParticipantKind string `json:"participantKind"`
}

// JoinPrivateChatPayload asks to join a trip room.
type JoinPrivateChatPayload struct {
	TripID string `json:"tripId"`
}

// PrivateMessagePayload is a chat line sent by a client.
type PrivateMessagePayload struct {
	TripID     string `json:"tripId"`
	SenderID   string `json:"senderId"`
	SenderKind string `json:"senderKind"`
	Message    string `json:"message"`
}

// UpdateLocationPayload carries a driver position. Location stays raw so the
// relay can tell missing and non-numeric coordinates apart.
type UpdateLocationPayload struct {
	ParticipantID string                     `json:"participantId"`
	Location      map[string]json.RawMessage `json:"location"`
}

// JoinedRoomEvent acknowledges a room join.
type JoinedRoomEvent struct {
	Room string `json:"room"`
}

// ErrorEvent is sent only to the connection that caused it.
type ErrorEvent struct {
	Message string `json:"message"`
}
