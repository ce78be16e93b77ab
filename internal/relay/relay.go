// Package relay holds the trip chat core: presence registration, trip rooms,
// conversation resolution, message and location relays, and targeted delivery.
package relay

import (
	"errors"

	"ride-relay/internal/models"
)

var (
	ErrInvalidMessage     = errors.New("invalid message")
	ErrInvalidLocation    = errors.New("invalid location data")
	ErrInvalidTarget      = errors.New("invalid notification target")
	ErrNotTripParticipant = errors.New("sender is not a participant of the trip")
	ErrTripUnassigned     = errors.New("trip has no rider or driver assigned")
	ErrStorage            = errors.New("storage failure")
)

const roomPrefix = "room_"

// RoomName returns the broadcast channel of a trip.
func RoomName(tripID string) string {
	return roomPrefix + tripID
}

// RoomBroadcaster fans an event out to every live member of a room and
// reports how many connections it reached.
type RoomBroadcaster interface {
	EmitToRoom(room, event string, payload any) int
}

// ConnectionSender delivers an event to one live connection. It returns false
// when the handle is not live.
type ConnectionSender interface {
	SendTo(handle, event string, payload any) bool
}

// PresenceIndex is the process-local binding between live connections and
// participant identities.
type PresenceIndex interface {
	Bind(handle string, ref models.ParticipantRef) bool
	Unbind(handle string)
	HandleFor(ref models.ParticipantRef) (string, bool)
}
