package models

import "encoding/json"

// Notification asks the relay to push one event to one participant, wherever
// they are connected. ConnectionHandle wins over Participant when both are set.
type Notification struct {
	ConnectionHandle string          `json:"connectionHandle,omitempty"`
	ParticipantID    string          `json:"participantId,omitempty"`
	ParticipantKind  string          `json:"participantKind,omitempty"`
	Event            string          `json:"event"`
	Data             json.RawMessage `json:"data,omitempty"`
}
