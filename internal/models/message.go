package models

import "time"

// Message is an immutable chat line. CreatedAt comes from the database.
type Message struct {
	ID             int64           `db:"id" json:"id"`
	ConversationID int64           `db:"conversation_id" json:"conversation_id"`
	SenderID       string          `db:"sender_id" json:"sender_id"`
	SenderKind     ParticipantKind `db:"sender_kind" json:"sender_kind"`
	Text           string          `db:"text" json:"text"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// PrivateMessageEvent is broadcast to a trip room after the message is stored.
type PrivateMessageEvent struct {
	SenderID   string          `json:"senderId"`
	SenderKind ParticipantKind `json:"senderKind"`
	Message    string          `json:"message"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewPrivateMessageEvent builds the room payload for a stored message.
func NewPrivateMessageEvent(msg Message) PrivateMessageEvent {
	return PrivateMessageEvent{
		SenderID:   msg.SenderID,
		SenderKind: msg.SenderKind,
		Message:    msg.Text,
		Timestamp:  msg.CreatedAt,
	}
}
