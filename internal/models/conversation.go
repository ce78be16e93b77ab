package models

import "time"

// Trip is the slice of the trip record the relay reads when opening a conversation.
type Trip struct {
	ID       string `db:"id" json:"id"`
	RiderID  string `db:"rider_id" json:"rider_id"`
	DriverID string `db:"driver_id" json:"driver_id"`
}

// HasParticipant reports whether ref is the trip's rider or driver.
func (t Trip) HasParticipant(ref ParticipantRef) bool {
	switch ref.Kind {
	case KindRider:
		return t.RiderID != "" && t.RiderID == ref.ID
	case KindDriver:
		return t.DriverID != "" && t.DriverID == ref.ID
	}
	return false
}

// Conversation is the single chat thread of a trip.
type Conversation struct {
	ID        int64     `db:"id" json:"id"`
	TripID    string    `db:"trip_id" json:"trip_id"`
	RiderID   string    `db:"rider_id" json:"rider_id"`
	DriverID  string    `db:"driver_id" json:"driver_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Trip returns the participants recorded on the conversation.
func (c Conversation) Trip() Trip {
	return Trip{ID: c.TripID, RiderID: c.RiderID, DriverID: c.DriverID}
}
