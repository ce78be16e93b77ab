package models

import (
	"errors"
	"strings"
)

// ParticipantKind tells riders and drivers apart.
type ParticipantKind string

const (
	KindRider  ParticipantKind = "rider"
	KindDriver ParticipantKind = "driver"
)

var ErrUnknownParticipantKind = errors.New("unknown participant kind")

// ParseParticipantKind normalises a wire value. The legacy "user" and
// "captain" spellings map to rider and driver.
func ParseParticipantKind(raw string) (ParticipantKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "rider", "user":
		return KindRider, nil
	case "driver", "captain":
		return KindDriver, nil
	}
	return "", ErrUnknownParticipantKind
}

func (k ParticipantKind) Valid() bool {
	return k == KindRider || k == KindDriver
}

// ParticipantRef identifies a rider or a driver. The kind always travels with the id.
type ParticipantRef struct {
	Kind ParticipantKind `json:"participantKind"`
	ID   string          `json:"participantId"`
}

func (p ParticipantRef) IsZero() bool {
	return p.ID == "" || !p.Kind.Valid()
}

func (p ParticipantRef) String() string {
	return string(p.Kind) + ":" + p.ID
}
