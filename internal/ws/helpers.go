package ws

import (
	"encoding/json"

	"github.com/google/uuid"

	"ride-relay/internal/models"
)

func newConnID() string {
	return uuid.NewString()
}

// encodeFrame wraps payload in the event envelope.
func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(models.Envelope{Event: event, Data: data})
}
