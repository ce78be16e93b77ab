package handlers

import (
	"github.com/gin-gonic/gin"

	"ride-relay/internal/models"
	"ride-relay/internal/observability"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := observability.RequestIDFromRequest(c.Request)
	c.Set(requestIDContextKey, requestID)
	return requestID
}

// participantFromRequest reads the optional X-Participant-Kind and
// X-Participant-ID headers. It returns "" when they do not name a participant.
func participantFromRequest(c *gin.Context) string {
	kind, err := models.ParseParticipantKind(c.GetHeader("X-Participant-Kind"))
	if err != nil {
		return ""
	}
	ref := models.ParticipantRef{Kind: kind, ID: c.GetHeader("X-Participant-ID")}
	if ref.IsZero() {
		return ""
	}
	return ref.String()
}
