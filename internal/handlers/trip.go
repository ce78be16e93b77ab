package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ride-relay/internal/models"
)

// HistoryReader returns the stored messages of a trip.
type HistoryReader interface {
	History(ctx context.Context, tripID string) ([]models.Message, error)
}

// TripHandler serves read-only trip chat endpoints.
type TripHandler struct {
	history HistoryReader
}

// NewTripHandler builds a TripHandler.
func NewTripHandler(history HistoryReader) *TripHandler {
	return &TripHandler{history: history}
}

type messageResponse struct {
	ID         int64                  `json:"id"`
	SenderID   string                 `json:"sender_id"`
	SenderKind models.ParticipantKind `json:"sender_kind"`
	Text       string                 `json:"text"`
	CreatedAt  time.Time              `json:"created_at"`
}

// GetTripMessages returns the trip conversation ordered by server timestamp.
// A trip nobody has written in yet has an empty history.
func (h *TripHandler) GetTripMessages(c *gin.Context) {
	tripID := strings.TrimSpace(c.Param("trip_id"))
	if tripID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip id"})
		return
	}

	msgs, err := h.history.History(c.Request.Context(), tripID)
	if err != nil {
		log.Printf("history failed request_id=%s trip_id=%s err=%v", requestIDFromContext(c), tripID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, messageResponse{
			ID:         m.ID,
			SenderID:   m.SenderID,
			SenderKind: m.SenderKind,
			Text:       m.Text,
			CreatedAt:  m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"trip_id": tripID, "messages": resp})
}
