package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ride-relay/internal/models"
	"ride-relay/internal/relay"
)

// Notifier pushes one event to one connection or participant.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) (bool, error)
}

// NotifyHandler lets trip-lifecycle services reach a rider or driver directly.
type NotifyHandler struct {
	notifier Notifier
}

func NewNotifyHandler(notifier Notifier) *NotifyHandler {
	return &NotifyHandler{notifier: notifier}
}

// Notify answers 200 whether or not the target was online; delivered says which.
func (h *NotifyHandler) Notify(c *gin.Context) {
	var req models.Notification
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	delivered, err := h.notifier.Notify(c.Request.Context(), req)
	if errors.Is(err, relay.ErrInvalidTarget) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notification failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}
