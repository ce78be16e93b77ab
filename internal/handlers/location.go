package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ride-relay/internal/models"
	"ride-relay/internal/repositories"
)

// LocationReader returns the latest stored position of a driver.
type LocationReader interface {
	Latest(ctx context.Context, driverID string) (*models.Location, error)
}

// DriverHandler serves driver reads for trip-lifecycle services.
type DriverHandler struct {
	locations LocationReader
}

func NewDriverHandler(locations LocationReader) *DriverHandler {
	return &DriverHandler{locations: locations}
}

// GetDriverLocation answers 404 both for unknown drivers and for drivers that
// never reported a position; the error text tells them apart.
func (h *DriverHandler) GetDriverLocation(c *gin.Context) {
	driverID := strings.TrimSpace(c.Param("driver_id"))
	if driverID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid driver id"})
		return
	}

	loc, err := h.locations.Latest(c.Request.Context(), driverID)
	if errors.Is(err, repositories.ErrParticipantNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "driver not found"})
		return
	}
	if err != nil {
		log.Printf("location read failed request_id=%s driver_id=%s err=%v", requestIDFromContext(c), driverID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load location"})
		return
	}
	if loc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no location reported"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"driver_id": driverID, "location": loc})
}
