package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"ride-relay/internal/models"
)

var ErrTripNotFound = errors.New("trip not found")

// TripRepository reads trips owned by the trip service.
type TripRepository interface {
	GetTrip(ctx context.Context, tripID string) (models.Trip, error)
}

// TripRepo reads trips from a shared database.
type TripRepo struct {
	db *sqlx.DB
}

// NewTripRepo constructs a TripRepo.
func NewTripRepo(db *sqlx.DB) *TripRepo {
	return &TripRepo{db: db}
}

// GetTrip fetches the rider and driver of a trip.
func (r *TripRepo) GetTrip(ctx context.Context, tripID string) (models.Trip, error) {
	var trip models.Trip
	err := r.db.GetContext(ctx, &trip, `SELECT id, rider_id, driver_id FROM trips WHERE id=$1`, tripID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Trip{}, ErrTripNotFound
	}
	return trip, err
}
