package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ride-relay/internal/models"
	"ride-relay/internal/observability"
	"ride-relay/internal/repositories"
)

// LocationRelay overwrites a driver's latest position. It never broadcasts.
type LocationRelay struct {
	accounts repositories.AccountRepository
}

// NewLocationRelay constructs a LocationRelay.
func NewLocationRelay(accounts repositories.AccountRepository) *LocationRelay {
	return &LocationRelay{accounts: accounts}
}

// Update validates and stores a driver position. A nil coordinate means the
// field was missing.
func (l *LocationRelay) Update(ctx context.Context, driverID string, lat, lng *float64) error {
	if driverID == "" || lat == nil || lng == nil {
		observability.IncLocationUpdate("invalid")
		return ErrInvalidLocation
	}
	if *lat < -90 || *lat > 90 || *lng < -180 || *lng > 180 {
		observability.IncLocationUpdate("invalid")
		return ErrInvalidLocation
	}

	err := l.accounts.UpdateDriverLocation(ctx, driverID, *lat, *lng)
	switch {
	case err == nil:
		observability.IncLocationUpdate("stored")
		return nil
	case errors.Is(err, repositories.ErrParticipantNotFound):
		observability.IncLocationUpdate("unknown_driver")
		return err
	default:
		observability.IncLocationUpdate("store_failed")
		return fmt.Errorf("%w: update location: %w", ErrStorage, err)
	}
}

// Latest returns the driver's last stored position, or nil when the driver
// never reported one.
func (l *LocationRelay) Latest(ctx context.Context, driverID string) (*models.Location, error) {
	if driverID == "" {
		return nil, repositories.ErrParticipantNotFound
	}
	loc, err := l.accounts.GetDriverLocation(ctx, driverID)
	switch {
	case err == nil:
		return loc, nil
	case errors.Is(err, repositories.ErrParticipantNotFound):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: read location: %w", ErrStorage, err)
	}
}

// DecodeCoordinates reads lat and lng from a raw location object. Older
// clients send the latitude as "ltd". Missing or null fields come back nil;
// a present value that is not a JSON number is an error.
func DecodeCoordinates(raw map[string]json.RawMessage) (lat, lng *float64, err error) {
	latRaw, ok := raw["lat"]
	if !ok {
		latRaw = raw["ltd"]
	}
	if lat, err = decodeNumber(latRaw); err != nil {
		return nil, nil, err
	}
	if lng, err = decodeNumber(raw["lng"]); err != nil {
		return nil, nil, err
	}
	return lat, lng, nil
}

func decodeNumber(raw json.RawMessage) (*float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, ErrInvalidLocation
	}
	return &v, nil
}
