package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"ride-relay/internal/models"
	"ride-relay/internal/repositories"
)

const getTripMethod = "/trip.TripInternal/GetTrip"

// TripClient reads trips from the trip service over gRPC.
type TripClient struct {
	conn grpc.ClientConnInterface
}

// NewTripClient constructs the wrapper.
func NewTripClient(conn grpc.ClientConnInterface) *TripClient {
	return &TripClient{conn: conn}
}

// GetTrip fetches the rider and driver of a trip.
func (t *TripClient) GetTrip(ctx context.Context, tripID string) (models.Trip, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"trip_id": tripID})
	if err != nil {
		return models.Trip{}, err
	}

	resp := &structpb.Struct{}
	if err := t.conn.Invoke(ctx, getTripMethod, req, resp); err != nil {
		if status.Code(err) == codes.NotFound {
			return models.Trip{}, repositories.ErrTripNotFound
		}
		return models.Trip{}, fmt.Errorf("trip service: %w", err)
	}

	fields := resp.GetFields()
	trip := models.Trip{
		ID:       fields["trip_id"].GetStringValue(),
		RiderID:  fields["rider_id"].GetStringValue(),
		DriverID: fields["driver_id"].GetStringValue(),
	}
	if trip.ID == "" && trip.RiderID == "" && trip.DriverID == "" {
		return models.Trip{}, repositories.ErrTripNotFound
	}
	if trip.ID == "" {
		trip.ID = tripID
	}
	return trip, nil
}

var _ repositories.TripRepository = (*TripClient)(nil)
