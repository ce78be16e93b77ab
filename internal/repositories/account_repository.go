package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"ride-relay/internal/models"
)

var ErrParticipantNotFound = errors.New("participant not found")

// AccountRepository covers the account fields the relay writes: the presence
// pointer of riders and drivers and the latest driver location.
type AccountRepository interface {
	SetPresencePointer(ctx context.Context, ref models.ParticipantRef, handle string) error
	GetPresencePointer(ctx context.Context, ref models.ParticipantRef) (string, error)
	UpdateDriverLocation(ctx context.Context, driverID string, lat, lng float64) error
	GetDriverLocation(ctx context.Context, driverID string) (*models.Location, error)
}

// AccountRepo is a sqlx implementation of AccountRepository.
type AccountRepo struct {
	db *sqlx.DB
}

// NewAccountRepo constructs an AccountRepo.
func NewAccountRepo(db *sqlx.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func accountTable(kind models.ParticipantKind) (string, error) {
	switch kind {
	case models.KindRider:
		return "riders", nil
	case models.KindDriver:
		return "drivers", nil
	}
	return "", models.ErrUnknownParticipantKind
}

// SetPresencePointer overwrites the participant's last connection handle.
func (r *AccountRepo) SetPresencePointer(ctx context.Context, ref models.ParticipantRef, handle string) error {
	table, err := accountTable(ref.Kind)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET last_connection_handle=$2 WHERE id=$1`, table), ref.ID, handle)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// GetPresencePointer returns the last connection handle, empty if never set.
func (r *AccountRepo) GetPresencePointer(ctx context.Context, ref models.ParticipantRef) (string, error) {
	table, err := accountTable(ref.Kind)
	if err != nil {
		return "", err
	}
	var handle sql.NullString
	err = r.db.GetContext(ctx, &handle, fmt.Sprintf(`SELECT last_connection_handle FROM %s WHERE id=$1`, table), ref.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrParticipantNotFound
	}
	return handle.String, err
}

// UpdateDriverLocation replaces the driver's location. No history is kept.
func (r *AccountRepo) UpdateDriverLocation(ctx context.Context, driverID string, lat, lng float64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE drivers SET location_lat=$2, location_lng=$3, location_updated_at=NOW() WHERE id=$1`, driverID, lat, lng)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// GetDriverLocation returns nil when the driver never reported a position.
func (r *AccountRepo) GetDriverLocation(ctx context.Context, driverID string) (*models.Location, error) {
	var row struct {
		Lat       sql.NullFloat64 `db:"location_lat"`
		Lng       sql.NullFloat64 `db:"location_lng"`
		UpdatedAt sql.NullTime    `db:"location_updated_at"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT location_lat, location_lng, location_updated_at FROM drivers WHERE id=$1`, driverID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrParticipantNotFound
	}
	if err != nil {
		return nil, err
	}
	if !row.Lat.Valid || !row.Lng.Valid {
		return nil, nil
	}
	return &models.Location{Lat: row.Lat.Float64, Lng: row.Lng.Float64, UpdatedAt: row.UpdatedAt.Time}, nil
}

func expectOneRow(res sql.Result) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrParticipantNotFound
	}
	return nil
}
