package models

import "time"

// Location is the latest known position of a driver.
type Location struct {
	Lat       float64   `db:"location_lat" json:"lat"`
	Lng       float64   `db:"location_lng" json:"lng"`
	UpdatedAt time.Time `db:"location_updated_at" json:"updated_at"`
}
