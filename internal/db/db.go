package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the database and applies migrations.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// riders, drivers and trips belong to the account and trip services. They are
// created here only so a standalone deployment has something to read from.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS riders (
            id TEXT PRIMARY KEY,
            last_connection_handle TEXT
        );`,
	`CREATE TABLE IF NOT EXISTS drivers (
            id TEXT PRIMARY KEY,
            last_connection_handle TEXT,
            location_lat DOUBLE PRECISION,
            location_lng DOUBLE PRECISION,
            location_updated_at TIMESTAMPTZ
        );`,
	`CREATE TABLE IF NOT EXISTS trips (
            id TEXT PRIMARY KEY,
            rider_id TEXT NOT NULL,
            driver_id TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS conversations (
            id BIGSERIAL PRIMARY KEY,
            trip_id TEXT NOT NULL,
            rider_id TEXT NOT NULL,
            driver_id TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CONSTRAINT conversations_trip_id_key UNIQUE(trip_id)
        );`,
	`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            conversation_id BIGINT NOT NULL REFERENCES conversations(id),
            sender_id TEXT NOT NULL,
            sender_kind TEXT NOT NULL CHECK (sender_kind IN ('rider', 'driver')),
            text TEXT NOT NULL CHECK (text <> ''),
            created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
        );`,
	`CREATE INDEX IF NOT EXISTS messages_conversation_created_idx ON messages (conversation_id, created_at, id);`,
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
