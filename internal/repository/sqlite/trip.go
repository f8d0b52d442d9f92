package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/travel-journal/internal/apperror"
	"github.com/sakif/travel-journal/internal/model"
	"github.com/sakif/travel-journal/internal/repository"
)

var _ repository.TripRepository = (*DB)(nil)

// tripColumns is shared by every read so GetTrip and ListTrips scan the same
// shape. The owner's username comes along as "author".
const tripColumns = `t.id, t.title, t.description, t.location, t.image, t.cost,
	t.places, t.rating, t.user_id, t.created_at, u.username AS author`

// CreateTrip inserts a trip and fills in ID and CreatedAt.
//
// CreatedAt is always the server clock at insert time; anything the caller
// put there is overwritten. A user_id that does not reference an existing
// user fails on the foreign key.
func (db *DB) CreateTrip(ctx context.Context, trip *model.Trip) error {
	trip.CreatedAt = db.now()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO trips (title, description, location, image, cost, places, rating, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trip.Title,
		trip.Description,
		trip.Location,
		trip.Image,
		trip.Cost,
		trip.Places,
		trip.Rating,
		trip.UserID,
		trip.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating trip: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading trip id: %w", err)
	}
	trip.ID = id

	return nil
}

// GetTrip retrieves a single trip with its author.
// Returns apperror.ErrNotFound if the trip does not exist.
func (db *DB) GetTrip(ctx context.Context, id int64) (*model.Trip, error) {
	var trip model.Trip
	err := db.conn.GetContext(ctx, &trip,
		`SELECT `+tripColumns+`
		 FROM trips t JOIN users u ON u.id = t.user_id
		 WHERE t.id = ?`,
		id,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("trip", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting trip %d: %w", id, err)
	}
	return &trip, nil
}

// ListTrips returns every trip, newest first. Trips created within the same
// clock tick fall back to id order, which is insertion order.
func (db *DB) ListTrips(ctx context.Context) ([]model.Trip, error) {
	trips := []model.Trip{}
	err := db.conn.SelectContext(ctx, &trips,
		`SELECT `+tripColumns+`
		 FROM trips t JOIN users u ON u.id = t.user_id
		 ORDER BY t.created_at DESC, t.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing trips: %w", err)
	}
	return trips, nil
}
