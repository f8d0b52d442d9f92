// Package repository declares the storage contracts the service layer
// depends on. Implementations live in sub-packages (see repository/sqlite).
package repository

import (
	"context"

	"github.com/sakif/travel-journal/internal/model"
)

// UserRepository persists User records.
//
// CreateUser returns an apperror.ErrConflict error when the username is
// already taken. Both getters return apperror.ErrNotFound when no row matches.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

// TripRepository persists Trip records. Trips are append-only: there is no
// update or delete.
type TripRepository interface {
	CreateTrip(ctx context.Context, trip *model.Trip) error
	GetTrip(ctx context.Context, id int64) (*model.Trip, error)
	// ListTrips returns every trip, newest first.
	ListTrips(ctx context.Context) ([]model.Trip, error)
}
