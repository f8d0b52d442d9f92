package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"mime/multipart"
	"net/url"
	"strconv"
	"strings"

	"github.com/sakif/travel-journal/internal/apperror"
	"github.com/sakif/travel-journal/internal/model"
	"github.com/sakif/travel-journal/internal/repository"
)

// RequiredTripFields must be present in every trip submission. Empty values
// are accepted.
var RequiredTripFields = []string{"title", "description", "location", "places"}

// ImageSaver stores an optional upload and returns its storage name, or nil
// when fh is nil or unnamed. Discard drops a saved image whose trip was
// never stored. *upload.Uploader satisfies it.
type ImageSaver interface {
	Save(ctx context.Context, fh *multipart.FileHeader) (*string, error)
	Discard(ctx context.Context, name string)
}

// TripInput is a trip submission as received from the add form.
type TripInput struct {
	// Fields holds the submitted text fields. A key that is absent is a
	// missing field; a key with an empty value is an empty field.
	Fields url.Values
	Image  *multipart.FileHeader
}

// TripService owns trip records. Trips are append-only.
type TripService struct {
	repo   repository.TripRepository
	images ImageSaver
	logger *slog.Logger
}

func NewTripService(repo repository.TripRepository, images ImageSaver, logger *slog.Logger) *TripService {
	return &TripService{
		repo:   repo,
		images: images,
		logger: logger,
	}
}

// List returns every trip, newest first.
func (s *TripService) List(ctx context.Context) ([]model.Trip, error) {
	trips, err := s.repo.ListTrips(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/trip: listing trips: %w", err)
	}
	return trips, nil
}

// Get returns one trip, or an error wrapping apperror.ErrNotFound.
func (s *TripService) Get(ctx context.Context, id int64) (*model.Trip, error) {
	trip, err := s.repo.GetTrip(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/trip: getting trip %d: %w", id, err)
	}
	return trip, nil
}

// Create validates in and stores a trip owned by ownerID.
//
// All parsing happens before the image is saved, so a rejected submission
// leaves nothing behind in the upload area. If the insert fails the saved
// image is discarded again.
func (s *TripService) Create(ctx context.Context, ownerID int64, in TripInput) (*model.Trip, error) {
	for _, field := range RequiredTripFields {
		if _, ok := in.Fields[field]; !ok {
			return nil, apperror.ValidationFailed(field, field+" is required")
		}
	}

	cost, err := ParseCost(in.Fields.Get("cost"))
	if err != nil {
		return nil, err
	}
	rating, err := ParseRating(in.Fields.Get("rating"))
	if err != nil {
		return nil, err
	}

	image, err := s.images.Save(ctx, in.Image)
	if err != nil {
		return nil, fmt.Errorf("service/trip: saving image: %w", err)
	}

	trip := &model.Trip{
		Title:       in.Fields.Get("title"),
		Description: in.Fields.Get("description"),
		Location:    in.Fields.Get("location"),
		Places:      in.Fields.Get("places"),
		Image:       image,
		Cost:        cost,
		Rating:      rating,
		UserID:      ownerID,
	}
	if err := s.repo.CreateTrip(ctx, trip); err != nil {
		if image != nil {
			s.images.Discard(context.WithoutCancel(ctx), *image)
		}
		return nil, fmt.Errorf("service/trip: creating trip: %w", err)
	}

	s.logger.Info("trip created",
		slog.Int64("tripID", trip.ID),
		slog.Int64("userID", ownerID),
		slog.Bool("image", image != nil),
	)
	return trip, nil
}

// ParseCost turns a submitted cost into a nullable number. Blank input is
// nil, never zero.
func ParseCost(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, apperror.ValidationFailed("cost", fmt.Sprintf("cost must be a number, got %q", raw))
	}
	return &v, nil
}

// ParseRating turns a submitted rating into a nullable integer. Any integer
// is accepted.
func ParseRating(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperror.ValidationFailed("rating", fmt.Sprintf("rating must be a whole number, got %q", raw))
	}
	return &v, nil
}
