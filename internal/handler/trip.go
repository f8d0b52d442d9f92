package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/travel-journal/internal/apperror"
	"github.com/sakif/travel-journal/internal/auth"
	"github.com/sakif/travel-journal/internal/model"
	"github.com/sakif/travel-journal/internal/service"
	"github.com/sakif/travel-journal/internal/view"
)

// maxMemory is how much of a multipart form is held in memory; larger
// uploads spill to temporary files.
const maxMemory = 32 << 20

// TripService is the part of *service.TripService the handlers use.
type TripService interface {
	List(ctx context.Context) ([]model.Trip, error)
	Get(ctx context.Context, id int64) (*model.Trip, error)
	Create(ctx context.Context, ownerID int64, in service.TripInput) (*model.Trip, error)
}

// TripHandler serves the public trip pages and the add-trip form.
type TripHandler struct {
	trips  TripService
	views  Renderer
	logger *slog.Logger
}

func NewTripHandler(trips TripService, views Renderer, logger *slog.Logger) *TripHandler {
	return &TripHandler{
		trips:  trips,
		views:  views,
		logger: logger,
	}
}

// HandleList renders every trip, newest first.
//
// HTTP: GET /
func (h *TripHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	trips, err := h.trips.List(r.Context())
	if err != nil {
		renderError(w, r, h.views, h.logger, err)
		return
	}

	page := newPage(r, "")
	page.Trips = trips
	h.views.Render(w, http.StatusOK, view.PageIndex, page)
}

// HandleDetail renders one trip. An id that is not an integer cannot name a
// trip, so it is a 404 like an unknown id.
//
// HTTP: GET /trip/{id}
func (h *TripHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		renderError(w, r, h.views, h.logger, apperror.NotFound("trip", raw))
		return
	}

	trip, err := h.trips.Get(r.Context(), id)
	if err != nil {
		renderError(w, r, h.views, h.logger, err)
		return
	}

	page := newPage(r, trip.Title)
	page.Trip = trip
	h.views.Render(w, http.StatusOK, view.PageDetail, page)
}

// HandleAddForm renders the empty add-trip form.
//
// HTTP: GET /add (login required)
func (h *TripHandler) HandleAddForm(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, http.StatusOK, view.PageAdd, newPage(r, "Add a trip"))
}

// HandleCreate stores a submitted trip owned by the logged-in user and
// redirects home. Invalid input re-renders the form with the values the
// user typed.
//
// HTTP: POST /add (login required; multipart/form-data with optional "image")
func (h *TripHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		renderError(w, r, h.views, h.logger, apperror.Unauthenticated())
		return
	}

	in, err := parseTripForm(r)
	if err != nil {
		h.logger.Warn("unreadable trip submission", slog.String("error", err.Error()))
		renderError(w, r, h.views, h.logger, apperror.ValidationFailed("", "the submitted form could not be read"))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	if _, err := h.trips.Create(r.Context(), id.ID, in); err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			page := newPage(r, "Add a trip")
			page.Error = userMessage(err)
			page.Form = in.Fields
			h.views.Render(w, http.StatusBadRequest, view.PageAdd, page)
			return
		}
		renderError(w, r, h.views, h.logger, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// parseTripForm reads either a multipart or a urlencoded submission.
func parseTripForm(r *http.Request) (service.TripInput, error) {
	err := r.ParseMultipartForm(maxMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return service.TripInput{}, err
	}

	in := service.TripInput{Fields: r.PostForm}
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["image"]; len(files) > 0 {
			in.Image = files[0]
		}
	}
	return in, nil
}
