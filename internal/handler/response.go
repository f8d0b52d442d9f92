// Package handler contains the HTTP handlers. Handlers parse the request,
// call a service and either render a page or redirect; they hold no
// business rules of their own.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/travel-journal/internal/apperror"
	"github.com/sakif/travel-journal/internal/auth"
	"github.com/sakif/travel-journal/internal/view"
)

// Renderer writes a named page. *view.Renderer satisfies it.
type Renderer interface {
	Render(w http.ResponseWriter, status int, page string, data *view.Page)
}

// newPage starts the template data for r, filling in the logged-in user.
func newPage(r *http.Request, title string) *view.Page {
	p := &view.Page{Title: title}
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		p.User = id
	}
	return p
}

// statusFor maps a domain error to an HTTP status code.
//
// errors.Is walks the whole chain, so a service error like
// "service/trip: getting trip 7: trip not found with id 7" still matches
// apperror.ErrNotFound.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is the text shown for err. Messages of unknown errors may
// contain SQL or file paths and are never shown.
func userMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && statusFor(err) != http.StatusInternalServerError {
		return appErr.Message
	}
	return "Something went wrong. Please try again."
}

// renderError turns err into a response: a redirect to the login page for
// Unauthenticated, otherwise the error page with a matching status.
func renderError(w http.ResponseWriter, r *http.Request, views Renderer, logger *slog.Logger, err error) {
	if errors.Is(err, apperror.ErrUnauthenticated) {
		http.Redirect(w, r, auth.LoginPath+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
		return
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("requestID", chimiddleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	page := newPage(r, http.StatusText(status))
	if status != http.StatusNotFound {
		page.Error = userMessage(err)
	}
	views.Render(w, status, view.PageError, page)
}

// ErrorPages renders the router's own 404 and 405 responses with the site
// layout.
type ErrorPages struct {
	views Renderer
}

func NewErrorPages(views Renderer) *ErrorPages {
	return &ErrorPages{views: views}
}

func (e *ErrorPages) NotFound(w http.ResponseWriter, r *http.Request) {
	e.views.Render(w, http.StatusNotFound, view.PageError, newPage(r, http.StatusText(http.StatusNotFound)))
}

func (e *ErrorPages) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	e.views.Render(w, http.StatusMethodNotAllowed, view.PageError, newPage(r, http.StatusText(http.StatusMethodNotAllowed)))
}
