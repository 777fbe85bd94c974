// Package handler implements the HTTP handlers for the KamperHub API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, trip.go, etc.) but all share the same Server struct so
// they can access its dependencies.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kamperhub/kamperhub-server/internal/domain"
	"github.com/kamperhub/kamperhub-server/internal/middleware"
)

// TripServicer defines the business operations the trip handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the store or service layer.
type TripServicer interface {
	Create(ctx context.Context, userID string, trip domain.Trip) (domain.Trip, error)
	GetByID(ctx context.Context, userID, id string) (domain.Trip, error)
	List(ctx context.Context, userID string) ([]domain.Trip, error)
	Update(ctx context.Context, userID string, trip domain.Trip) (domain.Trip, error)
	Delete(ctx context.Context, userID, id string) error
	CopyToJourney(ctx context.Context, userID, sourceTripID, journeyID string) (domain.Trip, error)
}

// JourneyServicer defines the business operations the journey handlers
// depend on.
type JourneyServicer interface {
	Create(ctx context.Context, userID string, journey domain.Journey) (domain.Journey, error)
	GetByID(ctx context.Context, userID, id string) (domain.Journey, error)
	List(ctx context.Context, userID string) ([]domain.Journey, error)
	Update(ctx context.Context, userID string, journey domain.Journey) (domain.Journey, error)
	Delete(ctx context.Context, userID, id string) error
	RecomputeRoute(ctx context.Context, userID, id string) (domain.Journey, error)
}

// BookingServicer defines the business operations the booking handlers
// depend on.
type BookingServicer interface {
	Create(ctx context.Context, userID string, booking domain.Booking) (domain.Booking, error)
	GetByID(ctx context.Context, userID, id string) (domain.Booking, error)
	List(ctx context.Context, userID string) ([]domain.Booking, error)
	Update(ctx context.Context, userID string, booking domain.Booking) (domain.Booking, error)
	Delete(ctx context.Context, userID, id string) error
}

// PackingServicer defines the business operations the packing-list handlers
// depend on.
type PackingServicer interface {
	Get(ctx context.Context, userID, tripID string) (domain.PackingList, error)
	Put(ctx context.Context, userID, tripID string, list domain.PackingList) (domain.PackingList, error)
}

// validate checks the struct tags on decoded request bodies.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Server implements the HTTP API. Methods are in domain-specific files but
// all operate on this struct.
type Server struct {
	trips    TripServicer
	journeys JourneyServicer
	bookings BookingServicer
	packing  PackingServicer
	log      *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(trips TripServicer, journeys JourneyServicer, bookings BookingServicer, packing PackingServicer, log *slog.Logger) *Server {
	return &Server{trips: trips, journeys: journeys, bookings: bookings, packing: packing, log: log}
}

// Routes builds the API router. Everything except the health check and the
// spec requires the authenticated-user header.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPISpec)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthHandler())

		r.Route("/trips", func(r chi.Router) {
			r.Post("/", s.CreateTrip)
			r.Get("/", s.ListTrips)
			r.Get("/{id}", s.GetTrip)
			r.Put("/{id}", s.UpdateTrip)
			r.Delete("/{id}", s.DeleteTrip)
			r.Post("/{id}/copy-to-journey", s.CopyTripToJourney)
			r.Get("/{id}/packing-list", s.GetPackingList)
			r.Put("/{id}/packing-list", s.PutPackingList)
		})

		r.Route("/journeys", func(r chi.Router) {
			r.Post("/", s.CreateJourney)
			r.Get("/", s.ListJourneys)
			r.Get("/{id}", s.GetJourney)
			r.Put("/{id}", s.UpdateJourney)
			r.Delete("/{id}", s.DeleteJourney)
			r.Post("/{id}/recompute-route", s.RecomputeJourneyRoute)
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", s.CreateBooking)
			r.Get("/", s.ListBookings)
			r.Get("/{id}", s.GetBooking)
			r.Put("/{id}", s.UpdateBooking)
			r.Delete("/{id}", s.DeleteBooking)
		})
	})

	return r
}

// decodeJSON decodes the request body into dst and runs struct validation.
// The returned error message is safe to echo back to the client.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return fmt.Errorf("invalid request body")
		}
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			f := fields[0]
			return fmt.Errorf("field %s failed validation on %q", f.Field(), f.Tag())
		}
		return err
	}
	return nil
}

// staleRouteWarning is attached to a mutation response when the write
// committed but the journey's route recompute failed.
const staleRouteWarning = "journey route could not be refreshed and may be out of date"

// withWarning wraps a response entity with a top-level warning field.
func withWarning(v any, message string) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return v
	}
	m["warning"] = message
	return m
}

// writeMutation writes the result of a service mutation. A stale-route error
// still reports success: the primary write committed, only the derived route
// is behind.
func (s *Server) writeMutation(w http.ResponseWriter, r *http.Request, status int, v any, err error, notFoundMessage string) {
	if err == nil {
		writeJSON(w, status, v)
		return
	}
	if errors.Is(err, domain.ErrStaleRoute) {
		writeJSON(w, status, withWarning(v, staleRouteWarning))
		return
	}
	s.writeServiceError(w, r, err, notFoundMessage)
}

// writeServiceError maps service errors to their HTTP responses. Unknown
// errors are logged and reported as a generic 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFoundMessage string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, notFoundBody(notFoundMessage))
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, validationBody(err))
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, conflictBody())
	default:
		s.log.ErrorContext(r.Context(), "unhandled service error",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, internalBody())
	}
}
