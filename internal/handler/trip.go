package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kamperhub/kamperhub-server/internal/domain"
	"github.com/kamperhub/kamperhub-server/internal/middleware"
)

// tripRequest is the request body for POST /trips and PUT /trips/{id}.
type tripRequest struct {
	Name             string                  `json:"name" validate:"required"`
	StartLocation    string                  `json:"startLocation"`
	EndLocation      string                  `json:"endLocation"`
	Route            *domain.RouteDetails    `json:"route"`
	PlannedStart     *time.Time              `json:"plannedStart"`
	PlannedEnd       *time.Time              `json:"plannedEnd"`
	BudgetCategories []domain.BudgetCategory `json:"budgetCategories" validate:"dive"`
	Expenses         []domain.Expense        `json:"expenses" validate:"dive"`
	Occupants        []domain.Occupant       `json:"occupants" validate:"dive"`
	JourneyID        *string                 `json:"journeyId"`
	Completed        bool                    `json:"completed"`
}

// copyToJourneyRequest is the request body for POST /trips/{id}/copy-to-journey.
type copyToJourneyRequest struct {
	JourneyID string `json:"journeyId" validate:"required"`
}

// CreateTrip handles POST /trips.
func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var req tripRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	created, err := s.trips.Create(r.Context(), middleware.UserID(r.Context()), requestToTrip(req))
	s.writeMutation(w, r, http.StatusCreated, created, err, "journey not found")
}

// ListTrips handles GET /trips.
func (s *Server) ListTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := s.trips.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, trips)
}

// GetTrip handles GET /trips/{id}.
func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := s.trips.GetByID(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err, "trip not found")
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// UpdateTrip handles PUT /trips/{id}.
func (s *Server) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	var req tripRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	trip := requestToTrip(req)
	trip.ID = chi.URLParam(r, "id")

	updated, err := s.trips.Update(r.Context(), middleware.UserID(r.Context()), trip)
	s.writeMutation(w, r, http.StatusOK, updated, err, "trip not found")
}

// DeleteTrip handles DELETE /trips/{id}.
// The trip's packing list is deleted with it and its journey, if any, is
// detached and recomputed.
func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	err := s.trips.Delete(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	// A 204 has no body to carry a warning; a stale route after a delete is
	// still a successful delete.
	if err != nil && !errors.Is(err, domain.ErrStaleRoute) {
		s.writeServiceError(w, r, err, "trip not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CopyTripToJourney handles POST /trips/{id}/copy-to-journey.
// It duplicates the trip's plannable fields into a new trip that is a member
// of the destination journey.
func (s *Server) CopyTripToJourney(w http.ResponseWriter, r *http.Request) {
	var req copyToJourneyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	copied, err := s.trips.CopyToJourney(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"), req.JourneyID)
	s.writeMutation(w, r, http.StatusCreated, copied, err, "trip or journey not found")
}

// requestToTrip converts a tripRequest body into a domain.Trip.
func requestToTrip(req tripRequest) domain.Trip {
	return domain.Trip{
		Name:             req.Name,
		StartLocation:    req.StartLocation,
		EndLocation:      req.EndLocation,
		Route:            req.Route,
		PlannedStart:     req.PlannedStart,
		PlannedEnd:       req.PlannedEnd,
		BudgetCategories: req.BudgetCategories,
		Expenses:         req.Expenses,
		Occupants:        req.Occupants,
		JourneyID:        req.JourneyID,
		Completed:        req.Completed,
	}
}
