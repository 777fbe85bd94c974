package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kamperhub/kamperhub-server/internal/domain"
	"github.com/kamperhub/kamperhub-server/internal/middleware"
)

// journeyRequest is the request body for POST /journeys and PUT /journeys/{id}.
// Membership and the master polyline are engine-maintained and cannot be set
// by clients.
type journeyRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// CreateJourney handles POST /journeys.
func (s *Server) CreateJourney(w http.ResponseWriter, r *http.Request) {
	var req journeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	created, err := s.journeys.Create(r.Context(), middleware.UserID(r.Context()), domain.Journey{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "journey not found")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListJourneys handles GET /journeys.
func (s *Server) ListJourneys(w http.ResponseWriter, r *http.Request) {
	journeys, err := s.journeys.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err, "journey not found")
		return
	}
	writeJSON(w, http.StatusOK, journeys)
}

// GetJourney handles GET /journeys/{id}.
func (s *Server) GetJourney(w http.ResponseWriter, r *http.Request) {
	journey, err := s.journeys.GetByID(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err, "journey not found")
		return
	}
	writeJSON(w, http.StatusOK, journey)
}

// UpdateJourney handles PUT /journeys/{id}.
func (s *Server) UpdateJourney(w http.ResponseWriter, r *http.Request) {
	var req journeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	updated, err := s.journeys.Update(r.Context(), middleware.UserID(r.Context()), domain.Journey{
		ID:          chi.URLParam(r, "id"),
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "journey not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteJourney handles DELETE /journeys/{id}.
// Member trips survive with their journey reference cleared.
func (s *Server) DeleteJourney(w http.ResponseWriter, r *http.Request) {
	err := s.journeys.Delete(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil && !errors.Is(err, domain.ErrStaleRoute) {
		s.writeServiceError(w, r, err, "journey not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecomputeJourneyRoute handles POST /journeys/{id}/recompute-route.
// Unlike the automatic post-commit refresh, a failed recompute here is an
// error: the caller asked for it explicitly.
func (s *Server) RecomputeJourneyRoute(w http.ResponseWriter, r *http.Request) {
	journey, err := s.journeys.RecomputeRoute(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err, "journey not found")
		return
	}
	writeJSON(w, http.StatusOK, journey)
}
