package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/kamperhub/kamperhub-server/internal/domain"
	"github.com/kamperhub/kamperhub-server/internal/middleware"
)

// bookingRequest is the request body for POST /bookings and PUT /bookings/{id}.
type bookingRequest struct {
	SiteName       string          `json:"siteName" validate:"required"`
	ContactPhone   string          `json:"contactPhone"`
	ContactEmail   string          `json:"contactEmail" validate:"omitempty,email"`
	WebsiteURL     string          `json:"websiteUrl" validate:"omitempty,url"`
	Notes          string          `json:"notes"`
	CheckIn        time.Time       `json:"checkIn" validate:"required"`
	CheckOut       time.Time       `json:"checkOut" validate:"required"`
	BudgetedCost   decimal.Decimal `json:"budgetedCost"`
	AssignedTripID *string         `json:"assignedTripId"`
	Confirmed      bool            `json:"confirmed"`
}

// CreateBooking handles POST /bookings.
// An assigned booking's cost flows into the trip's Accommodation budget
// category in the same transaction.
func (s *Server) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	created, err := s.bookings.Create(r.Context(), middleware.UserID(r.Context()), requestToBooking(req))
	if err != nil {
		s.writeServiceError(w, r, err, "assigned trip not found")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListBookings handles GET /bookings.
func (s *Server) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.bookings.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err, "booking not found")
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

// GetBooking handles GET /bookings/{id}.
func (s *Server) GetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.bookings.GetByID(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err, "booking not found")
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// UpdateBooking handles PUT /bookings/{id}.
func (s *Server) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	booking := requestToBooking(req)
	booking.ID = chi.URLParam(r, "id")

	updated, err := s.bookings.Update(r.Context(), middleware.UserID(r.Context()), booking)
	if err != nil {
		s.writeServiceError(w, r, err, "booking not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteBooking handles DELETE /bookings/{id}.
// The booking's budget contribution is backed out of its assigned trip.
func (s *Server) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := s.bookings.Delete(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err, "booking not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requestToBooking converts a bookingRequest body into a domain.Booking.
func requestToBooking(req bookingRequest) domain.Booking {
	return domain.Booking{
		SiteName:       req.SiteName,
		ContactPhone:   req.ContactPhone,
		ContactEmail:   req.ContactEmail,
		WebsiteURL:     req.WebsiteURL,
		Notes:          req.Notes,
		CheckIn:        req.CheckIn,
		CheckOut:       req.CheckOut,
		BudgetedCost:   req.BudgetedCost,
		AssignedTripID: req.AssignedTripID,
		Confirmed:      req.Confirmed,
	}
}
