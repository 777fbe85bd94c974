// Package service contains the business logic of the itinerary engine. Each
// mutation runs as one transaction against the document store: read the
// affected documents, compute the new states through the pure reconciliation
// packages, and commit atomically — retried from scratch on write conflicts.
// Derived route geometry is refreshed in a separate best-effort pass after
// the commit.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kamperhub/kamperhub-server/internal/budget"
	"github.com/kamperhub/kamperhub-server/internal/domain"
	"github.com/kamperhub/kamperhub-server/internal/store"
)

// BookingService implements booking mutations and their budget side effects.
type BookingService struct {
	store store.Store
	log   *slog.Logger
}

// NewBookingService constructs a BookingService backed by the given store.
func NewBookingService(st store.Store, log *slog.Logger) *BookingService {
	return &BookingService{store: st, log: log}
}

// Create validates and persists a new booking, reconciling the assigned
// trip's budget in the same transaction.
func (s *BookingService) Create(ctx context.Context, userID string, booking domain.Booking) (domain.Booking, error) {
	if err := validateBooking(booking); err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Create: %w", err)
	}

	now := time.Now().UTC()
	booking.ID = uuid.NewString()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	err := store.RunInTransaction(ctx, s.store, func(tx store.Tx) error {
		deltas := budget.Reconcile(nil, assignmentOf(booking))
		if err := applyBudgetDeltas(tx, userID, deltas, now); err != nil {
			return err
		}
		tx.Set(store.Path(userID, "bookings", booking.ID), booking)
		return nil
	})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Create: %w", err)
	}
	return booking, nil
}

// GetByID returns a single booking.
func (s *BookingService) GetByID(ctx context.Context, userID, id string) (domain.Booking, error) {
	var booking domain.Booking
	if err := s.store.Get(ctx, store.Path(userID, "bookings", id), &booking); err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.GetByID: %w", err)
	}
	return booking, nil
}

// List returns all of the user's bookings.
func (s *BookingService) List(ctx context.Context, userID string) ([]domain.Booking, error) {
	bookings, err := listDocs[domain.Booking](ctx, s.store, userID, "bookings")
	if err != nil {
		return nil, fmt.Errorf("service.BookingService.List: %w", err)
	}
	return bookings, nil
}

// Update validates and persists changes to a booking, reconciling the old
// and new trip assignments in sequence within one transaction. Moving a
// booking between trips therefore adjusts both trips' budgets atomically.
func (s *BookingService) Update(ctx context.Context, userID string, booking domain.Booking) (domain.Booking, error) {
	if err := validateBooking(booking); err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Update: %w", err)
	}

	now := time.Now().UTC()
	updated := booking

	err := store.RunInTransaction(ctx, s.store, func(tx store.Tx) error {
		var old domain.Booking
		if err := tx.Get(store.Path(userID, "bookings", booking.ID), &old); err != nil {
			return err
		}

		updated = booking
		updated.CreatedAt = old.CreatedAt
		updated.UpdatedAt = now

		deltas := budget.Reconcile(assignmentOf(old), assignmentOf(updated))
		if err := applyBudgetDeltas(tx, userID, deltas, now); err != nil {
			return err
		}
		tx.Set(store.Path(userID, "bookings", updated.ID), updated)
		return nil
	})
	if err != nil {
		return domain.Booking{}, fmt.Errorf("service.BookingService.Update: %w", err)
	}
	return updated, nil
}

// Delete removes a booking, reconciling its budget impact away in the same
// transaction.
func (s *BookingService) Delete(ctx context.Context, userID, id string) error {
	err := store.RunInTransaction(ctx, s.store, func(tx store.Tx) error {
		var old domain.Booking
		if err := tx.Get(store.Path(userID, "bookings", id), &old); err != nil {
			return err
		}

		deltas := budget.Reconcile(assignmentOf(old), nil)
		if err := applyBudgetDeltas(tx, userID, deltas, time.Now().UTC()); err != nil {
			return err
		}
		tx.Delete(store.Path(userID, "bookings", id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("service.BookingService.Delete: %w", err)
	}
	return nil
}

// assignmentOf extracts a booking's budget impact, nil when unassigned.
func assignmentOf(b domain.Booking) *budget.Assignment {
	if b.AssignedTripID == nil {
		return nil
	}
	return &budget.Assignment{TripID: *b.AssignedTripID, Cost: b.BudgetedCost}
}

// applyBudgetDeltas reads each affected trip once and applies its deltas in
// order, writing the new category list back within the same transaction.
// A delta against a missing trip aborts the whole transaction.
func applyBudgetDeltas(tx store.Tx, userID string, deltas []budget.Delta, now time.Time) error {
	byTrip := make(map[string]*domain.Trip)
	var order []string

	for _, delta := range deltas {
		trip, ok := byTrip[delta.TripID]
		if !ok {
			var loaded domain.Trip
			if err := tx.Get(store.Path(userID, "trips", delta.TripID), &loaded); err != nil {
				return fmt.Errorf("budget target trip %s: %w", delta.TripID, err)
			}
			trip = &loaded
			byTrip[delta.TripID] = trip
			order = append(order, delta.TripID)
		}
		trip.BudgetCategories = budget.Apply(trip.BudgetCategories, delta.Amount)
	}

	for _, tripID := range order {
		trip := byTrip[tripID]
		trip.UpdatedAt = now
		tx.Set(store.Path(userID, "trips", tripID), *trip)
	}
	return nil
}

// validateBooking enforces the booking's structural rules before any store
// access.
func validateBooking(b domain.Booking) error {
	if strings.TrimSpace(b.SiteName) == "" {
		return fmt.Errorf("%w: site name is required", domain.ErrValidation)
	}
	if b.CheckIn.IsZero() || b.CheckOut.IsZero() {
		return fmt.Errorf("%w: check-in and check-out are required", domain.ErrValidation)
	}
	if b.CheckOut.Before(b.CheckIn) {
		return fmt.Errorf("%w: check-out must not be before check-in", domain.ErrValidation)
	}
	if b.BudgetedCost.IsNegative() {
		return fmt.Errorf("%w: budgeted cost must not be negative", domain.ErrValidation)
	}
	if b.AssignedTripID != nil && *b.AssignedTripID == "" {
		return fmt.Errorf("%w: assigned trip id must not be empty", domain.ErrValidation)
	}
	return nil
}
