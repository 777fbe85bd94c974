package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kamperhub/kamperhub-server/internal/domain"
	"github.com/kamperhub/kamperhub-server/internal/membership"
	"github.com/kamperhub/kamperhub-server/internal/store"
)

// RouteRefresher recomputes a journey's derived route geometry. It runs
// after the primary transaction has committed; failures degrade the derived
// data but never the committed mutation.
type RouteRefresher interface {
	Recompute(ctx context.Context, userID, journeyID string) error
}

// TripService implements trip mutations, journey membership upkeep, and the
// cascade to dependent documents.
type TripService struct {
	store  store.Store
	routes RouteRefresher
	log    *slog.Logger
}

// NewTripService constructs a TripService.
func NewTripService(st store.Store, routes RouteRefresher, log *slog.Logger) *TripService {
	return &TripService{store: st, routes: routes, log: log}
}

// Create validates and persists a new trip. Assigning the trip to a journey
// links it into the journey's member list in the same transaction and
// refreshes the journey's route afterwards.
//
// On success the returned error is either nil or wraps domain.ErrStaleRoute
// when only the post-commit route refresh failed.
func (s *TripService) Create(ctx context.Context, userID string, trip domain.Trip) (domain.Trip, error) {
	if err := validateTrip(trip); err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w", err)
	}

	now := time.Now().UTC()
	trip.ID = uuid.NewString()
	trip.CreatedAt = now
	trip.UpdatedAt = now
	normalizeTrip(&trip)

	err := store.RunInTransaction(ctx, s.store, func(tx store.Tx) error {
		if trip.JourneyID != nil {
			if err := requireJourney(tx, userID, *trip.JourneyID); err != nil {
				return err
			}
			tx.ArrayUnion(store.Path(userID, "journeys", *trip.JourneyID), "tripIds", trip.ID)
		}
		tx.Set(store.Path(userID, "trips", trip.ID), trip)
		return nil
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Create: %w", err)
	}

	if trip.JourneyID != nil {
		return trip, s.refreshRoutes(ctx, userID, *trip.JourneyID)
	}
	return trip, nil
}

// GetByID returns a single trip.
func (s *TripService) GetByID(ctx context.Context, userID, id string) (domain.Trip, error) {
	var trip domain.Trip
	if err := s.store.Get(ctx, store.Path(userID, "trips", id), &trip); err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.GetByID: %w", err)
	}
	return trip, nil
}

// List returns all of the user's trips.
func (s *TripService) List(ctx context.Context, userID string) ([]domain.Trip, error) {
	trips, err := listDocs[domain.Trip](ctx, s.store, userID, "trips")
	if err != nil {
		return nil, fmt.Errorf("service.TripService.List: %w", err)
	}
	return trips, nil
}

// Update validates and persists changes to a trip. A changed journey
// assignment updates both journeys' member lists in the same transaction;
// every journey whose aggregate route may have changed is refreshed after
// commit.
func (s *TripService) Update(ctx context.Context, userID string, trip domain.Trip) (domain.Trip, error) {
	if err := validateTrip(trip); err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Update: %w", err)
	}

	now := time.Now().UTC()
	updated := trip
	var affected []string

	err := store.RunInTransaction(ctx, s.store, func(tx store.Tx) error {
		var old domain.Trip
		if err := tx.Get(store.Path(userID, "trips", trip.ID), &old); err != nil {
			return err
		}

		updated = trip
		updated.CreatedAt = old.CreatedAt
		updated.UpdatedAt = now
		normalizeTrip(&updated)

		ops := membership.Link(old.JourneyID, updated.JourneyID, updated.ID)
		if err := applyMembershipOps(tx, userID, ops); err != nil {
			return err
		}
		tx.Set(store.Path(userID, "trips", updated.ID), updated)

		affected = affectedJourneys(old, updated, ops)
		return nil
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.Update: %w", err)
	}

	return updated, s.refreshRoutes(ctx, userID, affected...)
}

// Delete removes a trip together with its packing list, detaches it from
// its journey, and refreshes that journey's route.
func (s *TripService) Delete(ctx context.Context, userID, id string) error {
	var affected []string

	err := store.RunInTransaction(ctx, s.store, func(tx store.Tx) error {
		var old domain.Trip
		if err := tx.Get(store.Path(userID, "trips", id), &old); err != nil {
			return err
		}

		ops := membership.Unlink(old.JourneyID, id)
		if err := applyMembershipOps(tx, userID, ops); err != nil {
			return err
		}
		tx.Delete(store.Path(userID, "trips", id))
		tx.Delete(store.Path(userID, "packing", id))

		affected = affectedJourneys(old, domain.Trip{}, ops)
		return nil
	})
	if err != nil {
		return fmt.Errorf("service.TripService.Delete: %w", err)
	}

	return s.refreshRoutes(ctx, userID, affected...)
}

// CopyToJourney duplicates a trip's plannable fields into a new trip
// assigned to the destination journey. Logged actuals (expenses), the
// completion flag, and the packing list stay with the source trip.
func (s *TripService) CopyToJourney(ctx context.Context, userID, sourceTripID, journeyID string) (domain.Trip, error) {
	now := time.Now().UTC()
	var copied domain.Trip

	err := store.RunInTransaction(ctx, s.store, func(tx store.Tx) error {
		var source domain.Trip
		if err := tx.Get(store.Path(userID, "trips", sourceTripID), &source); err != nil {
			return fmt.Errorf("source trip %s: %w", sourceTripID, err)
		}
		if err := requireJourney(tx, userID, journeyID); err != nil {
			return err
		}

		dest := journeyID
		copied = domain.Trip{
			ID:               uuid.NewString(),
			Name:             source.Name + " (Copy)",
			StartLocation:    source.StartLocation,
			EndLocation:      source.EndLocation,
			Route:            source.Route,
			PlannedStart:     source.PlannedStart,
			PlannedEnd:       source.PlannedEnd,
			BudgetCategories: append([]domain.BudgetCategory(nil), source.BudgetCategories...),
			Expenses:         []domain.Expense{},
			Occupants:        append([]domain.Occupant(nil), source.Occupants...),
			JourneyID:        &dest,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		normalizeTrip(&copied)

		tx.Set(store.Path(userID, "trips", copied.ID), copied)
		tx.ArrayUnion(store.Path(userID, "journeys", journeyID), "tripIds", copied.ID)
		return nil
	})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("service.TripService.CopyToJourney: %w", err)
	}

	return copied, s.refreshRoutes(ctx, userID, journeyID)
}

// applyMembershipOps validates add targets and translates membership ops
// into idempotent array updates. Removal targets are not required to exist:
// membership is repairable from either side, and the journey may already be
// gone.
func applyMembershipOps(tx store.Tx, userID string, ops []membership.Op) error {
	for _, op := range ops {
		journeyPath := store.Path(userID, "journeys", op.JourneyID)
		switch op.Kind {
		case membership.OpAdd:
			if err := requireJourney(tx, userID, op.JourneyID); err != nil {
				return err
			}
			tx.ArrayUnion(journeyPath, "tripIds", op.TripID)
		case membership.OpRemove:
			tx.ArrayRemove(journeyPath, "tripIds", op.TripID)
		}
	}
	return nil
}

// requireJourney aborts the transaction when the journey does not exist.
func requireJourney(tx store.Tx, userID, journeyID string) error {
	var journey domain.Journey
	if err := tx.Get(store.Path(userID, "journeys", journeyID), &journey); err != nil {
		return fmt.Errorf("journey %s: %w", journeyID, err)
	}
	return nil
}

// affectedJourneys lists the journeys whose aggregate route must be
// recomputed after a trip mutation: every journey whose membership changed,
// plus the trip's unchanged journey when its route geometry or planned
// start moved.
func affectedJourneys(old, updated domain.Trip, ops []membership.Op) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	for _, op := range ops {
		add(op.JourneyID)
	}

	if len(ops) == 0 && updated.JourneyID != nil && routeInputsChanged(old, updated) {
		add(*updated.JourneyID)
	}
	return out
}

// routeInputsChanged reports whether the fields feeding the master polyline
// differ between two versions of a trip.
func routeInputsChanged(old, updated domain.Trip) bool {
	if geometryOf(old) != geometryOf(updated) {
		return true
	}
	return !timePtrEqual(old.PlannedStart, updated.PlannedStart)
}

func geometryOf(t domain.Trip) string {
	if t.Route == nil {
		return ""
	}
	return t.Route.Geometry
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// refreshRoutes runs the best-effort post-commit recompute for each journey.
// Failures are logged and reported as domain.ErrStaleRoute; the committed
// mutation stands and the derived data self-heals on the next successful
// mutation.
func (s *TripService) refreshRoutes(ctx context.Context, userID string, journeyIDs ...string) error {
	return refreshRoutes(ctx, s.routes, s.log, userID, journeyIDs)
}

func refreshRoutes(ctx context.Context, routes RouteRefresher, log *slog.Logger, userID string, journeyIDs []string) error {
	var failed []string
	for _, journeyID := range journeyIDs {
		if err := routes.Recompute(ctx, userID, journeyID); err != nil {
			log.WarnContext(ctx, "post-commit route refresh failed",
				"journey_id", journeyID,
				"error", err,
			)
			failed = append(failed, journeyID)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("journeys %s: %w", strings.Join(failed, ", "), domain.ErrStaleRoute)
	}
	return nil
}

// normalizeTrip replaces nil collection fields with empty slices so stored
// documents always carry the arrays the clients expect.
func normalizeTrip(t *domain.Trip) {
	if t.BudgetCategories == nil {
		t.BudgetCategories = []domain.BudgetCategory{}
	}
	if t.Expenses == nil {
		t.Expenses = []domain.Expense{}
	}
	if t.Occupants == nil {
		t.Occupants = []domain.Occupant{}
	}
}

// validateTrip enforces the trip's structural rules before any store access.
func validateTrip(t domain.Trip) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if t.PlannedStart != nil && t.PlannedEnd != nil && t.PlannedEnd.Before(*t.PlannedStart) {
		return fmt.Errorf("%w: planned end must not be before planned start", domain.ErrValidation)
	}
	if t.JourneyID != nil && *t.JourneyID == "" {
		return fmt.Errorf("%w: journey id must not be empty", domain.ErrValidation)
	}
	for _, e := range t.Expenses {
		if !e.Amount.IsPositive() {
			return fmt.Errorf("%w: expense amount must be positive", domain.ErrValidation)
		}
	}
	return nil
}
