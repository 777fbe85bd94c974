package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kamperhub/kamperhub-server/internal/domain"
	"github.com/kamperhub/kamperhub-server/internal/store"
)

// JourneyService implements journey CRUD. Deleting a journey un-journeys
// its member trips rather than deleting them.
type JourneyService struct {
	store  store.Store
	routes RouteRefresher
	log    *slog.Logger
}

// NewJourneyService constructs a JourneyService.
func NewJourneyService(st store.Store, routes RouteRefresher, log *slog.Logger) *JourneyService {
	return &JourneyService{store: st, routes: routes, log: log}
}

// Create validates and persists a new, empty journey.
func (s *JourneyService) Create(ctx context.Context, userID string, journey domain.Journey) (domain.Journey, error) {
	if err := validateJourney(journey); err != nil {
		return domain.Journey{}, fmt.Errorf("service.JourneyService.Create: %w", err)
	}

	now := time.Now().UTC()
	journey.ID = uuid.NewString()
	journey.TripIDs = []string{}
	journey.MasterPolyline = nil
	journey.CreatedAt = now
	journey.UpdatedAt = now

	if err := s.store.Set(ctx, store.Path(userID, "journeys", journey.ID), journey); err != nil {
		return domain.Journey{}, fmt.Errorf("service.JourneyService.Create: %w", err)
	}
	return journey, nil
}

// GetByID returns a single journey.
func (s *JourneyService) GetByID(ctx context.Context, userID, id string) (domain.Journey, error) {
	var journey domain.Journey
	if err := s.store.Get(ctx, store.Path(userID, "journeys", id), &journey); err != nil {
		return domain.Journey{}, fmt.Errorf("service.JourneyService.GetByID: %w", err)
	}
	return journey, nil
}

// List returns all of the user's journeys.
func (s *JourneyService) List(ctx context.Context, userID string) ([]domain.Journey, error) {
	journeys, err := listDocs[domain.Journey](ctx, s.store, userID, "journeys")
	if err != nil {
		return nil, fmt.Errorf("service.JourneyService.List: %w", err)
	}
	return journeys, nil
}

// Update changes a journey's name and description. The member list and the
// master polyline are maintained by the engine and cannot be edited here.
func (s *JourneyService) Update(ctx context.Context, userID string, journey domain.Journey) (domain.Journey, error) {
	if err := validateJourney(journey); err != nil {
		return domain.Journey{}, fmt.Errorf("service.JourneyService.Update: %w", err)
	}

	now := time.Now().UTC()
	var updated domain.Journey

	err := store.RunInTransaction(ctx, s.store, func(tx store.Tx) error {
		var old domain.Journey
		if err := tx.Get(store.Path(userID, "journeys", journey.ID), &old); err != nil {
			return err
		}

		updated = old
		updated.Name = journey.Name
		updated.Description = journey.Description
		updated.UpdatedAt = now

		tx.Set(store.Path(userID, "journeys", updated.ID), updated)
		return nil
	})
	if err != nil {
		return domain.Journey{}, fmt.Errorf("service.JourneyService.Update: %w", err)
	}
	return updated, nil
}

// Delete removes a journey and clears the journey back-reference on every
// member trip in the same transaction. Member trips themselves survive.
func (s *JourneyService) Delete(ctx context.Context, userID, id string) error {
	err := store.RunInTransaction(ctx, s.store, func(tx store.Tx) error {
		var journey domain.Journey
		if err := tx.Get(store.Path(userID, "journeys", id), &journey); err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, tripID := range journey.TripIDs {
			var trip domain.Trip
			err := tx.Get(store.Path(userID, "trips", tripID), &trip)
			if errors.Is(err, domain.ErrNotFound) {
				// Stale member reference; nothing to detach.
				continue
			}
			if err != nil {
				return err
			}
			trip.JourneyID = nil
			trip.UpdatedAt = now
			tx.Set(store.Path(userID, "trips", tripID), trip)
		}

		tx.Delete(store.Path(userID, "journeys", id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("service.JourneyService.Delete: %w", err)
	}
	return nil
}

// RecomputeRoute triggers the master-route aggregation for one journey on
// demand. Unlike the automatic post-commit pass, a failure here is reported
// as an error so the caller knows the manual refresh did not happen.
func (s *JourneyService) RecomputeRoute(ctx context.Context, userID, id string) (domain.Journey, error) {
	// Surface a missing journey as NotFound instead of the aggregator's
	// silent no-op, since the caller explicitly named it.
	var journey domain.Journey
	if err := s.store.Get(ctx, store.Path(userID, "journeys", id), &journey); err != nil {
		return domain.Journey{}, fmt.Errorf("service.JourneyService.RecomputeRoute: %w", err)
	}

	if err := s.routes.Recompute(ctx, userID, id); err != nil {
		return domain.Journey{}, fmt.Errorf("service.JourneyService.RecomputeRoute: %w", err)
	}

	if err := s.store.Get(ctx, store.Path(userID, "journeys", id), &journey); err != nil {
		return domain.Journey{}, fmt.Errorf("service.JourneyService.RecomputeRoute: %w", err)
	}
	return journey, nil
}

// validateJourney enforces the journey's structural rules.
func validateJourney(j domain.Journey) error {
	if strings.TrimSpace(j.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	return nil
}
