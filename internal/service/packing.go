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

// PackingService manages the per-trip packing checklist. The list lives in
// its own document keyed by the trip id and is cascade-deleted with the
// trip.
type PackingService struct {
	store store.Store
	log   *slog.Logger
}

// NewPackingService constructs a PackingService.
func NewPackingService(st store.Store, log *slog.Logger) *PackingService {
	return &PackingService{store: st, log: log}
}

// Get returns the trip's packing list. A trip that has never saved a list
// gets an empty one; a missing trip is NotFound.
func (s *PackingService) Get(ctx context.Context, userID, tripID string) (domain.PackingList, error) {
	var trip domain.Trip
	if err := s.store.Get(ctx, store.Path(userID, "trips", tripID), &trip); err != nil {
		return domain.PackingList{}, fmt.Errorf("service.PackingService.Get: trip %s: %w", tripID, err)
	}

	var list domain.PackingList
	err := s.store.Get(ctx, store.Path(userID, "packing", tripID), &list)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.PackingList{TripID: tripID, Items: []domain.PackingItem{}}, nil
	}
	if err != nil {
		return domain.PackingList{}, fmt.Errorf("service.PackingService.Get: %w", err)
	}
	return list, nil
}

// Put replaces the trip's packing list. The trip must exist at write time;
// the check and the write share one transaction so a concurrent trip
// deletion cannot resurrect the list.
func (s *PackingService) Put(ctx context.Context, userID, tripID string, list domain.PackingList) (domain.PackingList, error) {
	if err := validatePackingList(list); err != nil {
		return domain.PackingList{}, fmt.Errorf("service.PackingService.Put: %w", err)
	}

	list.TripID = tripID
	list.UpdatedAt = time.Now().UTC()
	for i := range list.Items {
		if list.Items[i].ID == "" {
			list.Items[i].ID = uuid.NewString()
		}
	}

	err := store.RunInTransaction(ctx, s.store, func(tx store.Tx) error {
		var trip domain.Trip
		if err := tx.Get(store.Path(userID, "trips", tripID), &trip); err != nil {
			return fmt.Errorf("trip %s: %w", tripID, err)
		}
		tx.Set(store.Path(userID, "packing", tripID), list)
		return nil
	})
	if err != nil {
		return domain.PackingList{}, fmt.Errorf("service.PackingService.Put: %w", err)
	}
	return list, nil
}

// validatePackingList enforces the checklist's structural rules.
func validatePackingList(list domain.PackingList) error {
	for _, item := range list.Items {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("%w: packing item name is required", domain.ErrValidation)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: packing item quantity must be at least 1", domain.ErrValidation)
		}
	}
	return nil
}
