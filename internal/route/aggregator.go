// Package route recomputes a journey's master polyline from its member
// trips. The recompute is idempotent and runs outside any transaction: it
// may need to read an unbounded number of sibling trips, tolerates slightly
// stale reads, and last-write-wins on the single derived field.
package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kamperhub/kamperhub-server/internal/domain"
	"github.com/kamperhub/kamperhub-server/internal/polyline"
	"github.com/kamperhub/kamperhub-server/internal/store"
)

// Aggregator rebuilds journeys' derived route geometry.
type Aggregator struct {
	store store.Store
	log   *slog.Logger
}

// NewAggregator constructs an Aggregator backed by the given store.
func NewAggregator(st store.Store, log *slog.Logger) *Aggregator {
	return &Aggregator{store: st, log: log}
}

// Recompute refreshes the master polyline of one journey. Safe to call
// repeatedly; concurrent calls for the same journey may run redundantly
// without harm. A journey deleted since the caller committed is not an
// error — there is simply nothing left to refresh.
func (a *Aggregator) Recompute(ctx context.Context, userID, journeyID string) error {
	journeyPath := store.Path(userID, "journeys", journeyID)

	var journey domain.Journey
	if err := a.store.Get(ctx, journeyPath, &journey); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("route.Aggregator.Recompute: %w", err)
	}

	if len(journey.TripIDs) == 0 {
		return a.write(ctx, journeyPath, nil)
	}

	trips, err := a.loadMemberTrips(ctx, userID, journey.TripIDs)
	if err != nil {
		return fmt.Errorf("route.Aggregator.Recompute: %w", err)
	}

	ordered := orderForAggregation(trips)

	var coords []polyline.Point
	for _, trip := range ordered {
		pts, err := polyline.Decode(trip.Route.Geometry)
		if err != nil {
			// One malformed trip must not block the rest of the journey.
			a.log.WarnContext(ctx, "skipping trip with undecodable route geometry",
				"trip_id", trip.ID,
				"journey_id", journeyID,
				"error", err,
			)
			continue
		}
		// Join points at segment boundaries are kept as-is; consumers expect
		// the raw concatenation.
		coords = append(coords, pts...)
	}

	if len(coords) == 0 {
		return a.write(ctx, journeyPath, nil)
	}
	encoded := polyline.Encode(coords)
	return a.write(ctx, journeyPath, &encoded)
}

// loadMemberTrips bulk-reads the journey's member trips that carry route
// geometry, preserving member-list order. Trips deleted since the member
// list was read are skipped.
func (a *Aggregator) loadMemberTrips(ctx context.Context, userID string, tripIDs []string) ([]domain.Trip, error) {
	paths := make([]string, len(tripIDs))
	byPath := make(map[string]int, len(tripIDs))
	for i, id := range tripIDs {
		paths[i] = store.Path(userID, "trips", id)
		byPath[paths[i]] = i
	}

	loaded := make([]*domain.Trip, len(tripIDs))
	err := a.store.GetAll(ctx, paths, func(path string, raw json.RawMessage) error {
		var trip domain.Trip
		if err := json.Unmarshal(raw, &trip); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		loaded[byPath[path]] = &trip
		return nil
	})
	if err != nil {
		return nil, err
	}

	var trips []domain.Trip
	for _, trip := range loaded {
		if trip == nil || trip.Route == nil || trip.Route.Geometry == "" {
			continue
		}
		trips = append(trips, *trip)
	}
	return trips, nil
}

// orderForAggregation sorts trips ascending by planned start date. Trips
// without a planned date sort after all dated trips, keeping their relative
// member-list order, so repeated runs over the same input always produce
// the same sequence.
func orderForAggregation(trips []domain.Trip) []domain.Trip {
	out := append([]domain.Trip(nil), trips...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].PlannedStart, out[j].PlannedStart
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return out
}

// write stores only the derived field; nil clears it.
func (a *Aggregator) write(ctx context.Context, journeyPath string, encoded *string) error {
	err := a.store.Update(ctx, journeyPath, map[string]any{"masterPolyline": encoded})
	if errors.Is(err, domain.ErrNotFound) {
		// Journey deleted between read and write; nothing to refresh.
		return nil
	}
	if err != nil {
		return fmt.Errorf("route.Aggregator.Recompute: write: %w", err)
	}
	return nil
}
