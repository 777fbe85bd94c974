package domain

import "time"

// Journey is a named grouping of trips with a derived aggregate route.
// TripIDs is ordered by convention (the order trips were added); the order
// only matters as a tie-breaker when member trips share no planned dates.
type Journey struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	TripIDs     []string `json:"tripIds"`
	// MasterPolyline is derived from the member trips' route geometries and
	// is never edited by hand. Nil when no member trip has a route.
	MasterPolyline *string   `json:"masterPolyline,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
