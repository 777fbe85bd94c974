// Package domain contains the core data types for the KamperHub itinerary
// engine. This package has no dependencies on the store or HTTP layers and
// is imported by every other internal package.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trip represents a single planned or logged journey leg with its own route,
// dates, budget, and occupants. Trips are stored as independent documents;
// JourneyID is a back-reference that is kept consistent with the referenced
// Journey's TripIDs list by the membership linker.
type Trip struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	StartLocation string   `json:"startLocation"`
	EndLocation   string   `json:"endLocation"`
	Route         *RouteDetails `json:"route,omitempty"`
	// PlannedStart orders this trip within its journey's master route.
	// Trips without a planned start sort after all dated trips.
	PlannedStart     *time.Time       `json:"plannedStart,omitempty"`
	PlannedEnd       *time.Time       `json:"plannedEnd,omitempty"`
	BudgetCategories []BudgetCategory `json:"budgetCategories"`
	Expenses         []Expense        `json:"expenses"`
	Occupants        []Occupant       `json:"occupants"`
	JourneyID        *string          `json:"journeyId,omitempty"`
	Completed        bool             `json:"completed"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// RouteDetails holds the routing provider's answer for a trip. The engine
// never computes routes; it only decodes and re-encodes Geometry when
// aggregating a journey's master polyline.
type RouteDetails struct {
	DistanceMeters  int64    `json:"distanceMeters"`
	DurationSeconds int64    `json:"durationSeconds"`
	// Geometry is an encoded polyline at fixed precision 5.
	Geometry string   `json:"geometry,omitempty"`
	Tolls    bool     `json:"tolls"`
	TollNote string   `json:"tollNote,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// BudgetCategory is a single line item in a trip's budget.
// Names are unique within a trip under case-insensitive comparison; the
// stored Name preserves the casing it was created with.
type BudgetCategory struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	BudgetedAmount decimal.Decimal `json:"budgetedAmount"`
}

// Expense is a logged spend against one of the trip's budget categories.
// CategoryID may reference a category that reconciliation has since removed;
// lookups must tolerate the orphan rather than failing.
type Expense struct {
	ID          string          `json:"id"`
	CategoryID  string          `json:"categoryId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Occupant is a person travelling on the trip.
type Occupant struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}
