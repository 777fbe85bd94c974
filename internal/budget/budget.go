// Package budget computes the budget-category deltas a booking mutation
// implies and applies them to a trip's category list. Both operations are
// pure: the caller reads the current list inside a transaction, applies the
// delta, and writes the result back in the same transaction as the booking
// write.
package budget

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kamperhub/kamperhub-server/internal/domain"
)

// AccommodationCategoryName is the display name of the implicitly managed
// category. Lookups compare names case-insensitively; this casing is used
// when the category is created.
const AccommodationCategoryName = "Accommodation"

// AccommodationCategoryID is the fixed synthetic id given to the implicitly
// created category, so repeated create/remove cycles never churn ids.
const AccommodationCategoryID = "accommodation"

// Assignment is one side of a booking's budget impact: the trip it is
// assigned to and its budgeted cost.
type Assignment struct {
	TripID string
	Cost   decimal.Decimal
}

// Delta is a signed adjustment to one trip's Accommodation category.
type Delta struct {
	TripID string
	Amount decimal.Decimal
}

// Reconcile computes the deltas needed to move a booking's budget impact
// from old to new. Either side may be nil (booking created, deleted, or
// never assigned); a non-positive cost is a no-op for that side.
//
// A same-trip cost edit deliberately yields two deltas (subtract old, add
// new) rather than one netted delta; applied in order they net to
// newCost - oldCost without special-casing.
func Reconcile(old, new *Assignment) []Delta {
	var deltas []Delta
	if old != nil && old.TripID != "" && old.Cost.IsPositive() {
		deltas = append(deltas, Delta{TripID: old.TripID, Amount: old.Cost.Neg()})
	}
	if new != nil && new.TripID != "" && new.Cost.IsPositive() {
		deltas = append(deltas, Delta{TripID: new.TripID, Amount: new.Cost})
	}
	return deltas
}

// Apply returns a new category list with amount added to the Accommodation
// category. The input list is never mutated.
//
// Adding to an absent category creates it with the stable synthetic id.
// An existing amount is clamped at a floor of zero, and a category driven
// to zero or below is removed entirely rather than kept as a zero entry.
func Apply(categories []domain.BudgetCategory, amount decimal.Decimal) []domain.BudgetCategory {
	idx := findAccommodation(categories)

	if idx < 0 {
		out := append([]domain.BudgetCategory(nil), categories...)
		if !amount.IsPositive() {
			// Subtracting from an absent category cannot go below the floor.
			return out
		}
		return append(out, domain.BudgetCategory{
			ID:             AccommodationCategoryID,
			Name:           AccommodationCategoryName,
			BudgetedAmount: amount,
		})
	}

	next := categories[idx].BudgetedAmount.Add(amount)
	if next.Sign() <= 0 {
		out := make([]domain.BudgetCategory, 0, len(categories)-1)
		out = append(out, categories[:idx]...)
		return append(out, categories[idx+1:]...)
	}

	out := append([]domain.BudgetCategory(nil), categories...)
	out[idx].BudgetedAmount = next
	return out
}

// findAccommodation returns the index of the Accommodation category, or -1.
// Comparison is case-insensitive; display casing is preserved elsewhere.
func findAccommodation(categories []domain.BudgetCategory) int {
	for i, c := range categories {
		if strings.EqualFold(c.Name, AccommodationCategoryName) {
			return i
		}
	}
	return -1
}
