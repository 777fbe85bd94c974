package budget_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamperhub/kamperhub-server/internal/budget"
	"github.com/kamperhub/kamperhub-server/internal/domain"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func categories(amounts ...int64) []domain.BudgetCategory {
	var out []domain.BudgetCategory
	for _, a := range amounts {
		out = append(out, domain.BudgetCategory{
			ID:             budget.AccommodationCategoryID,
			Name:           budget.AccommodationCategoryName,
			BudgetedAmount: dec(a),
		})
	}
	return out
}

// ---- Reconcile -------------------------------------------------------------

func TestReconcile_CreateAssigned(t *testing.T) {
	deltas := budget.Reconcile(nil, &budget.Assignment{TripID: "T1", Cost: dec(200)})

	require.Len(t, deltas, 1)
	assert.Equal(t, "T1", deltas[0].TripID)
	assert.True(t, deltas[0].Amount.Equal(dec(200)))
}

func TestReconcile_DeleteAssigned(t *testing.T) {
	deltas := budget.Reconcile(&budget.Assignment{TripID: "T1", Cost: dec(200)}, nil)

	require.Len(t, deltas, 1)
	assert.Equal(t, "T1", deltas[0].TripID)
	assert.True(t, deltas[0].Amount.Equal(dec(-200)))
}

func TestReconcile_MoveBetweenTrips(t *testing.T) {
	deltas := budget.Reconcile(
		&budget.Assignment{TripID: "A", Cost: dec(150)},
		&budget.Assignment{TripID: "B", Cost: dec(150)},
	)

	require.Len(t, deltas, 2)
	assert.Equal(t, "A", deltas[0].TripID)
	assert.True(t, deltas[0].Amount.Equal(dec(-150)))
	assert.Equal(t, "B", deltas[1].TripID)
	assert.True(t, deltas[1].Amount.Equal(dec(150)))
}

func TestReconcile_SameTripCostEdit(t *testing.T) {
	// A same-trip edit is not short-circuited: subtract old, then add new.
	// Applied in order the two deltas net to newCost - oldCost.
	deltas := budget.Reconcile(
		&budget.Assignment{TripID: "T1", Cost: dec(100)},
		&budget.Assignment{TripID: "T1", Cost: dec(130)},
	)

	require.Len(t, deltas, 2)
	assert.True(t, deltas[0].Amount.Equal(dec(-100)))
	assert.True(t, deltas[1].Amount.Equal(dec(130)))
}

func TestReconcile_ZeroCostIsNoOp(t *testing.T) {
	deltas := budget.Reconcile(
		&budget.Assignment{TripID: "T1", Cost: dec(0)},
		&budget.Assignment{TripID: "T2", Cost: dec(0)},
	)

	assert.Empty(t, deltas)
}

func TestReconcile_NilBothSides(t *testing.T) {
	assert.Empty(t, budget.Reconcile(nil, nil))
}

// ---- Apply -----------------------------------------------------------------

func TestApply_CreatesCategoryWithStableID(t *testing.T) {
	got := budget.Apply(nil, dec(200))

	require.Len(t, got, 1)
	assert.Equal(t, budget.AccommodationCategoryID, got[0].ID)
	assert.Equal(t, budget.AccommodationCategoryName, got[0].Name)
	assert.True(t, got[0].BudgetedAmount.Equal(dec(200)))
}

func TestApply_AddsToExisting(t *testing.T) {
	got := budget.Apply(categories(100), dec(50))

	require.Len(t, got, 1)
	assert.True(t, got[0].BudgetedAmount.Equal(dec(150)))
}

func TestApply_RemovesCategoryAtZero(t *testing.T) {
	// Driving the amount to exactly zero removes the category rather than
	// leaving a zero-value entry.
	got := budget.Apply(categories(200), dec(-200))

	assert.Empty(t, got)
}

func TestApply_RemovesCategoryBelowZero(t *testing.T) {
	got := budget.Apply(categories(100), dec(-250))

	assert.Empty(t, got)
}

func TestApply_SubtractFromAbsentIsNoOp(t *testing.T) {
	other := []domain.BudgetCategory{{ID: "fuel", Name: "Fuel", BudgetedAmount: dec(80)}}

	got := budget.Apply(other, dec(-50))

	assert.Equal(t, other, got)
}

func TestApply_MatchesNameCaseInsensitively(t *testing.T) {
	in := []domain.BudgetCategory{{ID: "x", Name: "ACCOMMODATION", BudgetedAmount: dec(40)}}

	got := budget.Apply(in, dec(10))

	require.Len(t, got, 1)
	// Display casing of the existing category is preserved.
	assert.Equal(t, "ACCOMMODATION", got[0].Name)
	assert.True(t, got[0].BudgetedAmount.Equal(dec(50)))
}

func TestApply_LeavesOtherCategoriesAlone(t *testing.T) {
	in := []domain.BudgetCategory{
		{ID: "fuel", Name: "Fuel", BudgetedAmount: dec(80)},
		{ID: budget.AccommodationCategoryID, Name: budget.AccommodationCategoryName, BudgetedAmount: dec(100)},
	}

	got := budget.Apply(in, dec(-100))

	require.Len(t, got, 1)
	assert.Equal(t, "Fuel", got[0].Name)
	assert.True(t, got[0].BudgetedAmount.Equal(dec(80)))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := categories(100)

	_ = budget.Apply(in, dec(-40))

	assert.True(t, in[0].BudgetedAmount.Equal(dec(100)))
}

func TestApply_NetZeroSequence(t *testing.T) {
	// Subtract-then-add for a same-trip edit: 100 -> gone -> 130.
	step1 := budget.Apply(categories(100), dec(-100))
	step2 := budget.Apply(step1, dec(130))

	require.Len(t, step2, 1)
	assert.True(t, step2[0].BudgetedAmount.Equal(dec(130)))
}
