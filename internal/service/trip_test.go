package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamperhub/kamperhub-server/internal/domain"
	"github.com/kamperhub/kamperhub-server/internal/polyline"
	"github.com/kamperhub/kamperhub-server/internal/route"
	"github.com/kamperhub/kamperhub-server/internal/service"
	"github.com/kamperhub/kamperhub-server/internal/store"
)

// mockRouteRefresher is a test double for service.RouteRefresher.
type mockRouteRefresher struct {
	recompute func(ctx context.Context, userID, journeyID string) error
}

func (m *mockRouteRefresher) Recompute(ctx context.Context, userID, journeyID string) error {
	return m.recompute(ctx, userID, journeyID)
}

// compile-time check: mockRouteRefresher must satisfy service.RouteRefresher.
var _ service.RouteRefresher = (*mockRouteRefresher)(nil)

// newTripService wires a TripService against the in-memory store with the
// real aggregator, mirroring production wiring.
func newTripService(m *store.Memory) *service.TripService {
	return service.NewTripService(m, route.NewAggregator(m, discardLogger()), discardLogger())
}

func seedJourney(t *testing.T, m *store.Memory, journey domain.Journey) {
	t.Helper()
	if journey.TripIDs == nil {
		journey.TripIDs = []string{}
	}
	if journey.Name == "" {
		journey.Name = "Journey " + journey.ID
	}
	require.NoError(t, m.Set(context.Background(), store.Path(userID, "journeys", journey.ID), journey))
}

func getJourney(t *testing.T, m *store.Memory, id string) domain.Journey {
	t.Helper()
	var journey domain.Journey
	require.NoError(t, m.Get(context.Background(), store.Path(userID, "journeys", id), &journey))
	return journey
}

func datePtr(s string) *time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &d
}

func validTrip() domain.Trip {
	return domain.Trip{
		Name:          "Coast Run",
		StartLocation: "Sydney",
		EndLocation:   "Byron Bay",
	}
}

// ---- Create ----------------------------------------------------------------

func TestTripService_Create_Unassigned(t *testing.T) {
	m := store.NewMemory()
	svc := newTripService(m)

	created, err := svc.Create(context.Background(), userID, validTrip())

	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Nil(t, created.JourneyID)
	// Collection fields are stored as empty arrays, not null.
	assert.NotNil(t, created.BudgetCategories)
	assert.NotNil(t, created.Expenses)
}

func TestTripService_Create_AssignedJoinsJourney(t *testing.T) {
	m := store.NewMemory()
	svc := newTripService(m)
	seedJourney(t, m, domain.Journey{ID: "J1"})

	trip := validTrip()
	trip.JourneyID = ptr("J1")

	created, err := svc.Create(context.Background(), userID, trip)

	require.NoError(t, err)
	assert.Contains(t, getJourney(t, m, "J1").TripIDs, created.ID)
}

func TestTripService_Create_MissingJourneyAborts(t *testing.T) {
	m := store.NewMemory()
	svc := newTripService(m)

	trip := validTrip()
	trip.JourneyID = ptr("missing")

	_, err := svc.Create(context.Background(), userID, trip)

	assert.ErrorIs(t, err, domain.ErrNotFound)

	trips, listErr := svc.List(context.Background(), userID)
	require.NoError(t, listErr)
	assert.Empty(t, trips)
}

func TestTripService_Create_MissingName(t *testing.T) {
	m := store.NewMemory()
	svc := newTripService(m)

	trip := validTrip()
	trip.Name = ""

	_, err := svc.Create(context.Background(), userID, trip)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTripService_Create_PlannedEndBeforeStart(t *testing.T) {
	m := store.NewMemory()
	svc := newTripService(m)

	trip := validTrip()
	trip.PlannedStart = datePtr("2024-06-10")
	trip.PlannedEnd = datePtr("2024-06-01")

	_, err := svc.Create(context.Background(), userID, trip)

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTripService_Create_RefreshFailureStillCommits(t *testing.T) {
	m := store.NewMemory()
	refresher := &mockRouteRefresher{
		recompute: func(_ context.Context, _, _ string) error {
			return errors.New("routing backend down")
		},
	}
	svc := service.NewTripService(m, refresher, discardLogger())
	seedJourney(t, m, domain.Journey{ID: "J1"})

	trip := validTrip()
	trip.JourneyID = ptr("J1")

	created, err := svc.Create(context.Background(), userID, trip)

	// The mutation committed; only the derived route is stale.
	assert.ErrorIs(t, err, domain.ErrStaleRoute)
	assert.NotEmpty(t, created.ID)
	assert.Contains(t, getJourney(t, m, "J1").TripIDs, created.ID)
}

// ---- Update: membership ----------------------------------------------------

func TestTripService_Update_ReassignMovesMembership(t *testing.T) {
	m := store.NewMemory()
	svc := newTripService(m)
	seedJourney(t, m, domain.Journey{ID: "J1"})
	seedJourney(t, m, domain.Journey{ID: "J2"})

	trip := validTrip()
	trip.JourneyID = ptr("J1")
	created, err := svc.Create(context.Background(), userID, trip)
	require.NoError(t, err)

	moved := created
	moved.JourneyID = ptr("J2")
	_, err = svc.Update(context.Background(), userID, moved)
	require.NoError(t, err)

	assert.NotContains(t, getJourney(t, m, "J1").TripIDs, created.ID)
	assert.Contains(t, getJourney(t, m, "J2").TripIDs, created.ID)
}

func TestTripService_Update_MembershipSymmetry(t *testing.T) {
	m := store.NewMemory()
	svc := newTripService(m)
	seedJourney(t, m, domain.Journey{ID: "J1"})
	seedJourney(t, m, domain.Journey{ID: "J2"})

	ctx := context.Background()
	trip := validTrip()
	trip.JourneyID = ptr("J1")
	created, err := svc.Create(ctx, userID, trip)
	require.NoError(t, err)

	// Bounce the trip through a sequence of reassignments.
	for _, target := range []*string{ptr("J2"), nil, ptr("J1"), ptr("J1"), ptr("J2")} {
		next, getErr := svc.GetByID(ctx, userID, created.ID)
		require.NoError(t, getErr)
		next.JourneyID = target
		_, err = svc.Update(ctx, userID, next)
		require.NoError(t, err)
	}

	// Post-reconciliation: the back-reference and the member lists agree.
	final, err := svc.GetByID(ctx, userID, created.ID)
	require.NoError(t, err)
	require.NotNil(t, final.JourneyID)
	assert.Equal(t, "J2", *final.JourneyID)

	assert.NotContains(t, getJourney(t, m, "J1").TripIDs, created.ID)
	assert.Contains(t, getJourney(t, m, "J2").TripIDs, created.ID)
}

func TestTripService_Update_ReassignToMissingJourneyAborts(t *testing.T) {
	m := store.NewMemory()
	svc := newTripService(m)
	seedJourney(t, m, domain.Journey{ID: "J1"})

	trip := validTrip()
	trip.JourneyID = ptr("J1")
	created, err := svc.Create(context.Background(), userID, trip)
	require.NoError(t, err)

	moved := created
	moved.JourneyID = ptr("missing")
	_, err = svc.Update(context.Background(), userID, moved)

	assert.ErrorIs(t, err, domain.ErrNotFound)
	// The failed move left the original membership intact.
	assert.Contains(t, getJourney(t, m, "J1").TripIDs, created.ID)
	unchanged, err := svc.GetByID(context.Background(), userID, created.ID)
	require.NoError(t, err)
	require.NotNil(t, unchanged.JourneyID)
	assert.Equal(t, "J1", *unchanged.JourneyID)
}

// ---- Update: route refresh -------------------------------------------------

func TestTripService_Update_RouteChangeRefreshesJourney(t *testing.T) {
	m := store.NewMemory()
	svc := newTripService(m)
	seedJourney(t, m, domain.Journey{ID: "J1"})

	trip := validTrip()
	trip.JourneyID = ptr("J1")
	trip.Route = &domain.RouteDetails{Geometry: polyline.Encode([]polyline.Point{{Lat: 1, Lng: 1}})}
	created, err := svc.Create(context.Background(), userID, trip)
	require.NoError(t, err)

	before := getJourney(t, m, "J1").MasterPolyline
	require.NotNil(t, before)

	edited := created
	edited.Route = &domain.RouteDetails{Geometry: polyline.Encode([]polyline.Point{{Lat: 9, Lng: 9}})}
	_, err = svc.Update(context.Background(), userID, edited)
	require.NoError(t, err)

	after := getJourney(t, m, "J1").MasterPolyline
	require.NotNil(t, after)
	assert.NotEqual(t, *before, *after)
}

func TestTripService_Update_DateChangeReordersMasterPolyline(t *testing.T) {
	m := store.NewMemory()
	svc := newTripService(m)
	seedJourney(t, m, domain.Journey{ID: "J1"})

	ctx := context.Background()
	p1 := []polyline.Point{{Lat: 1, Lng: 1}}
	p2 := []polyline.Point{{Lat: 2, Lng: 2}}

	first := validTrip()
	first.JourneyID = ptr("J1")
	first.PlannedStart = datePtr("2024-01-01")
	first.Route = &domain.RouteDetails{Geometry: polyline.Encode(p1)}
	createdFirst, err := svc.Create(ctx, userID, first)
	require.NoError(t, err)

	second := validTrip()
	second.JourneyID = ptr("J1")
	second.PlannedStart = datePtr("2024-02-01")
	second.Route = &domain.RouteDetails{Geometry: polyline.Encode(p2)}
	_, err = svc.Create(ctx, userID, second)
	require.NoError(t, err)

	master := getJourney(t, m, "J1").MasterPolyline
	require.NotNil(t, master)
	assert.Equal(t, polyline.Encode(append(append([]polyline.Point{}, p1...), p2...)), *master)

	// Moving the first trip after the second reverses the concatenation.
	edited, err := svc.GetByID(ctx, userID, createdFirst.ID)
	require.NoError(t, err)
	edited.PlannedStart = datePtr("2024-03-01")
	_, err = svc.Update(ctx, userID, edited)
	require.NoError(t, err)

	master = getJourney(t, m, "J1").MasterPolyline
	require.NotNil(t, master)
	assert.Equal(t, polyline.Encode(append(append([]polyline.Point{}, p2...), p1...)), *master)
}

// ---- Delete ----------------------------------------------------------------

func TestTripService_Delete_CascadesPackingListAndDetaches(t *testing.T) {
	m := store.NewMemory()
	svc := newTripService(m)
	seedJourney(t, m, domain.Journey{ID: "J1"})

	ctx := context.Background()
	trip := validTrip()
	trip.JourneyID = ptr("J1")
	created, err := svc.Create(ctx, userID, trip)
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, store.Path(userID, "packing", created.ID), domain.PackingList{
		TripID: created.ID,
		Items:  []domain.PackingItem{{ID: "i1", Name: "Tent", Quantity: 1}},
	}))

	require.NoError(t, svc.Delete(ctx, userID, created.ID))

	_, err = svc.GetByID(ctx, userID, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var list domain.PackingList
	assert.ErrorIs(t, m.Get(ctx, store.Path(userID, "packing", created.ID), &list), domain.ErrNotFound)

	assert.NotContains(t, getJourney(t, m, "J1").TripIDs, created.ID)
}

func TestTripService_Delete_WithoutPackingListOrJourney(t *testing.T) {
	m := store.NewMemory()
	svc := newTripService(m)

	created, err := svc.Create(context.Background(), userID, validTrip())
	require.NoError(t, err)

	assert.NoError(t, svc.Delete(context.Background(), userID, created.ID))
}

func TestTripService_Delete_Missing(t *testing.T) {
	m := store.NewMemory()
	svc := newTripService(m)

	err := svc.Delete(context.Background(), userID, "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ---- CopyToJourney ---------------------------------------------------------

func TestTripService_CopyToJourney_CopiesPlannableFields(t *testing.T) {
	m := store.NewMemory()
	svc := newTripService(m)
	seedJourney(t, m, domain.Journey{ID: "J1"})

	ctx := context.Background()
	source := validTrip()
	source.PlannedStart = datePtr("2024-06-01")
	source.Route = &domain.RouteDetails{Geometry: polyline.Encode([]polyline.Point{{Lat: 1, Lng: 1}})}
	source.Completed = true
	created, err := svc.Create(ctx, userID, source)
	require.NoError(t, err)

	copied, err := svc.CopyToJourney(ctx, userID, created.ID, "J1")

	require.NoError(t, err)
	assert.NotEqual(t, created.ID, copied.ID)
	assert.Equal(t, "Coast Run (Copy)", copied.Name)
	assert.Equal(t, created.StartLocation, copied.StartLocation)
	require.NotNil(t, copied.JourneyID)
	assert.Equal(t, "J1", *copied.JourneyID)
	// Logged actuals stay with the source.
	assert.Empty(t, copied.Expenses)
	assert.False(t, copied.Completed)

	journey := getJourney(t, m, "J1")
	assert.Contains(t, journey.TripIDs, copied.ID)
	assert.NotContains(t, journey.TripIDs, created.ID)
	// The copy's route feeds the journey's master polyline.
	assert.NotNil(t, journey.MasterPolyline)
}

func TestTripService_CopyToJourney_MissingSource(t *testing.T) {
	m := store.NewMemory()
	svc := newTripService(m)
	seedJourney(t, m, domain.Journey{ID: "J1"})

	_, err := svc.CopyToJourney(context.Background(), userID, "missing", "J1")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTripService_CopyToJourney_MissingJourney(t *testing.T) {
	m := store.NewMemory()
	svc := newTripService(m)

	created, err := svc.Create(context.Background(), userID, validTrip())
	require.NoError(t, err)

	_, err = svc.CopyToJourney(context.Background(), userID, created.ID, "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
