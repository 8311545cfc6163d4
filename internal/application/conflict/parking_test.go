package conflict_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/application/conflict"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/path"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
)

// lineFloor builds floor 1 as a single aisle of length n with QRs
// W1:00 through W1:0<n-1>, wired left to right.
func lineFloor(t *testing.T, n int) *floorplan.Plan {
	t.Helper()
	graph := floorplan.NewFloorGraph(1)
	for col := 0; col < n; col++ {
		require.NoError(t, graph.AddNode(&floorplan.Node{
			QR: fmt.Sprintf("W1:0%d", col), FloorID: 1, Col: col, Row: 0,
			X: float64(col), Y: 0,
			CellType: floorplan.CellTypeTravel, DirectionType: floorplan.DirectionTypeBoth,
		}))
	}
	for col := 0; col < n-1; col++ {
		require.NoError(t, graph.AddEdge(fmt.Sprintf("W1:0%d", col), fmt.Sprintf("W1:0%d", col+1), 1))
	}
	plan := floorplan.NewPlan()
	plan.AddFloor(graph)
	return plan
}

func newParkingFixture(t *testing.T, plan *floorplan.Plan) (*conflict.ParkingFinder, *state.ReservationStore) {
	t.Helper()
	clock := shared.NewMockClock(time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC))
	reservation := state.NewReservationStore(state.NewKV(clock))
	return conflict.NewParkingFinder(plan, reservation), reservation
}

func TestParkingFinder_ReservesClosestFreeCell(t *testing.T) {
	// Arrange
	finder, reservation := newParkingFixture(t, lineFloor(t, 5))

	// Act
	spot, found := finder.Find(context.Background(), &conflict.ParkingQuery{
		NearQR:     "W1:02",
		ConflictQR: "W1:03",
		VehicleID:  "SH-01",
		FloorID:    1,
	})

	// Assert: W1:01 and W1:03 are distance 1, but W1:03 is the conflict
	// cell, so W1:01 wins.
	require.True(t, found)
	assert.Equal(t, "W1:01", spot)

	owner, held, err := reservation.Owner(context.Background(), state.ParkingLockKey("W1:01"))
	require.NoError(t, err)
	require.True(t, held)
	assert.Equal(t, "SH-01", owner)
}

func TestParkingFinder_TwoHuntersGetDistinctCells(t *testing.T) {
	// Arrange
	finder, _ := newParkingFixture(t, lineFloor(t, 5))
	query := func(vehicleID string) *conflict.ParkingQuery {
		return &conflict.ParkingQuery{
			NearQR:     "W1:02",
			ConflictQR: "W1:03",
			VehicleID:  vehicleID,
			FloorID:    1,
		}
	}

	// Act
	first, foundFirst := finder.Find(context.Background(), query("SH-01"))
	second, foundSecond := finder.Find(context.Background(), query("SH-02"))

	// Assert: the reservation is the admission check.
	require.True(t, foundFirst)
	require.True(t, foundSecond)
	assert.NotEqual(t, first, second)
}

func TestParkingFinder_SkipsCellsOnOtherVehiclesPaths(t *testing.T) {
	// Arrange: SH-02's declared route crosses the nearest candidates.
	finder, _ := newParkingFixture(t, lineFloor(t, 5))
	otherPath := domainState.ActivePath{
		VehicleID: "SH-02",
		Path: path.New("SH-02", 1, []path.Step{
			{QR: "W1:01", Direction: floorplan.DirectionRight},
			{QR: "W1:02", Direction: floorplan.DirectionRight},
		}),
	}

	// Act
	spot, found := finder.Find(context.Background(), &conflict.ParkingQuery{
		NearQR:      "W1:02",
		ConflictQR:  "W1:03",
		VehicleID:   "SH-01",
		FloorID:     1,
		ActivePaths: []domainState.ActivePath{otherPath},
	})

	// Assert: W1:01 sits on SH-02's path, W1:00 is the nearest clear cell.
	require.True(t, found)
	assert.Equal(t, "W1:00", spot)
}

func TestParkingFinder_OwnPathDoesNotExcludeCells(t *testing.T) {
	// Arrange
	finder, _ := newParkingFixture(t, lineFloor(t, 5))
	ownPath := domainState.ActivePath{
		VehicleID: "SH-01",
		Path: path.New("SH-01", 1, []path.Step{
			{QR: "W1:01", Direction: floorplan.DirectionRight},
		}),
	}

	// Act
	spot, found := finder.Find(context.Background(), &conflict.ParkingQuery{
		NearQR:      "W1:02",
		ConflictQR:  "W1:03",
		VehicleID:   "SH-01",
		FloorID:     1,
		ActivePaths: []domainState.ActivePath{ownPath},
	})

	// Assert
	require.True(t, found)
	assert.Equal(t, "W1:01", spot)
}

func TestParkingFinder_SkipsBlockedAndOccupiedStorage(t *testing.T) {
	// Arrange
	plan := lineFloor(t, 5)
	graph, _ := plan.Floor(1)
	blocked, _ := graph.Node("W1:01")
	blocked.Blocked = true
	boxed, _ := graph.Node("W1:00")
	boxed.HasBox = true
	finder, _ := newParkingFixture(t, plan)

	// Act
	spot, found := finder.Find(context.Background(), &conflict.ParkingQuery{
		NearQR:     "W1:02",
		ConflictQR: "W1:03",
		VehicleID:  "SH-01",
		FloorID:    1,
	})

	// Assert: W1:04 is the only candidate left inside the radius.
	require.True(t, found)
	assert.Equal(t, "W1:04", spot)
}

func TestParkingFinder_RespectsSearchRadius(t *testing.T) {
	// Arrange: a long aisle where everything near the vehicle is taken.
	plan := lineFloor(t, 10)
	graph, _ := plan.Floor(1)
	for _, qr := range []string{"W1:00", "W1:01", "W1:03", "W1:04", "W1:05"} {
		n, _ := graph.Node(qr)
		n.HasBox = true
	}
	finder, _ := newParkingFixture(t, plan)

	// Act: from W1:02 the nearest free cell is W1:06, distance 4, past
	// the radius of 3.
	_, found := finder.Find(context.Background(), &conflict.ParkingQuery{
		NearQR:     "W1:02",
		ConflictQR: "W1:09",
		VehicleID:  "SH-01",
		FloorID:    1,
	})

	// Assert
	assert.False(t, found)
}

func TestParkingFinder_ReleaseFreesTheCell(t *testing.T) {
	// Arrange
	finder, reservation := newParkingFixture(t, lineFloor(t, 5))
	spot, found := finder.Find(context.Background(), &conflict.ParkingQuery{
		NearQR:     "W1:02",
		ConflictQR: "W1:03",
		VehicleID:  "SH-01",
		FloorID:    1,
	})
	require.True(t, found)

	// Act
	finder.Release(context.Background(), spot)

	// Assert
	_, held, err := reservation.Owner(context.Background(), state.ParkingLockKey(spot))
	require.NoError(t, err)
	assert.False(t, held)
}

func TestParkingFinder_UnknownFloorOrCell(t *testing.T) {
	// Arrange
	finder, _ := newParkingFixture(t, lineFloor(t, 3))

	// Act
	_, foundBadFloor := finder.Find(context.Background(), &conflict.ParkingQuery{
		NearQR: "W1:01", FloorID: 9, VehicleID: "SH-01",
	})
	_, foundBadCell := finder.Find(context.Background(), &conflict.ParkingQuery{
		NearQR: "Z9:99", FloorID: 1, VehicleID: "SH-01",
	})

	// Assert
	assert.False(t, foundBadFloor)
	assert.False(t, foundBadCell)
}
