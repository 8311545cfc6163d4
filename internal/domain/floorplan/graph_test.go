package floorplan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
)

// newTestFloor builds a 3x3 grid with unit spacing:
//
//	F1:00 F1:01 F1:02
//	F1:10 F1:11 F1:12
//	F1:20 F1:21 F1:22
func newTestFloor(t *testing.T) *floorplan.FloorGraph {
	t.Helper()
	g := floorplan.NewFloorGraph(1)
	qr := func(row, col int) string {
		return "F1:" + string(rune('0'+row)) + string(rune('0'+col))
	}
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			err := g.AddNode(&floorplan.Node{
				QR:            qr(row, col),
				FloorID:       1,
				Col:           col,
				Row:           row,
				X:             float64(col),
				Y:             float64(row),
				CellType:      floorplan.CellTypeTravel,
				DirectionType: floorplan.DirectionTypeBoth,
			})
			require.NoError(t, err)
		}
	}
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			if col < 2 {
				require.NoError(t, g.AddEdge(qr(row, col), qr(row, col+1), 0))
			}
			if row < 2 {
				require.NoError(t, g.AddEdge(qr(row, col), qr(row+1, col), 0))
			}
		}
	}
	return g
}

func TestFloorGraph_NodeLookup(t *testing.T) {
	g := newTestFloor(t)

	n, ok := g.Node("F1:11")

	require.True(t, ok)
	assert.Equal(t, 1, n.Col)
	assert.Equal(t, 1, n.Row)

	_, ok = g.Node("F1:99")
	assert.False(t, ok)
}

func TestFloorGraph_NodeAt(t *testing.T) {
	g := newTestFloor(t)

	n, ok := g.NodeAt(2, 0)

	require.True(t, ok)
	assert.Equal(t, "F1:02", n.QR)
}

func TestFloorGraph_AddNodeRejectsWrongFloor(t *testing.T) {
	g := floorplan.NewFloorGraph(1)

	err := g.AddNode(&floorplan.Node{QR: "X", FloorID: 2})

	assert.Error(t, err)
}

func TestFloorGraph_AddEdgeRequiresBothEnds(t *testing.T) {
	g := floorplan.NewFloorGraph(1)
	require.NoError(t, g.AddNode(&floorplan.Node{QR: "A", FloorID: 1}))

	err := g.AddEdge("A", "B", 1.0)

	assert.Error(t, err)
}

func TestFloorGraph_EdgesAreBidirectional(t *testing.T) {
	g := newTestFloor(t)

	// Corner cell has two neighbours, centre has four
	assert.Len(t, g.Neighbors("F1:00"), 2)
	assert.Len(t, g.Neighbors("F1:11"), 4)

	// The reverse direction exists too
	found := false
	for _, nb := range g.Neighbors("F1:01") {
		if nb.QR == "F1:00" {
			found = true
			assert.InDelta(t, 1.0, nb.Distance, 1e-9)
		}
	}
	assert.True(t, found)
}

func TestFloorGraph_NearestNodeSkipsBlocked(t *testing.T) {
	// Arrange
	g := floorplan.NewFloorGraph(1)
	require.NoError(t, g.AddNode(&floorplan.Node{QR: "A", FloorID: 1, X: 0, Y: 0, Blocked: true}))
	require.NoError(t, g.AddNode(&floorplan.Node{QR: "B", FloorID: 1, X: 5, Y: 0}))

	// Act - probe right next to the blocked cell
	n, ok := g.NearestNode(0.1, 0)

	// Assert - the traversable cell wins despite the distance
	require.True(t, ok)
	assert.Equal(t, "B", n.QR)
}

func TestPlan_FindNodeAcrossFloors(t *testing.T) {
	// Arrange
	plan := floorplan.NewPlan()
	g1 := floorplan.NewFloorGraph(1)
	require.NoError(t, g1.AddNode(&floorplan.Node{QR: "F1:00", FloorID: 1}))
	g2 := floorplan.NewFloorGraph(2)
	require.NoError(t, g2.AddNode(&floorplan.Node{QR: "F2:00", FloorID: 2}))
	plan.AddFloor(g1)
	plan.AddFloor(g2)

	// Act
	n, ok := plan.FindNode("F2:00")

	// Assert
	require.True(t, ok)
	assert.Equal(t, 2, n.FloorID)
	assert.Equal(t, []int{1, 2}, plan.FloorIDs())
}

func TestPlan_LifterNodes(t *testing.T) {
	plan := floorplan.NewPlan()
	g := floorplan.NewFloorGraph(1)
	require.NoError(t, g.AddNode(&floorplan.Node{QR: "L1", FloorID: 1, CellType: floorplan.CellTypeLifter}))
	require.NoError(t, g.AddNode(&floorplan.Node{QR: "T1", FloorID: 1, CellType: floorplan.CellTypeTravel}))
	plan.AddFloor(g)

	lifters := plan.LifterNodes(1)

	require.Len(t, lifters, 1)
	assert.Equal(t, "L1", lifters[0].QR)
	assert.Empty(t, plan.LifterNodes(9))
}

func TestDirectionFromDelta(t *testing.T) {
	assert.Equal(t, floorplan.DirectionRight, floorplan.DirectionFromDelta(1, 0))
	assert.Equal(t, floorplan.DirectionLeft, floorplan.DirectionFromDelta(-1, 0))
	assert.Equal(t, floorplan.DirectionDown, floorplan.DirectionFromDelta(0, 1))
	assert.Equal(t, floorplan.DirectionUp, floorplan.DirectionFromDelta(0, -1))
	assert.Equal(t, floorplan.DirectionNone, floorplan.DirectionFromDelta(1, 1))
	assert.Equal(t, floorplan.DirectionNone, floorplan.DirectionFromDelta(0, 0))
}

func TestDirectionType_Allows(t *testing.T) {
	// One-way rules constrain horizontal travel only
	assert.True(t, floorplan.DirectionTypeLeftToRight.Allows(floorplan.DirectionRight))
	assert.False(t, floorplan.DirectionTypeLeftToRight.Allows(floorplan.DirectionLeft))
	assert.True(t, floorplan.DirectionTypeLeftToRight.Allows(floorplan.DirectionUp))
	assert.True(t, floorplan.DirectionTypeRightToLeft.Allows(floorplan.DirectionLeft))
	assert.False(t, floorplan.DirectionTypeRightToLeft.Allows(floorplan.DirectionRight))
	assert.True(t, floorplan.DirectionTypeBoth.Allows(floorplan.DirectionLeft))
}

func TestNode_AcceptsPallet(t *testing.T) {
	typed := &floorplan.Node{QR: "S1", PalletType: "EUR"}
	open := &floorplan.Node{QR: "S2"}

	assert.True(t, typed.AcceptsPallet("EUR"))
	assert.False(t, typed.AcceptsPallet("HALF"))
	assert.True(t, typed.AcceptsPallet(""))
	assert.True(t, open.AcceptsPallet("HALF"))
}

func TestNode_HeadingTo(t *testing.T) {
	a := &floorplan.Node{QR: "A", Col: 1, Row: 1}
	b := &floorplan.Node{QR: "B", Col: 2, Row: 1}

	assert.Equal(t, floorplan.DirectionRight, a.HeadingTo(b))
	assert.Equal(t, floorplan.DirectionLeft, b.HeadingTo(a))
}

func TestRowDirectionFor(t *testing.T) {
	dir, ok := floorplan.RowDirectionFor(floorplan.DirectionRight)
	require.True(t, ok)
	assert.Equal(t, floorplan.RowDirectionLeftToRight, dir)

	dir, ok = floorplan.RowDirectionFor(floorplan.DirectionLeft)
	require.True(t, ok)
	assert.Equal(t, floorplan.RowDirectionRightToLeft, dir)

	_, ok = floorplan.RowDirectionFor(floorplan.DirectionUp)
	assert.False(t, ok)
}
