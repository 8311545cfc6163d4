package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetworks/wcs-go/internal/domain/dispatch"
)

func TestCompare_CargoDominatesAge(t *testing.T) {
	// Arrange - the empty vehicle has the much older task
	loaded := dispatch.Contender{VehicleID: "SH-02", Carrying: true, TaskSeq: 900}
	empty := dispatch.Contender{VehicleID: "SH-01", Carrying: false, TaskSeq: 3}

	// Act
	verdict := dispatch.Compare(loaded, empty)

	// Assert
	assert.Equal(t, "SH-02", verdict.Winner)
	assert.Equal(t, "SH-01", verdict.Loser)
	assert.Equal(t, "carrying", verdict.Reason)
	assert.Positive(t, verdict.Diff)
}

func TestCompare_OlderTaskWinsWithinSameCargoClass(t *testing.T) {
	older := dispatch.Contender{VehicleID: "SH-05", Carrying: true, TaskSeq: 10}
	newer := dispatch.Contender{VehicleID: "SH-06", Carrying: true, TaskSeq: 40}

	verdict := dispatch.Compare(newer, older)

	assert.Equal(t, "SH-05", verdict.Winner)
	assert.Equal(t, "task_age", verdict.Reason)
}

func TestCompare_TieBreaksByVehicleID(t *testing.T) {
	a := dispatch.Contender{VehicleID: "SH-09", Carrying: false, TaskSeq: 12}
	b := dispatch.Contender{VehicleID: "SH-03", Carrying: false, TaskSeq: 12}

	verdict := dispatch.Compare(a, b)

	assert.Equal(t, "SH-03", verdict.Winner)
	assert.Equal(t, "tie_break", verdict.Reason)
	assert.Zero(t, verdict.Diff)
}

func TestCompare_IsStableUnderArgumentOrder(t *testing.T) {
	a := dispatch.Contender{VehicleID: "SH-01", Carrying: false, TaskSeq: 5}
	b := dispatch.Contender{VehicleID: "SH-02", Carrying: true, TaskSeq: 500}

	first := dispatch.Compare(a, b)
	second := dispatch.Compare(b, a)

	assert.Equal(t, first.Winner, second.Winner)
	assert.Equal(t, first.Loser, second.Loser)
	assert.Equal(t, first.Diff, second.Diff)
}

func TestPriorityOf_SeqBeyondCeilingClampsToZeroAge(t *testing.T) {
	// A task sequence past the ceiling must not produce a negative score
	huge := dispatch.Contender{VehicleID: "SH-01", Carrying: false, TaskSeq: 5_000_000}

	score := dispatch.PriorityOf(huge)

	assert.GreaterOrEqual(t, score, int64(0))
}
