package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/fleetworks/wcs-go/internal/adapters/pathfinding"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/path"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

type routingContext struct {
	plan        *floorplan.Plan
	finder      *pathfinding.Pathfinder
	floorID     int
	opts        pathfinding.Options
	plannedPath *path.Path
	tier        pathfinding.Tier
	planErr     error
}

func (ctx *routingContext) reset() {
	ctx.plan = nil
	ctx.finder = nil
	ctx.floorID = 0
	ctx.opts = pathfinding.Options{
		VehicleID: "SH-01",
		Avoid:     make(map[string]struct{}),
		Occupied:  make(map[string]string),
	}
	ctx.plannedPath = nil
	ctx.tier = 0
	ctx.planErr = nil
}

// Given steps

// aFloorGridOfColumnsAndRows builds a fully connected grid floor. Cells
// are tagged "G<floor>:<row><col>".
func (ctx *routingContext) aFloorGridOfColumnsAndRows(floorID, cols, rows int) error {
	graph := floorplan.NewFloorGraph(floorID)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if err := graph.AddNode(&floorplan.Node{
				QR:            fmt.Sprintf("G%d:%d%d", floorID, r, c),
				FloorID:       floorID,
				Col:           c,
				Row:           r,
				X:             float64(c),
				Y:             float64(r),
				CellType:      floorplan.CellTypeTravel,
				DirectionType: floorplan.DirectionTypeBoth,
			}); err != nil {
				return err
			}
		}
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols-1; c++ {
			if err := graph.AddEdge(fmt.Sprintf("G%d:%d%d", floorID, r, c), fmt.Sprintf("G%d:%d%d", floorID, r, c+1), 1); err != nil {
				return err
			}
		}
	}
	for r := 0; r < rows-1; r++ {
		for c := 0; c < cols; c++ {
			if err := graph.AddEdge(fmt.Sprintf("G%d:%d%d", floorID, r, c), fmt.Sprintf("G%d:%d%d", floorID, r+1, c), 1); err != nil {
				return err
			}
		}
	}

	ctx.plan = floorplan.NewPlan()
	ctx.plan.AddFloor(graph)
	ctx.finder = pathfinding.New(ctx.plan)
	ctx.floorID = floorID
	return nil
}

func (ctx *routingContext) cellIsToBeAvoided(qr string) error {
	ctx.opts.Avoid[qr] = struct{}{}
	return nil
}

func (ctx *routingContext) cellIsOccupiedByVehicle(qr, vehicleID string) error {
	ctx.opts.Occupied[qr] = vehicleID
	return nil
}

// When steps

func (ctx *routingContext) iPlanARouteFromTo(from, to string) error {
	if ctx.finder == nil {
		return fmt.Errorf("no floor plan was built")
	}
	ctx.plannedPath, ctx.tier, ctx.planErr = ctx.finder.FindWithFallback(ctx.floorID, from, to, ctx.opts)
	return nil
}

// Then steps

func (ctx *routingContext) aRouteShouldBeFound() error {
	if ctx.planErr != nil {
		return fmt.Errorf("expected a route but planning failed: %v", ctx.planErr)
	}
	if ctx.plannedPath == nil {
		return fmt.Errorf("expected a route but got none")
	}
	return nil
}

func (ctx *routingContext) aRouteShouldBeFoundOnFallbackTier(tier int) error {
	if err := ctx.aRouteShouldBeFound(); err != nil {
		return err
	}
	if int(ctx.tier) != tier {
		return fmt.Errorf("expected fallback tier %d but got %d", tier, ctx.tier)
	}
	return nil
}

func (ctx *routingContext) theRouteShouldHaveSteps(expected int) error {
	if ctx.plannedPath == nil {
		return fmt.Errorf("no route was planned")
	}
	if ctx.plannedPath.Len() != expected {
		return fmt.Errorf("expected %d steps but got %d (%s)", expected, ctx.plannedPath.Len(), ctx.plannedPath)
	}
	return nil
}

func (ctx *routingContext) theRouteShouldEndAt(qr string) error {
	if ctx.plannedPath == nil {
		return fmt.Errorf("no route was planned")
	}
	dest, ok := ctx.plannedPath.Destination()
	if !ok {
		return fmt.Errorf("the route is empty")
	}
	if dest.QR != qr {
		return fmt.Errorf("expected route to end at %s but it ends at %s", qr, dest.QR)
	}
	return nil
}

func (ctx *routingContext) theRouteShouldNotPassThrough(qr string) error {
	if ctx.plannedPath == nil {
		return fmt.Errorf("no route was planned")
	}
	if ctx.plannedPath.Contains(qr) {
		return fmt.Errorf("expected route to skip %s but it passes through (%s)", qr, ctx.plannedPath)
	}
	return nil
}

func (ctx *routingContext) routePlanningShouldFailWithNoPathError() error {
	if ctx.planErr == nil {
		return fmt.Errorf("expected planning to fail but a route was found")
	}
	var noPath *shared.NoPathError
	if !errors.As(ctx.planErr, &noPath) {
		return fmt.Errorf("expected a no-path error but got %v", ctx.planErr)
	}
	return nil
}

func InitializeRoutingScenario(sc *godog.ScenarioContext) {
	routingCtx := &routingContext{}

	sc.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		routingCtx.reset()
		return ctx, nil
	})

	// Given steps
	sc.Step(`^a floor (\d+) grid of (\d+) columns and (\d+) rows$`, routingCtx.aFloorGridOfColumnsAndRows)
	sc.Step(`^cell "([^"]*)" is to be avoided$`, routingCtx.cellIsToBeAvoided)
	sc.Step(`^cell "([^"]*)" is occupied by vehicle "([^"]*)"$`, routingCtx.cellIsOccupiedByVehicle)

	// When steps
	sc.Step(`^I plan a route from "([^"]*)" to "([^"]*)"$`, routingCtx.iPlanARouteFromTo)

	// Then steps
	sc.Step(`^a route should be found$`, routingCtx.aRouteShouldBeFound)
	sc.Step(`^a route should be found on fallback tier (\d+)$`, routingCtx.aRouteShouldBeFoundOnFallbackTier)
	sc.Step(`^the route should have (\d+) steps?$`, routingCtx.theRouteShouldHaveSteps)
	sc.Step(`^the route should end at "([^"]*)"$`, routingCtx.theRouteShouldEndAt)
	sc.Step(`^the route should not pass through "([^"]*)"$`, routingCtx.theRouteShouldNotPassThrough)
	sc.Step(`^route planning should fail with a no-path error$`, routingCtx.routePlanningShouldFailWithNoPathError)
}
