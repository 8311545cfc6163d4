package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cucumber/godog"

	"github.com/fleetworks/wcs-go/internal/domain/shared"
	"github.com/fleetworks/wcs-go/internal/domain/task"
)

type taskLifecycleContext struct {
	clock         *shared.MockClock
	task          *task.Task
	createErr     error
	transitionErr error
	seq           int64
}

func (ctx *taskLifecycleContext) reset() {
	ctx.clock = shared.NewMockClock(time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC))
	ctx.task = nil
	ctx.createErr = nil
	ctx.transitionErr = nil
	ctx.seq = 0
}

// Given / When steps

func (ctx *taskLifecycleContext) iCreateATask(id, sourceQR string, sourceFloor int, destQR string, destFloor int) error {
	ctx.seq++
	ctx.task, ctx.createErr = task.New(id, ctx.seq, sourceQR, sourceFloor, destQR, destFloor, ctx.clock.Now())
	return nil
}

func (ctx *taskLifecycleContext) aPendingTask(id, sourceQR, destQR string) error {
	ctx.seq++
	t, err := task.New(id, ctx.seq, sourceQR, 1, destQR, 1, ctx.clock.Now())
	if err != nil {
		return err
	}
	ctx.task = t
	return nil
}

func (ctx *taskLifecycleContext) theTaskIsAssignedTo(vehicleID string) error {
	if ctx.task == nil {
		return fmt.Errorf("no task was created")
	}
	return ctx.task.AssignTo(vehicleID, ctx.clock.Now())
}

func (ctx *taskLifecycleContext) theTaskIsTransitionedTo(status string) error {
	if ctx.task == nil {
		return fmt.Errorf("no task was created")
	}
	return ctx.task.Transition(task.Status(status), ctx.clock.Now())
}

// iTransitionTheTaskTo records the outcome instead of failing so the
// Then steps can assert on the rejection.
func (ctx *taskLifecycleContext) iTransitionTheTaskTo(status string) error {
	if ctx.task == nil {
		return fmt.Errorf("no task was created")
	}
	ctx.transitionErr = ctx.task.Transition(task.Status(status), ctx.clock.Now())
	return nil
}

func (ctx *taskLifecycleContext) iAssignTheTaskTo(vehicleID string) error {
	if ctx.task == nil {
		return fmt.Errorf("no task was created")
	}
	ctx.transitionErr = ctx.task.AssignTo(vehicleID, ctx.clock.Now())
	return nil
}

func (ctx *taskLifecycleContext) iFailTheTaskWithReason(reason string) error {
	if ctx.task == nil {
		return fmt.Errorf("no task was created")
	}
	ctx.transitionErr = ctx.task.Fail(reason, ctx.clock.Now())
	return nil
}

// Then steps

func (ctx *taskLifecycleContext) theTaskStatusShouldBe(expected string) error {
	if ctx.task == nil {
		return fmt.Errorf("no task was created")
	}
	if ctx.transitionErr != nil {
		return fmt.Errorf("unexpected transition error: %v", ctx.transitionErr)
	}
	if string(ctx.task.Status) != expected {
		return fmt.Errorf("expected status %s but got %s", expected, ctx.task.Status)
	}
	return nil
}

func (ctx *taskLifecycleContext) theTaskShouldRequireALifterLeg() error {
	if ctx.task == nil {
		return fmt.Errorf("no task was created")
	}
	if !ctx.task.CrossesFloors() {
		return fmt.Errorf("expected task %s to cross floors but it does not", ctx.task.ID)
	}
	return nil
}

func (ctx *taskLifecycleContext) theTaskShouldNotRequireALifterLeg() error {
	if ctx.task == nil {
		return fmt.Errorf("no task was created")
	}
	if ctx.task.CrossesFloors() {
		return fmt.Errorf("expected task %s to stay on one floor but it crosses floors", ctx.task.ID)
	}
	return nil
}

func (ctx *taskLifecycleContext) taskCreationShouldFailWithValidationErrorOn(field string) error {
	if ctx.createErr == nil {
		return fmt.Errorf("expected task creation to fail but it succeeded")
	}
	var v *shared.ValidationError
	if !errors.As(ctx.createErr, &v) {
		return fmt.Errorf("expected a validation error but got %v", ctx.createErr)
	}
	if v.Field != field {
		return fmt.Errorf("expected validation error on %q but got %q", field, v.Field)
	}
	return nil
}

func (ctx *taskLifecycleContext) theTaskShouldBeBoundToVehicle(vehicleID string) error {
	if ctx.task == nil {
		return fmt.Errorf("no task was created")
	}
	if ctx.task.VehicleID != vehicleID {
		return fmt.Errorf("expected task bound to %s but got %q", vehicleID, ctx.task.VehicleID)
	}
	return nil
}

func (ctx *taskLifecycleContext) theTaskShouldBeBoundToNoVehicle() error {
	if ctx.task == nil {
		return fmt.Errorf("no task was created")
	}
	if ctx.task.VehicleID != "" {
		return fmt.Errorf("expected no vehicle binding but got %q", ctx.task.VehicleID)
	}
	return nil
}

func (ctx *taskLifecycleContext) theTransitionShouldBeRejected() error {
	if ctx.transitionErr == nil {
		return fmt.Errorf("expected the transition to be rejected but it succeeded")
	}
	var e *shared.InvalidTaskTransitionError
	if !errors.As(ctx.transitionErr, &e) {
		return fmt.Errorf("expected an invalid transition error but got %v", ctx.transitionErr)
	}
	return nil
}

func (ctx *taskLifecycleContext) theFailureReasonShouldBe(reason string) error {
	if ctx.task == nil {
		return fmt.Errorf("no task was created")
	}
	if ctx.task.FailReason != reason {
		return fmt.Errorf("expected failure reason %q but got %q", reason, ctx.task.FailReason)
	}
	return nil
}

func InitializeTaskLifecycleScenario(sc *godog.ScenarioContext) {
	lifecycleCtx := &taskLifecycleContext{}

	sc.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		lifecycleCtx.reset()
		return ctx, nil
	})

	// Given steps
	sc.Step(`^a pending task "([^"]*)" from cell "([^"]*)" to cell "([^"]*)"$`, lifecycleCtx.aPendingTask)
	sc.Step(`^the task is assigned to vehicle "([^"]*)"$`, lifecycleCtx.theTaskIsAssignedTo)
	sc.Step(`^the task is transitioned to "([^"]*)"$`, lifecycleCtx.theTaskIsTransitionedTo)

	// When steps
	sc.Step(`^I create a task "([^"]*)" from cell "([^"]*)" on floor (\d+) to cell "([^"]*)" on floor (\d+)$`, lifecycleCtx.iCreateATask)
	sc.Step(`^I assign the task to vehicle "([^"]*)"$`, lifecycleCtx.iAssignTheTaskTo)
	sc.Step(`^I transition the task to "([^"]*)"$`, lifecycleCtx.iTransitionTheTaskTo)
	sc.Step(`^I fail the task with reason "([^"]*)"$`, lifecycleCtx.iFailTheTaskWithReason)

	// Then steps
	sc.Step(`^the task status should be "([^"]*)"$`, lifecycleCtx.theTaskStatusShouldBe)
	sc.Step(`^the task should require a lifter leg$`, lifecycleCtx.theTaskShouldRequireALifterLeg)
	sc.Step(`^the task should not require a lifter leg$`, lifecycleCtx.theTaskShouldNotRequireALifterLeg)
	sc.Step(`^task creation should fail with a validation error on "([^"]*)"$`, lifecycleCtx.taskCreationShouldFailWithValidationErrorOn)
	sc.Step(`^the task should be bound to vehicle "([^"]*)"$`, lifecycleCtx.theTaskShouldBeBoundToVehicle)
	sc.Step(`^the task should be bound to no vehicle$`, lifecycleCtx.theTaskShouldBeBoundToNoVehicle)
	sc.Step(`^the transition should be rejected$`, lifecycleCtx.theTransitionShouldBeRejected)
	sc.Step(`^the failure reason should be "([^"]*)"$`, lifecycleCtx.theFailureReasonShouldBe)
}
