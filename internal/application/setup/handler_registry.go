package setup

import (
	"reflect"

	"github.com/fleetworks/wcs-go/internal/adapters/metrics"
	"github.com/fleetworks/wcs-go/internal/application/amr"
	amrCommands "github.com/fleetworks/wcs-go/internal/application/amr/commands"
	amrQueries "github.com/fleetworks/wcs-go/internal/application/amr/queries"
	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/application/dispatch"
	dispatchCommands "github.com/fleetworks/wcs-go/internal/application/dispatch/commands"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	fleetCommands "github.com/fleetworks/wcs-go/internal/application/fleet/commands"
	fleetQueries "github.com/fleetworks/wcs-go/internal/application/fleet/queries"
	lifterCommands "github.com/fleetworks/wcs-go/internal/application/lifter/commands"
	lifterQueries "github.com/fleetworks/wcs-go/internal/application/lifter/queries"
	"github.com/fleetworks/wcs-go/internal/application/logging"
	"github.com/fleetworks/wcs-go/internal/application/mediator"
	schedulingCommands "github.com/fleetworks/wcs-go/internal/application/scheduling/commands"
	schedulingQueries "github.com/fleetworks/wcs-go/internal/application/scheduling/queries"
	"github.com/fleetworks/wcs-go/internal/domain/floorplan"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/internal/domain/task"
)

// HandlerRegistry holds the dependencies every command and query
// handler is built from.
type HandlerRegistry struct {
	tasks      domainState.TaskQueueStore
	plan       *floorplan.Plan
	registry   *fleet.Registry
	lifter     common.LifterControl
	telemetry  domainState.TelemetryStore
	executor   *amr.Executor
	dispatcher *dispatch.Dispatcher
	eventLog   task.EventLog
	clock      shared.Clock
}

// NewHandlerRegistry creates a handler registry with required
// dependencies. eventLog may be nil when the controller runs without a
// database; the task history query is then not registered.
func NewHandlerRegistry(
	tasks domainState.TaskQueueStore,
	plan *floorplan.Plan,
	registry *fleet.Registry,
	lifterCtl common.LifterControl,
	telemetry domainState.TelemetryStore,
	executor *amr.Executor,
	dispatcher *dispatch.Dispatcher,
	eventLog task.EventLog,
	clock shared.Clock,
) *HandlerRegistry {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &HandlerRegistry{
		tasks:      tasks,
		plan:       plan,
		registry:   registry,
		lifter:     lifterCtl,
		telemetry:  telemetry,
		executor:   executor,
		dispatcher: dispatcher,
		eventLog:   eventLog,
		clock:      clock,
	}
}

// RegisterTaskHandlers registers the staging command and the task
// queries:
//   - StageOrderCommand → StageOrderHandler
//   - GetTaskQuery → GetTaskHandler
//   - ListTasksQuery → ListTasksHandler
//   - GetTaskEventsQuery → GetTaskEventsHandler (when an event log is wired)
func (r *HandlerRegistry) RegisterTaskHandlers(m mediator.Mediator) error {
	if err := m.Register(
		reflect.TypeOf(&schedulingCommands.StageOrderCommand{}),
		schedulingCommands.NewStageOrderHandler(r.tasks, r.plan, r.clock),
	); err != nil {
		return err
	}
	if err := m.Register(
		reflect.TypeOf(&schedulingQueries.GetTaskQuery{}),
		schedulingQueries.NewGetTaskHandler(r.tasks),
	); err != nil {
		return err
	}
	if err := m.Register(
		reflect.TypeOf(&schedulingQueries.ListTasksQuery{}),
		schedulingQueries.NewListTasksHandler(r.tasks),
	); err != nil {
		return err
	}
	if r.eventLog != nil {
		return m.Register(
			reflect.TypeOf(&schedulingQueries.GetTaskEventsQuery{}),
			schedulingQueries.NewGetTaskEventsHandler(r.eventLog),
		)
	}
	return nil
}

// RegisterFleetHandlers registers vehicle queries and executing-mode
// control:
//   - ListVehiclesQuery → ListVehiclesHandler
//   - GetVehicleQuery → GetVehicleHandler
//   - SetExecutingCommand → SetExecutingHandler
func (r *HandlerRegistry) RegisterFleetHandlers(m mediator.Mediator) error {
	if err := m.Register(
		reflect.TypeOf(&fleetQueries.ListVehiclesQuery{}),
		fleetQueries.NewListVehiclesHandler(r.registry),
	); err != nil {
		return err
	}
	if err := m.Register(
		reflect.TypeOf(&fleetQueries.GetVehicleQuery{}),
		fleetQueries.NewGetVehicleHandler(r.registry, r.tasks),
	); err != nil {
		return err
	}
	return m.Register(
		reflect.TypeOf(&fleetCommands.SetExecutingCommand{}),
		fleetCommands.NewSetExecutingHandler(r.registry, r.dispatcher),
	)
}

// RegisterLifterHandlers registers the tower surface:
//   - RequestTripCommand → RequestTripHandler
//   - CompleteTripCommand → CompleteTripHandler
//   - GetLifterStatusQuery → GetLifterStatusHandler
func (r *HandlerRegistry) RegisterLifterHandlers(m mediator.Mediator) error {
	if err := m.Register(
		reflect.TypeOf(&lifterCommands.RequestTripCommand{}),
		lifterCommands.NewRequestTripHandler(r.lifter),
	); err != nil {
		return err
	}
	if err := m.Register(
		reflect.TypeOf(&lifterCommands.CompleteTripCommand{}),
		lifterCommands.NewCompleteTripHandler(r.lifter),
	); err != nil {
		return err
	}
	return m.Register(
		reflect.TypeOf(&lifterQueries.GetLifterStatusQuery{}),
		lifterQueries.NewGetLifterStatusHandler(r.lifter),
	)
}

// RegisterAMRHandlers registers the free-roaming surface:
//   - EnqueueMoveCommand → EnqueueMoveHandler
//   - GetTelemetryQuery → GetTelemetryHandler
func (r *HandlerRegistry) RegisterAMRHandlers(m mediator.Mediator) error {
	if err := m.Register(
		reflect.TypeOf(&amrCommands.EnqueueMoveCommand{}),
		amrCommands.NewEnqueueMoveHandler(r.executor),
	); err != nil {
		return err
	}
	return m.Register(
		reflect.TypeOf(&amrQueries.GetTelemetryQuery{}),
		amrQueries.NewGetTelemetryHandler(r.telemetry),
	)
}

// RegisterDispatchHandlers registers manual dispatch stepping:
//   - DispatchNextTaskCommand → DispatchNextTaskHandler
func (r *HandlerRegistry) RegisterDispatchHandlers(m mediator.Mediator) error {
	return m.Register(
		reflect.TypeOf(&dispatchCommands.DispatchNextTaskCommand{}),
		dispatchCommands.NewDispatchNextTaskHandler(r.dispatcher),
	)
}

// CreateConfiguredMediator builds a mediator with every handler
// registered and the trace and metrics middlewares installed. collector
// may be nil when metrics are disabled.
func (r *HandlerRegistry) CreateConfiguredMediator(
	trace logging.TraceLogger,
	collector *metrics.CommandMetricsCollector,
) (mediator.Mediator, error) {
	m := mediator.NewMediator()

	if trace != nil {
		m.Use(logging.TraceMiddleware(trace))
	}
	m.Use(metrics.PrometheusMiddleware(collector))

	if err := r.RegisterTaskHandlers(m); err != nil {
		return nil, err
	}
	if err := r.RegisterFleetHandlers(m); err != nil {
		return nil, err
	}
	if err := r.RegisterLifterHandlers(m); err != nil {
		return nil, err
	}
	if r.executor != nil && r.telemetry != nil {
		if err := r.RegisterAMRHandlers(m); err != nil {
			return nil, err
		}
	}
	if err := r.RegisterDispatchHandlers(m); err != nil {
		return nil, err
	}
	return m, nil
}
