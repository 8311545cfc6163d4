package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetworks/wcs-go/internal/adapters/api"
	"github.com/fleetworks/wcs-go/internal/adapters/gateway"
	"github.com/fleetworks/wcs-go/internal/adapters/graph"
	"github.com/fleetworks/wcs-go/internal/adapters/httpapi"
	"github.com/fleetworks/wcs-go/internal/adapters/metrics"
	"github.com/fleetworks/wcs-go/internal/adapters/pathfinding"
	"github.com/fleetworks/wcs-go/internal/adapters/persistence"
	"github.com/fleetworks/wcs-go/internal/adapters/plc"
	"github.com/fleetworks/wcs-go/internal/adapters/state"
	"github.com/fleetworks/wcs-go/internal/application/amr"
	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/application/conflict"
	"github.com/fleetworks/wcs-go/internal/application/dispatch"
	"github.com/fleetworks/wcs-go/internal/application/events"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	lifterApp "github.com/fleetworks/wcs-go/internal/application/lifter"
	"github.com/fleetworks/wcs-go/internal/application/logging"
	"github.com/fleetworks/wcs-go/internal/application/mission"
	"github.com/fleetworks/wcs-go/internal/application/runtime"
	"github.com/fleetworks/wcs-go/internal/application/scheduling"
	"github.com/fleetworks/wcs-go/internal/application/setup"
	"github.com/fleetworks/wcs-go/internal/application/traffic"
	domainLifter "github.com/fleetworks/wcs-go/internal/domain/lifter"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	"github.com/fleetworks/wcs-go/internal/infrastructure/config"
	"github.com/fleetworks/wcs-go/internal/infrastructure/database"
	"github.com/fleetworks/wcs-go/internal/infrastructure/pidfile"
)

// eventPruneInterval is how often the task event trail is pruned. The
// retention window itself comes from configuration.
const eventPruneInterval = 1 * time.Hour

func main() {
	// Parse command-line flags
	forceFlag := flag.Bool("force", false, "Kill any existing daemon and start a new one")
	flag.Parse()

	fmt.Println("FleetWorks WCS Daemon v0.1.0")
	fmt.Println("============================")

	// Load configuration
	fmt.Println("Loading configuration...")
	cfg := config.MustLoadConfig("") // Empty string = search default paths

	// Acquire PID file lock to prevent multiple instances
	fmt.Printf("Acquiring PID file lock: %s\n", cfg.Daemon.PIDFile)
	pf := pidfile.New(cfg.Daemon.PIDFile)

	// Try to acquire the lock
	err := pf.Acquire()
	if err != nil {
		if *forceFlag {
			// Force mode: kill existing daemon and try again
			fmt.Println("Force mode enabled - attempting to kill existing daemon...")
			if killErr := pf.KillExisting(); killErr != nil {
				log.Fatalf("Failed to kill existing daemon: %v", killErr)
			}
			fmt.Println("Existing daemon killed")

			// Try to acquire lock again
			if err := pf.Acquire(); err != nil {
				log.Fatalf("Failed to acquire PID file lock after killing existing daemon: %v", err)
			}
		} else {
			log.Fatalf("Failed to acquire PID file lock: %v\nUse --force to kill the existing daemon", err)
		}
	}

	defer func() {
		if err := pf.Release(); err != nil {
			log.Printf("Warning: failed to release PID file: %v", err)
		}
	}()
	fmt.Println("PID file lock acquired")

	// Initialize application
	if err := run(cfg); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()
	clock := shared.NewRealClock()

	// 1. Setup database connection
	fmt.Printf("Connecting to %s database...\n", cfg.Database.Type)

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)
	fmt.Println("Database connected")

	if cfg.Daemon.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to migrate database schema: %w", err)
		}
		fmt.Println("Database schema migrated")
	}

	// 2. Initialize repositories
	cellRepo := persistence.NewCellRepository(db)
	sessionRepo := persistence.NewVehicleSessionRepository(db)
	eventRepo := persistence.NewTaskEventRepository(db)

	// 3. Seed the catalog from a layout file when it is empty
	if cfg.Daemon.SeedLayout != "" {
		if err := seedCatalog(ctx, cellRepo, cfg.Daemon.SeedLayout); err != nil {
			return err
		}
	}

	// 4. Load the floor plan
	plans := graph.NewCatalogProvider(cellRepo)
	planResult, err := plans.GetPlan(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to load floor plan: %w", err)
	}
	plan := planResult.Plan
	fmt.Println(planResult.Message)

	// 5. Initialize metrics (optional)
	var (
		commandCollector *metrics.CommandMetricsCollector
		apiCollector     *metrics.APIMetricsCollector
		loopCollector    *metrics.LoopMetricsCollector
	)
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()

		commandCollector = metrics.NewCommandMetricsCollector()
		apiCollector = metrics.NewAPIMetricsCollector()
		loopCollector = metrics.NewLoopMetricsCollector()
		missionCollector := metrics.NewMissionMetricsCollector()
		conflictCollector := metrics.NewConflictMetricsCollector()
		lifterCollector := metrics.NewLifterMetricsCollector()

		for _, c := range []interface{ Register() error }{
			commandCollector, apiCollector, loopCollector,
			missionCollector, conflictCollector, lifterCollector,
		} {
			if err := c.Register(); err != nil {
				return fmt.Errorf("failed to register metrics: %w", err)
			}
		}
		metrics.SetGlobalMissionCollector(missionCollector)
		metrics.SetGlobalConflictCollector(conflictCollector)
		metrics.SetGlobalLifterCollector(lifterCollector)
		fmt.Println("Prometheus metrics enabled (served at /metrics)")
	}

	// 6. Initialize the shared state store and its typed views
	kv := state.NewKV(clock)
	occupation := state.NewOccupationStore(kv, 0) // 0 = default lease TTL
	reservation := state.NewReservationStore(kv)
	rows := state.NewRowLockStore(kv, clock)
	tasks := state.NewTaskQueueStore(kv, clock)
	paths := state.NewPathStore(kv, clock, 0)
	amrReservation := state.NewAMRReservationStore(kv)
	telemetry := state.NewTelemetryStore(kv)
	waits := state.NewWaitStateStore(kv)
	lifterState := state.NewLifterStateStore(kv, clock)
	fmt.Println("State store initialized")

	// 7. Initialize event bus
	bus := events.NewBus(0) // 0 = default queue capacity
	busCtx, stopBus := context.WithCancel(context.Background())
	defer stopBus()
	go bus.Run(busCtx)

	// 8. Restore the fleet registry from persisted sessions
	registry := fleet.NewRegistry(clock, sessionRepo)
	restored, err := registry.Restore(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore vehicle sessions: %w", err)
	}
	fmt.Printf("Restored %d vehicle session(s)\n", restored)

	tracker := fleet.NewTracker(bus, registry)
	tracker.Register()

	// 9. Initialize pathfinder and traffic model
	finder := pathfinding.New(plan)
	trafficSvc := traffic.NewService(paths, clock)
	trafficSvc.StartCleaner()
	fmt.Println("Pathfinder initialized")

	// 10. Initialize the vehicle gateway (WebSocket transport)
	gw := gateway.NewGateway(bus, clock)

	// 11. Initialize the lifter tower: PLC access and trip coordinator
	var plcClient domainLifter.PLCClient
	if cfg.Lifter.PLCAddress != "" {
		plcClient = plc.NewGatewayClient(cfg.Lifter.PLCAddress)
		fmt.Printf("PLC bridge client initialized (%s)\n", cfg.Lifter.PLCAddress)
	} else {
		plcClient = plc.NewSimulator(cfg.Lifter.Floors, cfg.Lifter.HomeFloor, cfg.Lifter.SimTravelTime, clock)
		fmt.Println("PLC simulator initialized (configure lifter.plc_address to use a real bridge)")
	}
	defer plcClient.Close()

	lifterCoord := lifterApp.NewCoordinator(lifterState, plcClient, bus, clock, cfg.Lifter.Floors)

	// 12. Initialize mission planning
	entryCells, err := cellRepo.FloorEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to load lifter entry cells: %w", err)
	}
	for floor, qr := range cfg.Lifter.EntryCells {
		entryCells[floor] = qr
	}
	missions := mission.NewCoordinator(registry, plan, finder, occupation, rows, paths, trafficSvc, lifterCoord, clock, entryCells)

	// 13. Initialize dispatch, conflict resolution and the event router
	dispatcher := dispatch.NewDispatcher(registry, tasks, reservation, missions, finder, gw, bus, clock)

	parking := conflict.NewParkingFinder(plan, reservation)
	resolver := conflict.NewResolver(registry, tasks, occupation, paths, waits, rows, trafficSvc, finder, gw, bus, parking, clock)
	deadlock := conflict.NewDeadlockDetector(registry, tasks, occupation, paths, waits, bus, clock)
	deadlock.SetAMRReservations(amrReservation)

	router := dispatch.NewRouter(bus, registry, tasks, occupation, reservation, paths, rows, plan, missions, resolver, lifterCoord, dispatcher, gw, clock)
	router.Register()
	resolver.SetReplanner(router.Replan)
	deadlock.SetReplanner(router.Replan)

	stager := scheduling.NewScheduler(registry, plan, tasks, rows, reservation, clock)

	recorder := dispatch.NewEventRecorder(bus, tasks, eventRepo, clock)
	recorder.Register()

	// 14. Initialize the free-roaming fleet integration (optional)
	var (
		executor *amr.Executor
		pollers  []*amr.Poller
	)
	if cfg.AMR.Enabled {
		var amrClient common.AMRClient
		if cfg.AMR.VendorBaseURL != "" {
			amrClient = api.NewAMRVendorClientWithConfig(cfg.AMR.VendorBaseURL, cfg.AMR.MaxRetries, cfg.AMR.BackoffBase, apiCollector, clock)
			fmt.Printf("AMR vendor client initialized (%s)\n", cfg.AMR.VendorBaseURL)
		} else {
			amrClient = api.NewMockAMRClient(plan)
			fmt.Println("AMR vendor client initialized (mock - configure amr.vendor_base_url to use the real controller)")
		}

		executor = amr.NewExecutor(finder, registry, amrReservation, amrClient, bus, clock, cfg.AMR.StepDelay)

		for _, unitID := range cfg.AMR.Units {
			p := amr.NewPoller(unitID, amrClient, telemetry, registry, clock)
			p.Start()
			pollers = append(pollers, p)
		}
	} else {
		fmt.Println("AMR integration disabled")
	}

	// 15. Build the mediator with every handler registered
	handlers := setup.NewHandlerRegistry(tasks, plan, registry, lifterCoord, telemetry, executor, dispatcher, eventRepo, clock)
	trace := logging.NewLevelFilter(cfg.Logging.Level, logging.NewStdLogger("daemon"))
	med, err := handlers.CreateConfiguredMediator(trace, commandCollector)
	if err != nil {
		return fmt.Errorf("failed to configure mediator: %w", err)
	}
	fmt.Println("Mediator configured")

	// 16. Start the background loops
	supervisor := runtime.NewSupervisor(loopCollector)
	supervisor.Add("staging", cfg.Scheduler.StagingInterval, stager.Tick)
	supervisor.Add("deadlock-scan", cfg.Scheduler.DeadlockScanInterval, func(ctx context.Context) error {
		deadlock.Scan(ctx)
		return nil
	})
	supervisor.Add("rowlock-sweep", cfg.Scheduler.RowLockSweepInterval, func(ctx context.Context) error {
		n, err := rows.Sweep(ctx, cfg.Scheduler.RowLockTTL)
		if n > 0 {
			fmt.Printf("Swept %d stale row lock(s)\n", n)
		}
		return err
	})
	supervisor.Add("path-purge", cfg.Scheduler.StatePurgeInterval, func(ctx context.Context) error {
		_, err := paths.PurgeExpired(ctx)
		return err
	})
	supervisor.Add("event-prune", eventPruneInterval, func(ctx context.Context) error {
		cutoff := clock.Now().Add(-cfg.Scheduler.EventRetention)
		n, err := eventRepo.Prune(ctx, cutoff)
		if n > 0 {
			fmt.Printf("Pruned %d task event(s) older than %v\n", n, cfg.Scheduler.EventRetention)
		}
		return err
	})
	supervisor.Start()

	dispatcher.Start()
	lifterCoord.Start()

	// 17. Start the HTTP API (REST surface + vehicle sockets)
	server := httpapi.NewServer(cfg.Daemon.Address, med, plans, gw)
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	fmt.Println("\n✓ Controller is ready")
	fmt.Println("Press Ctrl+C to stop")

	// Wait for shutdown signal or server error
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-shutdownChan:
		fmt.Println("\nShutdown signal received, stopping daemon...")
	}

	// Graceful shutdown: stop taking work first, then unwind the loops
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Daemon.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("Warning: HTTP server shutdown: %v\n", err)
	}
	supervisor.Stop()
	dispatcher.Stop()
	lifterCoord.Stop()
	for _, p := range pollers {
		p.Stop()
	}
	if executor != nil {
		executor.Stop()
	}
	trafficSvc.Stop()
	gw.Close()
	stopBus()
	<-bus.Done()

	fmt.Println("\nDaemon stopped")
	return nil
}

// seedCatalog imports a layout file into an empty catalog. A populated
// catalog wins over the file so a restart never clobbers operator edits.
func seedCatalog(ctx context.Context, repo *persistence.CellRepositoryGORM, path string) error {
	existing, err := repo.LoadPlan(ctx)
	if err != nil {
		return fmt.Errorf("failed to inspect floor plan catalog: %w", err)
	}
	if len(existing.FloorIDs()) > 0 {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open layout file %s: %w", path, err)
	}
	defer f.Close()

	plan, err := graph.ParseLayout(f)
	if err != nil {
		return fmt.Errorf("failed to parse layout file %s: %w", path, err)
	}
	if err := repo.SavePlan(ctx, plan); err != nil {
		return fmt.Errorf("failed to import layout: %w", err)
	}
	fmt.Printf("Imported layout from %s (%d floors)\n", path, len(plan.FloorIDs()))
	return nil
}
