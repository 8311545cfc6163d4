// Package amr integrates the free-roaming fleet: per-vehicle endpoint
// pollers feeding a telemetry cache, and the fire-and-forget task
// executor that drives move sequences against node reservations.
package amr

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fleetworks/wcs-go/internal/application/common"
	"github.com/fleetworks/wcs-go/internal/application/fleet"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
	domainState "github.com/fleetworks/wcs-go/internal/domain/state"
	"github.com/fleetworks/wcs-go/internal/domain/vehicle"
)

// Poll cadences per endpoint. Location runs hottest because the traffic
// picture degrades fastest; battery is nearly static.
const (
	LocationPollInterval = 1 * time.Second
	BatteryPollInterval  = 5 * time.Second
	CargoPollInterval    = 3 * time.Second
	StatusPollInterval   = 2 * time.Second
	SensorsPollInterval  = 2 * time.Second

	pollTimeout = 5 * time.Second
)

// Telemetry kinds as cached. The read API serves these names verbatim.
const (
	KindLocation = "location"
	KindBattery  = "battery"
	KindCargo    = "cargo"
	KindStatus   = "status"
	KindSensors  = "sensors"
)

// Poller runs the five endpoint loops for one vehicle. A failed fetch
// is logged and retried on the next tick; the loop itself never stops
// on error.
type Poller struct {
	amrID     string
	client    common.AMRClient
	telemetry domainState.TelemetryStore
	registry  *fleet.Registry
	clock     shared.Clock

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewPoller wires the loops for one vehicle
func NewPoller(
	amrID string,
	client common.AMRClient,
	telemetry domainState.TelemetryStore,
	registry *fleet.Registry,
	clock shared.Clock,
) *Poller {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Poller{
		amrID:     amrID,
		client:    client,
		telemetry: telemetry,
		registry:  registry,
		clock:     clock,
		stopCh:    make(chan struct{}),
	}
}

// Start launches all five loops
func (p *Poller) Start() {
	p.loop(KindLocation, LocationPollInterval, p.pollLocation)
	p.loop(KindBattery, BatteryPollInterval, p.pollBattery)
	p.loop(KindCargo, CargoPollInterval, p.pollCargo)
	p.loop(KindStatus, StatusPollInterval, p.pollStatus)
	p.loop(KindSensors, SensorsPollInterval, p.pollSensors)
	fmt.Printf("AMR pollers started for %s\n", p.amrID)
}

// Stop halts every loop and waits for in-flight fetches
func (p *Poller) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Poller) loop(kind string, interval time.Duration, poll func(ctx context.Context) error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
				if err := poll(ctx); err != nil {
					fmt.Printf("Warning: %s poll for %s: %v\n", kind, p.amrID, err)
				}
				cancel()
			}
		}
	}()
}

// pollLocation also feeds the fleet registry so planning sees the
// vehicle where the vendor last saw it.
func (p *Poller) pollLocation(ctx context.Context) error {
	loc, err := p.client.FetchLocation(ctx, p.amrID)
	if err != nil {
		return err
	}
	if err := p.cache(ctx, KindLocation, loc); err != nil {
		return err
	}
	if p.registry == nil {
		return nil
	}
	if _, known := p.registry.Get(p.amrID); !known {
		v, err := vehicle.New(p.amrID, vehicle.KindAMR, loc.FloorID)
		if err != nil {
			return err
		}
		v.NodeQR = loc.NodeQR
		v.X, v.Y = loc.X, loc.Y
		p.registry.Register(ctx, v)
		fmt.Printf("AMR %s registered from location poll (floor %d)\n", p.amrID, loc.FloorID)
		return nil
	}
	if _, err := p.registry.Update(ctx, p.amrID, func(v *vehicle.Vehicle) {
		v.MoveToXY(loc.X, loc.Y, p.clock.Now())
		if loc.NodeQR != "" {
			v.MoveTo(loc.FloorID, loc.NodeQR, p.clock.Now())
		}
	}); err != nil {
		fmt.Printf("Warning: mirroring location of %s: %v\n", p.amrID, err)
	}
	return nil
}

func (p *Poller) pollBattery(ctx context.Context) error {
	batt, err := p.client.FetchBattery(ctx, p.amrID)
	if err != nil {
		return err
	}
	if err := p.cache(ctx, KindBattery, batt); err != nil {
		return err
	}
	if p.registry == nil {
		return nil
	}
	if _, err := p.registry.Update(ctx, p.amrID, func(v *vehicle.Vehicle) {
		v.Battery = batt.Percent
	}); err != nil {
		fmt.Printf("Warning: mirroring battery of %s: %v\n", p.amrID, err)
	}
	return nil
}

func (p *Poller) pollCargo(ctx context.Context) error {
	cargo, err := p.client.FetchCargo(ctx, p.amrID)
	if err != nil {
		return err
	}
	return p.cache(ctx, KindCargo, cargo)
}

func (p *Poller) pollStatus(ctx context.Context) error {
	st, err := p.client.FetchStatus(ctx, p.amrID)
	if err != nil {
		return err
	}
	return p.cache(ctx, KindStatus, st)
}

func (p *Poller) pollSensors(ctx context.Context) error {
	sens, err := p.client.FetchSensors(ctx, p.amrID)
	if err != nil {
		return err
	}
	return p.cache(ctx, KindSensors, sens)
}

func (p *Poller) cache(ctx context.Context, kind string, v interface{}) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s report: %w", kind, err)
	}
	return p.telemetry.Save(ctx, p.amrID, kind, string(encoded))
}
