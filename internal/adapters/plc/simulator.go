// Package plc provides the tower PLC access layer. Production sites
// front an S7 gateway; this package ships the in-memory simulator used
// by development setups and tests. Both speak the same boolean tag
// surface defined in the lifter domain.
package plc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fleetworks/wcs-go/internal/domain/lifter"
	"github.com/fleetworks/wcs-go/internal/domain/shared"
)

// DefaultTravelTime is how long the simulated cage takes per trip
const DefaultTravelTime = 3 * time.Second

// Simulator is an in-memory PLC with a moving cage. Commanding a
// control tag starts a trip; the position sensor of the target floor
// reads true once the travel time has elapsed. Writing the error tag
// injects or clears a fault, which tests use to exercise recovery.
type Simulator struct {
	mu           sync.Mutex
	clock        shared.Clock
	floors       []int
	travelTime   time.Duration
	currentFloor int
	targetFloor  int // 0 while the cage is parked
	moveStarted  time.Time
	faulted      bool
	closed       bool
}

// NewSimulator creates a simulated tower parked at startFloor. If clock
// is nil, uses RealClock; travelTime <= 0 falls back to the default.
func NewSimulator(floors []int, startFloor int, travelTime time.Duration, clock shared.Clock) *Simulator {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if travelTime <= 0 {
		travelTime = DefaultTravelTime
	}
	return &Simulator{
		clock:        clock,
		floors:       floors,
		travelTime:   travelTime,
		currentFloor: startFloor,
	}
}

var _ lifter.PLCClient = (*Simulator)(nil)

// ReadBool reads one boolean tag
func (s *Simulator) ReadBool(ctx context.Context, tag string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, fmt.Errorf("PLC connection closed")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.settle()

	if tag == lifter.TagError {
		return s.faulted, nil
	}
	for _, f := range s.floors {
		switch tag {
		case lifter.PositionTag(f):
			return s.currentFloor == f && s.targetFloor == 0, nil
		case lifter.ControlTag(f):
			return s.targetFloor == f, nil
		}
	}
	return false, fmt.Errorf("unknown PLC tag %s", tag)
}

// WriteBool writes one boolean tag. Position sensors are read-only;
// raising a control tag starts a trip, clearing it is a no-op because a
// commanded cage finishes its travel regardless.
func (s *Simulator) WriteBool(ctx context.Context, tag string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("PLC connection closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.settle()

	if tag == lifter.TagError {
		s.faulted = value
		return nil
	}
	for _, f := range s.floors {
		switch tag {
		case lifter.PositionTag(f):
			return fmt.Errorf("tag %s is read-only", tag)
		case lifter.ControlTag(f):
			if !value {
				return nil
			}
			if s.faulted {
				return fmt.Errorf("PLC fault latched, command rejected")
			}
			if s.currentFloor == f && s.targetFloor == 0 {
				return nil
			}
			s.targetFloor = f
			s.moveStarted = s.clock.Now()
			return nil
		}
	}
	return fmt.Errorf("unknown PLC tag %s", tag)
}

// Close releases the simulated connection
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// settle completes an in-flight trip once the travel time has elapsed.
// Callers must hold the lock.
func (s *Simulator) settle() {
	if s.targetFloor == 0 {
		return
	}
	if s.clock.Now().Sub(s.moveStarted) >= s.travelTime {
		s.currentFloor = s.targetFloor
		s.targetFloor = 0
	}
}
