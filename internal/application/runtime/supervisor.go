// Package runtime hosts the daemon's periodic loops. Every loop the
// controller runs in the background (staging passes, cache sweeps,
// deadlock scans) is declared on one supervisor, which gives each its
// own goroutine, a per-pass timeout and panic isolation: a crashing
// pass is logged and the loop keeps its cadence.
package runtime

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/fleetworks/wcs-go/internal/adapters/metrics"
)

// DefaultPassTimeout bounds a single loop pass
const DefaultPassTimeout = 10 * time.Second

// LoopFunc is one pass of a periodic loop
type LoopFunc func(ctx context.Context) error

// Loop declares one periodic job
type Loop struct {
	Name     string
	Interval time.Duration
	Run      LoopFunc
}

// Supervisor runs the declared loops until stopped
type Supervisor struct {
	loops       []Loop
	passTimeout time.Duration
	collector   *metrics.LoopMetricsCollector

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewSupervisor creates an empty supervisor. collector may be nil.
func NewSupervisor(collector *metrics.LoopMetricsCollector) *Supervisor {
	return &Supervisor{
		passTimeout: DefaultPassTimeout,
		collector:   collector,
		stopCh:      make(chan struct{}),
	}
}

// Add declares a loop. Must be called before Start.
func (s *Supervisor) Add(name string, interval time.Duration, run LoopFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		panic("runtime: Add after Start")
	}
	if interval <= 0 {
		panic(fmt.Sprintf("runtime: loop %s has no interval", name))
	}
	s.loops = append(s.loops, Loop{Name: name, Interval: interval, Run: run})
}

// Start launches every declared loop
func (s *Supervisor) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	loops := s.loops
	s.mu.Unlock()

	for _, l := range loops {
		s.wg.Add(1)
		go s.runLoop(l)
	}
	fmt.Printf("Loop supervisor started (%d loops)\n", len(loops))
}

// Stop halts every loop and waits for in-flight passes. Safe to call
// more than once.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

func (s *Supervisor) runLoop(l Loop) {
	defer s.wg.Done()
	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.pass(l)
		}
	}
}

// pass runs one iteration. The recover keeps a buggy loop from taking
// the daemon down; the next tick runs as if nothing happened.
func (s *Supervisor) pass(l Loop) {
	start := time.Now()
	result := "ok"
	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			fmt.Printf("Warning: %s loop panicked: %v\n%s", l.Name, r, debug.Stack())
		}
		if s.collector != nil {
			s.collector.RecordLoopRun(l.Name, result, time.Since(start).Seconds())
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.passTimeout)
	defer cancel()

	if err := l.Run(ctx); err != nil {
		result = "error"
		fmt.Printf("Warning: %s loop: %v\n", l.Name, err)
	}
}
