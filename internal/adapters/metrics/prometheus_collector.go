package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Namespace for all metrics
	namespace = "wcs"
	// Subsystem for daemon metrics
	subsystem = "daemon"
)

var (
	// Registry is the global Prometheus registry for all metrics
	Registry *prometheus.Registry

	// globalMissionCollector is the singleton mission metrics collector
	// Set by SetGlobalMissionCollector() when metrics are enabled
	globalMissionCollector MissionMetricsRecorder

	// globalConflictCollector is the singleton conflict metrics collector
	// Set by SetGlobalConflictCollector() when metrics are enabled
	globalConflictCollector ConflictMetricsRecorder

	// globalLifterCollector is the singleton lifter metrics collector
	// Set by SetGlobalLifterCollector() when metrics are enabled
	globalLifterCollector LifterMetricsRecorder
)

// MissionMetricsRecorder defines the interface for recording mission lifecycle metrics
// This interface is used by application code to record metrics
type MissionMetricsRecorder interface {
	RecordMissionDispatch(vehicleID string, status string)
	RecordPlanDuration(outcome string, seconds float64)
	SetQueueDepth(queue string, depth int)
}

// ConflictMetricsRecorder defines the interface for recording conflict resolution metrics
type ConflictMetricsRecorder interface {
	RecordConflictResolution(resolution string)
	RecordReroute(tier string)
	RecordDeadlockResolved()
}

// LifterMetricsRecorder defines the interface for recording lifter trip metrics
type LifterMetricsRecorder interface {
	RecordLifterTrip(status string, seconds float64)
	SetLifterQueueDepth(depth int)
}

// InitRegistry initializes the Prometheus registry
// Should be called once at application startup if metrics are enabled
func InitRegistry() {
	Registry = prometheus.NewRegistry()
}

// GetRegistry returns the global Prometheus registry
// Returns nil if metrics are not initialized
func GetRegistry() *prometheus.Registry {
	return Registry
}

// IsEnabled returns true if metrics collection is enabled
func IsEnabled() bool {
	return Registry != nil
}

// SetGlobalMissionCollector sets the global mission metrics collector
func SetGlobalMissionCollector(collector MissionMetricsRecorder) {
	globalMissionCollector = collector
}

// RecordMissionDispatch records a mission lifecycle event globally
func RecordMissionDispatch(vehicleID string, status string) {
	if globalMissionCollector != nil {
		globalMissionCollector.RecordMissionDispatch(vehicleID, status)
	}
}

// RecordPlanDuration records one planning call globally
func RecordPlanDuration(outcome string, seconds float64) {
	if globalMissionCollector != nil {
		globalMissionCollector.RecordPlanDuration(outcome, seconds)
	}
}

// SetQueueDepth records the depth of a named queue globally
func SetQueueDepth(queue string, depth int) {
	if globalMissionCollector != nil {
		globalMissionCollector.SetQueueDepth(queue, depth)
	}
}

// SetGlobalConflictCollector sets the global conflict metrics collector
func SetGlobalConflictCollector(collector ConflictMetricsRecorder) {
	globalConflictCollector = collector
}

// RecordConflictResolution records how one conflict was resolved globally
func RecordConflictResolution(resolution string) {
	if globalConflictCollector != nil {
		globalConflictCollector.RecordConflictResolution(resolution)
	}
}

// RecordReroute records a reroute acceptance by tier globally
func RecordReroute(tier string) {
	if globalConflictCollector != nil {
		globalConflictCollector.RecordReroute(tier)
	}
}

// RecordDeadlockResolved records a broken wait cycle globally
func RecordDeadlockResolved() {
	if globalConflictCollector != nil {
		globalConflictCollector.RecordDeadlockResolved()
	}
}

// SetGlobalLifterCollector sets the global lifter metrics collector
func SetGlobalLifterCollector(collector LifterMetricsRecorder) {
	globalLifterCollector = collector
}

// RecordLifterTrip records a completed or failed lifter trip globally
func RecordLifterTrip(status string, seconds float64) {
	if globalLifterCollector != nil {
		globalLifterCollector.RecordLifterTrip(status, seconds)
	}
}

// SetLifterQueueDepth records the lifter queue depth globally
func SetLifterQueueDepth(depth int) {
	if globalLifterCollector != nil {
		globalLifterCollector.SetLifterQueueDepth(depth)
	}
}
