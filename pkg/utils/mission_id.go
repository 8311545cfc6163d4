package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateMissionID creates a standardized, human-readable mission ID.
// Format: mission-{vehicle}-{8charHexUUID}
//
// Example:
//   - Input: vehicleID="SHUTTLE-1"
//   - Output: "mission-SHUTTLE-1-a3f8e2b1"
//
// The generated IDs are:
//   - Human-readable with the owning vehicle up front
//   - Globally unique via UUID suffix
//   - Safe as channel suffixes and map keys
func GenerateMissionID(vehicleID string) string {
	return "mission-" + vehicleID + "-" + generateShortUUID()
}

// GenerateTaskID creates an ID for a newly staged task.
// Format: task-{8charHexUUID}
func GenerateTaskID() string {
	return "task-" + generateShortUUID()
}

// GenerateTripID creates an ID for a lifter trip request.
// Format: trip-{8charHexUUID}
func GenerateTripID() string {
	return "trip-" + generateShortUUID()
}

// GenerateOrderID creates an ID for a staged transport order.
// Format: order-{8charHexUUID}
func GenerateOrderID() string {
	return "order-" + generateShortUUID()
}

// generateShortUUID creates an 8-character hex string from a UUID.
// This provides sufficient uniqueness while keeping IDs compact.
func generateShortUUID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}
