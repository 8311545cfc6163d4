package metrics

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/fleetworks/wcs-go/internal/application/mediator"
)

// PrometheusMiddleware creates a middleware that records command execution metrics
//
// This middleware wraps all command/query execution and records:
// - Execution duration (histogram)
// - Success/failure counts (counter)
//
// Command names are extracted via reflection and simplified to remove package prefixes.
// For example: "*commands.DispatchNextTaskCommand" becomes "DispatchNextTaskCommand"
func PrometheusMiddleware(collector *CommandMetricsCollector) mediator.Middleware {
	return func(ctx context.Context, request mediator.Request, next mediator.HandlerFunc) (mediator.Response, error) {
		// Skip metrics if collector is nil (metrics disabled)
		if collector == nil {
			return next(ctx, request)
		}

		commandName := extractCommandName(request)

		start := time.Now()
		response, err := next(ctx, request)
		duration := time.Since(start).Seconds()

		collector.RecordCommandExecution(commandName, duration, err == nil)

		return response, err
	}
}

// extractCommandName extracts a clean command name from the request using reflection
// Examples:
//   - "*commands.DispatchNextTaskCommand" → "DispatchNextTaskCommand"
//   - "*queries.GetVehicleStateQuery" → "GetVehicleStateQuery"
func extractCommandName(request mediator.Request) string {
	if request == nil {
		return "UnknownCommand"
	}

	requestType := reflect.TypeOf(request)
	fullName := strings.TrimPrefix(requestType.String(), "*")

	parts := strings.Split(fullName, ".")
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}

	return fullName
}
