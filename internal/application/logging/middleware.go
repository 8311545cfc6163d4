package logging

import (
	"context"
	"reflect"

	"github.com/fleetworks/wcs-go/internal/application/mediator"
)

// TraceMiddleware injects a trace logger into every dispatched request.
// When the request carries a VehicleID or TaskID field the logger is
// tagged with it, so one vehicle's operations can be followed across
// handlers without threading identifiers by hand.
func TraceMiddleware(base TraceLogger) mediator.Middleware {
	return func(ctx context.Context, request mediator.Request, next mediator.HandlerFunc) (mediator.Response, error) {
		vehicleID, taskID := extractTraceIdentity(request)
		logger := base
		if vehicleID != "" || taskID != "" {
			logger = &taggedLogger{base: base, vehicleID: vehicleID, taskID: taskID}
		}
		return next(WithLogger(ctx, logger), request)
	}
}

// taggedLogger stamps vehicle and task identity onto every event
type taggedLogger struct {
	base      TraceLogger
	vehicleID string
	taskID    string
}

func (l *taggedLogger) Log(level, message string, metadata map[string]interface{}) {
	tagged := make(map[string]interface{}, len(metadata)+2)
	for k, v := range metadata {
		tagged[k] = v
	}
	if l.vehicleID != "" {
		tagged["vehicle"] = l.vehicleID
	}
	if l.taskID != "" {
		tagged["task"] = l.taskID
	}
	l.base.Log(level, message, tagged)
}

// extractTraceIdentity uses reflection to pull identity fields from a
// request struct. Returns empty strings when the request carries none.
func extractTraceIdentity(request mediator.Request) (vehicleID, taskID string) {
	requestValue := reflect.ValueOf(request)
	if requestValue.Kind() == reflect.Ptr {
		if requestValue.IsNil() {
			return "", ""
		}
		requestValue = requestValue.Elem()
	}
	if requestValue.Kind() != reflect.Struct {
		return "", ""
	}

	if f := requestValue.FieldByName("VehicleID"); f.IsValid() && f.Kind() == reflect.String {
		vehicleID = f.String()
	}
	if f := requestValue.FieldByName("TaskID"); f.IsValid() && f.Kind() == reflect.String {
		taskID = f.String()
	}
	return vehicleID, taskID
}
