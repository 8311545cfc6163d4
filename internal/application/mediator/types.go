package mediator

import (
	"context"
)

// Request is a command or query routed to exactly one handler, keyed by
// its concrete type. Commands mutate state (stage an order, enqueue a
// move), queries read it (get a task, list vehicles).
type Request interface{}

// Response carries whatever the handler produced. Queries return their
// result here, commands usually return nil.
type Response interface{}

// RequestHandler handles one request type
type RequestHandler interface {
	Handle(ctx context.Context, request Request) (Response, error)
}

// HandlerFunc matches the signature of RequestHandler.Handle so
// middleware can wrap the call without knowing the handler type.
type HandlerFunc func(ctx context.Context, request Request) (Response, error)

// Middleware wraps handler execution with cross-cutting behavior. The
// daemon installs request logging and Prometheus timing this way.
type Middleware func(ctx context.Context, request Request, next HandlerFunc) (Response, error)
